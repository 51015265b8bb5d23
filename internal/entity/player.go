package entity

import (
	"time"

	"go.uber.org/zap"
)

// Player counts its updates and the simulated time they add up to.
// Unless quiet, every update is logged.
type Player struct {
	name      string
	ticks     uint64
	simulated time.Duration
	quiet     bool
	log       *zap.Logger
}

func NewPlayer(name string, quiet bool, log *zap.Logger) *Player {
	return &Player{name: name, quiet: quiet, log: log}
}

func (p *Player) Update(dt time.Duration) {
	p.ticks++
	p.simulated += dt
	if !p.quiet {
		p.log.Info("player tick",
			zap.String("entity", p.name),
			zap.Uint64("tick", p.ticks),
			zap.Duration("dt", dt))
	}
}

func (p *Player) Name() string { return p.name }
func (p *Player) Ticks() uint64 { return p.ticks }
func (p *Player) Simulated() time.Duration { return p.simulated }
