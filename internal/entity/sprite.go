package entity

import (
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
)

// Sprite is a glyph moving in cell space that bounces off the screen edges.
type Sprite struct {
	name   string
	screen tcell.Screen
	glyph  rune
	style  tcell.Style

	x, y   float64 // cells
	vx, vy float64 // cells per second
}

func NewSprite(name string, screen tcell.Screen, glyph rune, style tcell.Style, x, y, vx, vy float64) *Sprite {
	return &Sprite{
		name:   name,
		screen: screen,
		glyph:  glyph,
		style:  style,
		x:      x,
		y:      y,
		vx:     vx,
		vy:     vy,
	}
}

func (s *Sprite) Update(dt time.Duration) {
	sec := dt.Seconds()
	w, h := s.screen.Size()
	s.x, s.vx = bounce(s.x+s.vx*sec, s.vx, float64(w-1))
	s.y, s.vy = bounce(s.y+s.vy*sec, s.vy, float64(h-1))
}

func (s *Sprite) Render() {
	s.screen.SetContent(int(math.Round(s.x)), int(math.Round(s.y)), s.glyph, nil, s.style)
}

// Position returns the current cell position.
func (s *Sprite) Position() (x, y float64) { return s.x, s.y }

// Velocity returns the current velocity in cells per second.
func (s *Sprite) Velocity() (vx, vy float64) { return s.vx, s.vy }

// bounce reflects pos into [0, limit]. Positions are folded by the period
// 2*limit, so v ends up flipped when pos lands in the mirrored half.
func bounce(pos, v, limit float64) (float64, float64) {
	if limit <= 0 || math.IsInf(pos, 0) || math.IsNaN(pos) {
		return 0, v
	}
	if pos >= 0 && pos <= limit {
		return pos, v
	}
	period := 2 * limit
	p := math.Mod(pos, period)
	if p < 0 {
		p += period
	}
	if p > limit {
		return period - p, -v
	}
	return p, v
}
