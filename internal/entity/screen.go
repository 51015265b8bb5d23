package entity

import (
	"fmt"
	"time"

	"github.com/CGXDevTeam/Coreria/internal/core/engine"
	"github.com/gdamore/tcell/v2"
)

// Clear wipes the screen. Register it first so every frame starts blank.
type Clear struct {
	screen tcell.Screen
}

func NewClear(screen tcell.Screen) *Clear { return &Clear{screen: screen} }

func (c *Clear) Update(time.Duration) {}
func (c *Clear) Render() { c.screen.Clear() }

// Presenter pushes the frame to the terminal. Register it last.
type Presenter struct {
	screen tcell.Screen
}

func NewPresenter(screen tcell.Screen) *Presenter { return &Presenter{screen: screen} }

func (p *Presenter) Update(time.Duration) {}
func (p *Presenter) Render() { p.screen.Show() }

// StatsSource is what the HUD reads each frame. *engine.Engine satisfies it.
type StatsSource interface {
	Stats() engine.Stats
	TickRate() float64
}

// HUD draws one status line with the engine counters on the bottom row of
// the screen, following resizes.
type HUD struct {
	screen tcell.Screen
	source StatsSource
	style  tcell.Style
}

func NewHUD(screen tcell.Screen, source StatsSource) *HUD {
	return &HUD{
		screen: screen,
		source: source,
		style:  tcell.StyleDefault.Foreground(tcell.ColorSilver),
	}
}

func (h *HUD) Update(time.Duration) {}

func (h *HUD) Render() {
	s := h.source.Stats()
	line := fmt.Sprintf("rate %.0f/s  steps %d  frames %d  overruns %d  dropped %s  [q] quit",
		h.source.TickRate(), s.Steps, s.Frames, s.Overruns, s.Dropped)
	_, rows := h.screen.Size()
	drawText(h.screen, 0, rows-1, h.style, line)
}

// drawText writes text starting at (x, y), clipped to the screen width.
func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	w, _ := screen.Size()
	for _, r := range text {
		if x >= w {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
