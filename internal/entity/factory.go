package entity

import (
	"fmt"
	"strings"

	"github.com/CGXDevTeam/Coreria/internal/core/engine"
	"github.com/CGXDevTeam/Coreria/internal/data"
	"github.com/CGXDevTeam/Coreria/internal/scripting"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

// Deps are the collaborators scene entities may need. Screen is nil in
// headless runs; Scripts is nil when no scene entry uses Lua.
type Deps struct {
	Screen  tcell.Screen
	Scripts *scripting.Engine
	Stats   StatsSource
	Log     *zap.Logger
}

const defaultGlyph = '*'

// Build turns scene entries into entities, preserving scene order. Screen
// entities are skipped (with a warning) when there is no screen.
func Build(scene *data.Scene, deps Deps) ([]engine.Entity, error) {
	out := make([]engine.Entity, 0, len(scene.Entities))
	for _, e := range scene.Entities {
		switch e.Kind {
		case data.KindPlayer:
			out = append(out, NewPlayer(e.Name, e.Quiet, deps.Log))

		case data.KindScript:
			if deps.Scripts == nil {
				return nil, fmt.Errorf("entity %q: no script engine", e.Name)
			}
			se, err := deps.Scripts.Entity(e.Name, e.Script)
			if err != nil {
				return nil, fmt.Errorf("entity %q: %w", e.Name, err)
			}
			out = append(out, se)

		case data.KindSprite:
			if deps.Screen == nil {
				deps.Log.Warn("headless run, skipping sprite", zap.String("entity", e.Name))
				continue
			}
			glyph := rune(defaultGlyph)
			if e.Glyph != "" {
				glyph = []rune(e.Glyph)[0]
			}
			style := tcell.StyleDefault
			if e.Color != "" {
				style = style.Foreground(tcell.GetColor(strings.ToLower(e.Color)))
			}
			out = append(out, NewSprite(e.Name, deps.Screen, glyph, style, e.X, e.Y, e.VX, e.VY))

		case data.KindHUD:
			if deps.Screen == nil || deps.Stats == nil {
				deps.Log.Warn("headless run, skipping hud", zap.String("entity", e.Name))
				continue
			}
			out = append(out, NewHUD(deps.Screen, deps.Stats))

		default:
			return nil, fmt.Errorf("entity %q: unknown kind %q", e.Name, e.Kind)
		}
	}
	return out, nil
}
