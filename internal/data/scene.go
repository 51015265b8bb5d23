package data

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Entity kinds understood by the entity factory.
const (
	KindPlayer = "player" // counts ticks, logs each one
	KindScript = "script" // Lua-driven entity
	KindSprite = "sprite" // moving glyph, needs a screen
	KindHUD    = "hud"    // engine stats line, needs a screen
)

// SceneEntry describes one entity to spawn. Fields not used by a kind are
// ignored.
type SceneEntry struct {
	Kind   string  `yaml:"kind"`
	Name   string  `yaml:"name"`
	Script string  `yaml:"script,omitempty"` // file under the scripts dir
	Glyph  string  `yaml:"glyph,omitempty"`
	Color  string  `yaml:"color,omitempty"` // tcell color name
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	VX     float64 `yaml:"vx,omitempty"` // cells per second
	VY     float64 `yaml:"vy,omitempty"`
	Quiet  bool    `yaml:"quiet,omitempty"` // player: no per-tick log line
}

// Scene is the ordered entity list. Order is registration order.
type Scene struct {
	Entities []SceneEntry `yaml:"entities"`
}

// LoadScene loads and validates a scene from a YAML file.
func LoadScene(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(raw)
}

// ParseScene decodes and validates scene YAML.
func ParseScene(raw []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks kinds, names and per-kind required fields.
func (s *Scene) Validate() error {
	seen := make(map[string]struct{}, len(s.Entities))
	for i, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("scene entity %d: missing name", i)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("scene entity %d: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = struct{}{}

		switch e.Kind {
		case KindPlayer, KindHUD:
		case KindScript:
			if e.Script == "" {
				return fmt.Errorf("scene entity %q: script kind needs a script file", e.Name)
			}
		case KindSprite:
			if len([]rune(e.Glyph)) > 1 {
				return fmt.Errorf("scene entity %q: glyph must be a single character", e.Name)
			}
			for _, f := range []float64{e.X, e.Y, e.VX, e.VY} {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					return fmt.Errorf("scene entity %q: position and velocity must be finite", e.Name)
				}
			}
		default:
			return fmt.Errorf("scene entity %q: unknown kind %q", e.Name, e.Kind)
		}
	}
	return nil
}

// HasKind reports whether any entry is of the given kind.
func (s *Scene) HasKind(kind string) bool {
	for _, e := range s.Entities {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// DefaultScene is used when no scene file exists: a single player.
func DefaultScene() *Scene {
	return &Scene{Entities: []SceneEntry{{Kind: KindPlayer, Name: "player"}}}
}
