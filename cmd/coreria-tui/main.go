package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/CGXDevTeam/Coreria/internal/config"
	"github.com/CGXDevTeam/Coreria/internal/core/engine"
	"github.com/CGXDevTeam/Coreria/internal/data"
	"github.com/CGXDevTeam/Coreria/internal/entity"
	"github.com/CGXDevTeam/Coreria/internal/logging"
	"github.com/CGXDevTeam/Coreria/internal/scripting"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

const defaultLogFile = "coreria-tui.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/coreria.toml"
	if p := os.Getenv("CORERIA_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The screen owns stdout, so logs always go to a file.
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultLogFile
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	scene, err := loadScene(cfg.Scene.Path, log)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	eng := engine.New(
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithMaxCatchUp(cfg.Engine.MaxCatchUp),
		engine.WithLogger(log),
	)

	var lua *scripting.Engine
	if scene.HasKind(data.KindScript) {
		lua, err = scripting.NewEngine(cfg.Scripts.Dir, eng.Stop, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer lua.Close()
	}

	ents, err := entity.Build(scene, entity.Deps{Screen: screen, Scripts: lua, Stats: eng, Log: log})
	if err != nil {
		return fmt.Errorf("build entities: %w", err)
	}
	eng.AddEntity(entity.NewClear(screen))
	for _, e := range ents {
		eng.AddEntity(e)
	}
	eng.AddEntity(entity.NewPresenter(screen))

	go pollInput(screen, eng, log)

	duration := cfg.Engine.Duration.Duration
	if duration == 0 {
		duration = time.Duration(math.MaxInt64)
	}
	eng.RunFor(duration)
	return nil
}

// pollInput stops the engine on Esc, Ctrl-C or q. It returns once the
// screen is finalised.
func pollInput(screen tcell.Screen, eng *engine.Engine, log *zap.Logger) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				log.Info("quit requested", zap.String("key", ev.Name()))
				eng.Stop()
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}

// loadScene falls back to a bouncing glyph with a status line.
func loadScene(path string, log *zap.Logger) (*data.Scene, error) {
	scene, err := data.LoadScene(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("scene file not found, using default scene", zap.String("path", path))
		return &data.Scene{Entities: []data.SceneEntry{
			{Kind: data.KindSprite, Name: "ball", Glyph: "o", Color: "yellow", X: 1, Y: 1, VX: 18, VY: 7},
			{Kind: data.KindHUD, Name: "hud"},
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return scene, nil
}
