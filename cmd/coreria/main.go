package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CGXDevTeam/Coreria/internal/config"
	"github.com/CGXDevTeam/Coreria/internal/core/engine"
	"github.com/CGXDevTeam/Coreria/internal/data"
	"github.com/CGXDevTeam/Coreria/internal/entity"
	"github.com/CGXDevTeam/Coreria/internal/logging"
	"github.com/CGXDevTeam/Coreria/internal/persist"
	"github.com/CGXDevTeam/Coreria/internal/scripting"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// forever stands in for "until stopped" when engine.duration is 0.
const forever = time.Duration(math.MaxInt64)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(cfgPath string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Coreria  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        fixed-step simulation driver       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mconfig:\033[0m %s\n\n", cfgPath)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value string) {
	dotsLen := 42 - len(label) - len(value)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), value)
}

func printCount(label string, n uint64) {
	printStat(label, numbers.Sprintf("%d", n))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/coreria.toml"
	if p := os.Getenv("CORERIA_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfgPath)

	// 3. Scene and entities
	printSection("Scene")
	scene, err := loadScene(cfg.Scene.Path, log)
	if err != nil {
		return err
	}

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
		printOK(fmt.Sprintf("Lua scripts from %s", cfg.Scripts.Dir))
	}

	ents, err := entity.Build(scene, entity.Deps{Scripts: lua, Stats: eng, Log: log})
	if err != nil {
		return fmt.Errorf("build entities: %w", err)
	}
	for _, e := range ents {
		eng.AddEntity(e)
	}
	printCount("entities", uint64(eng.Len()))
	fmt.Println()

	// 4. Optional run history
	var runs *persist.RunRepo
	if cfg.Database.DSN != "" {
		printSection("Database")
		db, err := openDB(cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		runs = persist.NewRunRepo(db)
		fmt.Println()
	}

	// 5. Run
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			eng.Stop()
		case <-done:
		}
	}()

	duration := cfg.Engine.Duration.Duration
	if duration == 0 {
		duration = forever
	}

	printSection("Run")
	printReady(fmt.Sprintf("loop started (rate %g/s, step %s)", eng.TickRate(), eng.Step()))
	fmt.Println()

	started := time.Now()
	eng.RunFor(duration)
	stats := eng.Stats()

	fmt.Println()
	printSection("Summary")
	printCount("steps", stats.Steps)
	printCount("frames", stats.Frames)
	printCount("overruns", stats.Overruns)
	printStat("dropped", stats.Dropped.String())
	printStat("elapsed", stats.Elapsed.Round(time.Millisecond).String())

	if runs != nil {
		rec := persist.NewRunRecord(started, cfg.Scene.Path, eng.TickRate(), cfg.Engine.Duration.Duration, eng.Len(), stats)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		id, err := runs.Save(ctx, rec)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		printStat("run id", fmt.Sprintf("%d", id))
	}
	fmt.Println()
	return nil
}

// loadScene reads the scene file, falling back to a single player when the
// file does not exist.
func loadScene(path string, log *zap.Logger) (*data.Scene, error) {
	scene, err := data.LoadScene(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("scene file not found, using default scene", zap.String("path", path))
		printOK("default scene")
		return data.DefaultScene(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	printOK(fmt.Sprintf("scene %s", path))
	return scene, nil
}

func openDB(cfg config.DatabaseConfig, log *zap.Logger) (*persist.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")

	version, err := persist.RunMigrations(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	printOK(fmt.Sprintf("schema at version %d", version))
	return db, nil
}
