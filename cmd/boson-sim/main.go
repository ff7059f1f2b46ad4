package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/boson/simcore/internal/config"
	"github.com/boson/simcore/internal/core/event"
	coresys "github.com/boson/simcore/internal/core/system"
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/persist"
	"github.com/boson/simcore/internal/scripting"
	"github.com/boson/simcore/internal/sim"
	"github.com/boson/simcore/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(mapName, scenario string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Boson simcore  v0.1.0          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       deterministic lock-step engine      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mmap:\033[0m %s \033[90m(%s)\033[0m\n\n", mapName, scenario)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Simulation host ───────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/sim.toml"
	if p := os.Getenv("BOSON_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load data tables and scenario
	scenario, err := data.LoadScenario(cfg.Data.Scenario)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	mapName := scenario.Map
	if mapName == "" {
		mapName = cfg.Data.Map
	}
	printBanner(mapName, cfg.Data.Scenario)

	printSection("data")
	units, err := data.LoadUnitTable(cfg.Data.UnitList)
	if err != nil {
		return fmt.Errorf("unit list: %w", err)
	}
	printStat("unit types", units.Count())

	maps, err := data.LoadMapTable(cfg.Data.MapList, cfg.Data.TileDir)
	if err != nil {
		return fmt.Errorf("map list: %w", err)
	}
	printStat("maps", maps.Count())
	m := maps.Get(mapName)
	if m == nil {
		return fmt.Errorf("map %q not in %s", mapName, cfg.Data.MapList)
	}
	printStat("scenario units", len(scenario.Units))
	printStat("scenario orders", len(scenario.Orders))

	// 4. Formula scripts
	formulas, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer formulas.Close()
	printOK(fmt.Sprintf("lua formulas loaded (api %d)", scripting.APIVersion))
	fmt.Println()

	// 5. Engine
	players, err := sim.PlayersFromScenario(scenario)
	if err != nil {
		return fmt.Errorf("players: %w", err)
	}
	bus := event.NewBus()
	engine, err := sim.NewEngine(sim.OptionsFromConfig(cfg.Simulation, logEffects{log: log}),
		m, units, players, formulas, bus, log)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	keys, orders, err := engine.Setup(scenario)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if cfg.Data.ReplayIn != "" {
		if orders, err = ordersFromReplay(cfg.Data.ReplayIn); err != nil {
			return err
		}
		printOK(fmt.Sprintf("orders replayed from %s", cfg.Data.ReplayIn))
	}
	subscribeLogs(bus, log)

	// 6. Optional desync ledger
	printSection("ledger")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		sessions *persist.SessionRepo
		session  int64
		journal  *persist.OrderLogRepo
		digests  *persist.DigestRepo
		ref      map[uint64]string
	)
	db, err := persist.NewDB(ctx, cfg.Database, log)
	switch {
	case errors.Is(err, persist.ErrNoDSN):
		printOK("disabled (no dsn)")
	case err != nil:
		return fmt.Errorf("database: %w", err)
	default:
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db.Pool)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))

		sessions = persist.NewSessionRepo(db)
		journal = persist.NewOrderLogRepo(db)
		digests = persist.NewDigestRepo(db)
		session, err = sessions.Create(ctx, mapName, cfg.Data.Scenario)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		printStat("session", int(session))

		if cfg.Digest.VerifySession != 0 {
			ref, err = digests.Load(ctx, cfg.Digest.VerifySession)
			if err != nil {
				return fmt.Errorf("load reference session %d: %w", cfg.Digest.VerifySession, err)
			}
			printStat("reference digests", len(ref))
		}
	}
	fmt.Println()

	// 7. Systems
	orderSys := system.NewOrderSystem(engine, orders, log)
	digestSys := system.NewDigestSystem(engine, cfg.Digest.Interval, log).Verify(ref)
	if sessions != nil {
		orderSys.WithJournal(journal, session)
		digestSys.WithStore(digests, session)
	}
	if cfg.Data.ReplayOut != "" {
		replay, err := persist.CreateReplayFile(cfg.Data.ReplayOut)
		if err != nil {
			return err
		}
		defer replay.Close()
		orderSys.WithJournal(replay, session)
	}
	runner := coresys.NewRunner()
	runner.Register(orderSys)
	runner.Register(system.NewAdvanceSystem(engine))
	runner.Register(system.NewNotifySystem(bus, log))
	runner.Register(digestSys)

	// 8. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("%d keyed units, %d orders", len(keys), len(orders)))
	printReady(fmt.Sprintf("tick %s × %d per frame", cfg.Loop.TickRate, cfg.Loop.AdvancesPerFrame))
	fmt.Println()

	var tick uint64
loop:
	for {
		select {
		case <-ticker.C:
			for i := 0; i < cfg.Loop.AdvancesPerFrame; i++ {
				runner.Tick(tick)
				tick++
				if cfg.Loop.MaxTicks > 0 && tick >= cfg.Loop.MaxTicks {
					log.Info("tick limit reached", zap.Uint64("ticks", tick))
					break loop
				}
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			break loop
		}
	}

	// 9. Shutdown
	final := engine.StateDigest()
	if at, diverged := digestSys.Divergence(); diverged {
		log.Error("run diverged", zap.Uint64("first_tick", at))
	}
	if sessions != nil {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer saveCancel()
		if err := digestSys.Flush(saveCtx); err != nil {
			log.Error("digest flush", zap.Error(err))
		}
		if err := sessions.Finish(saveCtx, session, engine.Tick(), final); err != nil {
			log.Error("finish session", zap.Error(err))
		}
	}
	engine.Quit()
	log.Info("simulation stopped",
		zap.Uint64("tick", tick), zap.String("digest", final),
		zap.Int("orders_rejected", orderSys.Rejected()))
	return nil
}

// ordersFromReplay decodes a replay file. Each order keeps the tick it was
// applied at in the recorded run.
func ordersFromReplay(path string) ([]sim.Order, error) {
	recs, err := persist.ReadReplayFile(path)
	if err != nil {
		return nil, err
	}
	orders := make([]sim.Order, 0, len(recs))
	for _, rec := range recs {
		var o sim.Order
		if err := o.UnmarshalBinary(rec.Payload); err != nil {
			return nil, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
		o.Tick = rec.Tick
		orders = append(orders, o)
	}
	return orders, nil
}

// logEffects forwards engine side effects to the log; there is no renderer
// or mixer in the headless host.
type logEffects struct {
	log *zap.Logger
}

func (l logEffects) Explosion(id item.ID, x, y int32, tick uint64) {
	l.log.Debug("explosion", zap.Uint64("id", uint64(id)), zap.Int32("x", x), zap.Int32("y", y), zap.Uint64("tick", tick))
}

func (l logEffects) Impact(target, attacker item.ID, x, y int32, tick uint64) {
	l.log.Debug("impact", zap.Uint64("target", uint64(target)), zap.Uint64("attacker", uint64(attacker)),
		zap.Int32("x", x), zap.Int32("y", y), zap.Uint64("tick", tick))
}

func (l logEffects) Sound(name string) {
	l.log.Debug("sound", zap.String("name", name))
}

func subscribeLogs(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.UnitDestroyed) {
		log.Info("unit destroyed", zap.Uint64("id", uint64(e.ID)), zap.Uint32("owner", e.Owner), zap.Uint64("tick", e.Tick))
	})
	event.Subscribe(bus, func(e event.UnitProduced) {
		log.Debug("unit produced", zap.Uint64("id", uint64(e.ID)), zap.Int32("type", e.TypeID), zap.Uint64("tick", e.Tick))
	})
	event.Subscribe(bus, func(e event.ConstructionCompleted) {
		log.Debug("construction completed", zap.Uint64("id", uint64(e.ID)), zap.Uint64("tick", e.Tick))
	})
	event.Subscribe(bus, func(e event.PlayerOutOfGame) {
		log.Info("player out of game", zap.Uint32("player", e.Player), zap.Uint64("tick", e.Tick))
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
