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

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/width"

	"github.com/wardsim/wardsim/internal/config"
	"github.com/wardsim/wardsim/internal/core/event"
	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/data"
	"github.com/wardsim/wardsim/internal/grid"
	"github.com/wardsim/wardsim/internal/nav"
	"github.com/wardsim/wardsim/internal/persist"
	"github.com/wardsim/wardsim/internal/scripting"
	"github.com/wardsim/wardsim/internal/system"
	"github.com/wardsim/wardsim/internal/world"
)

// spatialCellSize is the bucket edge of the co-location index, in floor units.
const spatialCellSize = 4

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(ward, runID string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              wardsim  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      hospital ward staffing simulator     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mward:\033[0m %s \033[90m(run %s)\033[0m\n\n", ward, runID)
}

// displayWidth counts terminal columns; wide and fullwidth runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Simulation ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/wardsim.toml"
	if p := os.Getenv("WARDSIM_CONFIG"); p != "" {
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

	runID := uuid.NewString()
	log = log.With(zap.String("run", runID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Load floor plan and rasterize
	fp, err := data.LoadFloorPlan(cfg.Data.FloorPlan)
	if err != nil {
		return fmt.Errorf("load floor plan: %w", err)
	}
	printBanner(fp.Name, runID)

	printSection("floor plan")
	printStat("locations", fp.Count())
	printStat("beds", len(fp.ByKind(data.KindBed)))

	g, err := grid.Build(fp.Boundary, cfg.Grid.MaxDenominator, cfg.Grid.ZoomFactor)
	if err != nil {
		if errors.Is(err, grid.ErrDegenerateGeometry) {
			log.Error("floor plan cannot be rasterized", zap.String("file", cfg.Data.FloorPlan), zap.Error(err))
		}
		return fmt.Errorf("rasterize: %w", err)
	}
	w, h := g.Size()
	printStat("grid columns", w)
	printStat("grid rows", h)
	printStat("wall cells", g.WallCount())
	fx, fy := g.Factors()
	res := g.Resolution()
	log.Debug("grid built",
		zap.Int64("factor_x", fx), zap.Int64("factor_y", fy),
		zap.Float64("cell_w", res.X), zap.Float64("cell_h", res.Y))
	fmt.Println()

	// 4. Path cache
	printSection("path cache")
	cache, closeStore, err := openCache(ctx, cfg, runID, log)
	if err != nil {
		log.Warn("path cache store unavailable, running in memory",
			zap.String("backend", cfg.PathCache.Backend), zap.Error(err))
	}
	defer closeStore()
	printStat("cached routes", cache.Len())
	router := nav.NewRouter(g, nav.NewPlanner(g, cfg.Grid.KeptFields), cache, log.Named("router"))
	fmt.Println()

	// 5. Data tables and scripts
	printSection("data")
	actions, err := data.LoadActionTable(cfg.Data.Actions)
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	printStat("actions", len(actions))

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	luaEngine, err := scripting.NewEngine(cfg.Data.Scripts, seed, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	// 6. Ward state and people
	state, err := world.NewState(fp, spatialCellSize)
	if err != nil {
		return fmt.Errorf("ward state: %w", err)
	}

	runner := coresys.NewRunner()
	bus := event.NewBus()
	sim := cfg.Simulation
	ward := world.NewWard(state, router, luaEngine, actions, runner, bus, world.Options{
		WalkingSpeed:    sim.WalkingSpeed,
		ShiftLength:     sim.ShiftLength,
		MedicationRound: sim.MedicationRound,
		Tolerance:       sim.ComparisonBuffer,
	}, log.Named("ward"))
	booked := ward.Populate(sim.Doctors, sim.Nurses, sim.Occupancy)

	printSection("ward")
	printStat("doctors", sim.Doctors)
	printStat("nurses", sim.Nurses)
	printStat("patients booked", booked)
	fmt.Println()

	// 7. Systems
	census := system.NewCensusSystem(state, bus, sim.CensusInterval, log.Named("census"))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewArrivalSystem(ward, log.Named("arrival")))
	runner.Register(system.NewSchedulerSystem(ward, bus, log.Named("scheduler")))
	runner.Register(system.NewSpatialSystem(state))
	runner.Register(census)
	runner.Register(system.NewCleanupSystem(state.World()))

	// 8. Tick loop
	total := sim.Shifts * sim.ShiftLength
	printSection("running")
	printReady(fmt.Sprintf("%d shifts of %d ticks", sim.Shifts, sim.ShiftLength))
	fmt.Println()

	var ticker *time.Ticker
	if sim.TickRate > 0 {
		ticker = time.NewTicker(sim.TickRate)
		defer ticker.Stop()
	}

	started := time.Now()
loop:
	for runner.Now() < total {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				break loop
			}
		} else if ctx.Err() != nil {
			break
		}
		runner.Tick(ctx)
	}
	if ctx.Err() != nil {
		log.Info("interrupted", zap.Int("tick", runner.Now()))
	}

	census.Log("final census")
	stats := router.Stats()
	log.Info("routing",
		zap.Int("cache_hits", stats.Hits),
		zap.Int("cache_misses", stats.Misses),
		zap.Int("plans", stats.Plans),
		zap.Int("unreachable", stats.Failed),
		zap.Int("cache_io_failures", stats.IOFails),
		zap.Int("cached_routes", cache.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// openCache builds the path cache over the configured backend and loads it.
// The cache and close func are always usable: when the store cannot be
// opened or read, the cache runs in memory only and the returned error,
// wrapping nav.ErrCacheIO, says why.
func openCache(ctx context.Context, cfg *config.Config, runID string, log *zap.Logger) (*nav.Cache, func(), error) {
	tolerance := cfg.Simulation.ComparisonBuffer
	store, closeStore, err := openStore(ctx, cfg, runID, log)
	if err != nil {
		return nav.NewCache(nil, tolerance, log.Named("cache")), func() {}, fmt.Errorf("%w: open %s: %v", nav.ErrCacheIO, cfg.PathCache.Backend, err)
	}
	cache := nav.NewCache(store, tolerance, log.Named("cache"))
	if err := cache.Load(ctx); err != nil {
		closeStore()
		return nav.NewCache(nil, tolerance, log.Named("cache")), func() {}, err
	}
	if pathLog, ok := store.(*persist.PathLog); ok && cache.Len() > 0 {
		if err := pathLog.Compact(ctx, cache.Records()); err != nil {
			log.Warn("path log compaction failed", zap.Error(err))
		}
	}
	return cache, closeStore, nil
}

// openStore opens the configured path-cache backend. The returned close func
// is always non-nil.
func openStore(ctx context.Context, cfg *config.Config, runID string, log *zap.Logger) (nav.Store, func(), error) {
	noop := func() {}
	pc := cfg.PathCache
	switch pc.Backend {
	case "memory":
		printOK("in-memory only")
		return nil, noop, nil

	case "file":
		printOK(fmt.Sprintf("path log %s", pc.File))
		return persist.NewPathLog(pc.File, log.Named("pathlog")), noop, nil

	case "sqlite":
		s, err := persist.OpenSQLite(ctx, pc.SQLitePath, runID)
		if err != nil {
			return nil, noop, err
		}
		printOK(fmt.Sprintf("sqlite %s", pc.SQLitePath))
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := persist.NewDB(connCtx, cfg.Database, log.Named("db"))
		if err != nil {
			return nil, noop, fmt.Errorf("database: %w", err)
		}
		printOK("PostgreSQL connected")
		version, err := db.Migrate(connCtx)
		if err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))
		repo := persist.NewPathCacheRepo(db, runID)
		n, err := repo.Count(connCtx)
		if err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("count stored routes: %w", err)
		}
		printStat("stored routes", n)
		return repo, db.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown backend %q", pc.Backend)
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
