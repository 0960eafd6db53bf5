package cmd

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/piquet-h/worldengine/internal/config"
	"github.com/piquet-h/worldengine/internal/debounce"
	"github.com/piquet-h/worldengine/internal/descriptionlayer"
	"github.com/piquet-h/worldengine/internal/eventlog"
	"github.com/piquet-h/worldengine/internal/graph"
	"github.com/piquet-h/worldengine/internal/heading"
	"github.com/piquet-h/worldengine/internal/locationclock"
	"github.com/piquet-h/worldengine/internal/metrics"
	"github.com/piquet-h/worldengine/internal/player"
	"github.com/piquet-h/worldengine/internal/server"
	"github.com/piquet-h/worldengine/internal/telemetry"
	"github.com/piquet-h/worldengine/internal/worldclock"
)

// app holds every process-wide capability the composition root wires,
// per §9's design note replacing the source's reflective injector with
// explicit construction.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	db *badger.DB // nil in memory mode

	graph            graph.Store
	players          player.Store
	headings         heading.Store
	debounce         debounce.Store
	events           eventlog.Store
	worldClock       worldclock.Store
	locationClock    locationclock.Store
	descriptionLayer descriptionlayer.Store

	server *server.Server
}

// buildApp loads configuration, opens storage for the configured
// persistence mode, and wires every C1-C11 component. The caller owns
// calling close() on shutdown.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.Default()}

	switch cfg.Persistence.Mode {
	case config.PersistenceModeMemory:
		a.wireMemoryStores()
	default:
		// No Azure Cosmos SDK is wired into this tree; this core's durable
		// storage is BadgerDB. "cosmos" mode is honored as "durable" and
		// backed by the same BadgerDB path every other durable component
		// in this tree already uses; the container names it validates at
		// startup are carried through for forward compatibility with a
		// future Cosmos-backed Store pair.
		if err := a.wireBadgerStores(); err != nil {
			return nil, err
		}
	}

	a.server = server.New(cfg, logger, server.Deps{
		Graph:    a.graph,
		Players:  a.players,
		Headings: a.headings,
		Debounce: a.debounce,
		Events:   a.events,
		Sink:     telemetry.NoopSink{},
		Metrics:  a.metrics,
	})

	return a, nil
}

func (a *app) wireMemoryStores() {
	a.graph = graph.NewMemoryStore()
	a.players = player.NewMemoryStore()
	a.headings = heading.NewMemoryStore()
	a.debounce = debounce.NewMemoryStore()
	a.events = eventlog.NewMemoryStore()
	a.worldClock = worldclock.NewMemoryStore()
	a.locationClock = locationclock.NewMemoryStore()
	a.descriptionLayer = descriptionlayer.NewMemoryStore()
}

func (a *app) wireBadgerStores() error {
	opts := badger.DefaultOptions(a.cfg.Persistence.DataDir).
		WithSyncWrites(a.cfg.Persistence.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger store at %s: %w", a.cfg.Persistence.DataDir, err)
	}
	a.db = db

	a.graph = graph.NewBadgerStore(db)
	a.players = player.NewBadgerStore(db)
	// The heading store is explicitly single-process (§9: "for
	// horizontally scaled deployments, the heading store ... must be
	// made partition-local or delegated to a durable store"); it stays
	// in-memory even under durable persistence.
	a.headings = heading.NewMemoryStore()
	a.debounce = debounce.NewBadgerStore(db)
	a.events = eventlog.NewBadgerStore(db)
	a.worldClock = worldclock.NewBadgerStore(db)
	a.locationClock = locationclock.NewBadgerStore(db)
	a.descriptionLayer = descriptionlayer.NewBadgerStore(db)

	return nil
}

// close releases every resource buildApp opened.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close badger store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// initLogger builds a zap logger from cfg.Log, switching on the
// configured level and output format.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Log.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Log.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}
