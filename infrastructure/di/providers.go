package di

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"synapse/application/services"
	"synapse/application/subscriptions"
	"synapse/infrastructure/config"
	"synapse/infrastructure/persistence/memstore"
	"synapse/infrastructure/persistence/sqlite"
	"synapse/infrastructure/scheduler"
	"synapse/infrastructure/similarity"
	pkgerrors "synapse/pkg/errors"
)

// Container holds the fully wired engine. Construction is explicit and
// ordered so dependency direction stays obvious.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Concepts     *memstore.ConceptStore
	Associations *memstore.AssociationStore
	Hub          *subscriptions.Hub
	Gateway      *sqlite.Gateway
	Recall       *services.RecallService
	Consolidator *services.ConsolidationService
	Memory       *services.MemoryService
	Scheduler    *scheduler.Scheduler
}

// NewContainer wires the engine from configuration
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid configuration").WithCause(err)
	}

	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	concepts := memstore.NewConceptStore(cfg.Engine, logger)
	associations := memstore.NewAssociationStore(concepts, cfg.Engine, logger)
	hub := subscriptions.NewHub(logger)

	gateway, err := sqlite.NewGateway(cfg.SnapshotDBPath, logger)
	if err != nil {
		return nil, err
	}

	recall := services.NewRecallService(
		concepts, associations, similarity.NewLexicalProvider(), hub, cfg.Engine, logger,
	)
	consolidator := services.NewConsolidationService(associations, hub, cfg.Engine, logger)
	memory := services.NewMemoryService(
		concepts, associations, recall, consolidator, gateway, hub, cfg.Engine, logger,
	)

	sched, err := scheduler.New(cfg.ConsolidationSchedule, memory, cfg.AutoSnapshot, logger)
	if err != nil {
		gateway.Close()
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Concepts:     concepts,
		Associations: associations,
		Hub:          hub,
		Gateway:      gateway,
		Recall:       recall,
		Consolidator: consolidator,
		Memory:       memory,
		Scheduler:    sched,
	}, nil
}

// Shutdown stops background work and releases resources
func (c *Container) Shutdown() error {
	c.Scheduler.Stop()
	err := c.Memory.Close()
	_ = c.Logger.Sync()
	return err
}

// ProvideLogger builds the zap logger for the configured environment
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build logger")
	}
	return logger, nil
}
