package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ldaengine/adapters/excel"
	"ldaengine/adapters/sqlstore"
	"ldaengine/app"
	"ldaengine/domain/roster"
	"ldaengine/internal/api"
	"ldaengine/internal/config"
	"ldaengine/internal/lda"
	"ldaengine/internal/logging"
	"ldaengine/internal/masterlist"
	"ldaengine/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB   *sqlx.DB
	Runs ports.RunRepository

	// Settings are the file-configured defaults for every run.
	Settings roster.Settings

	Opener  ports.WorkbookOpener
	Service *app.RetentionService
	SSEHub  *api.SSEHub
}

// New wires the container from cfg. The run ledger is opened and migrated.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger = logging.OrNop(logger)

	settings, err := config.LoadBaseSettings(cfg.Paths)
	if err != nil {
		return nil, err
	}

	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Runs:     sqlstore.NewRunRepository(db),
		Settings: settings,
		Opener:   excel.Opener{Logger: logger},
	}
	c.Service = app.NewRetentionService(c.Opener, c.Runs, ServiceOptions(cfg.Engine), logger)

	logger.Info("container initialized",
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("master_sheet", settings.MasterSheetName()))
	return c, nil
}

// ServiceOptions maps engine limits onto both pipelines.
func ServiceOptions(e config.EngineConfig) app.ServiceOptions {
	opts := app.DefaultServiceOptions()
	opts.LDA = lda.Options{
		ColorSampleRows: e.ColorSampleRows,
		DateSampleRows:  e.DateSampleRows,
		ScaleSampleRows: e.ScaleSampleRows,
		Writer:          e.WriterConfig(),
	}
	opts.Merge = masterlist.Options{
		ColorSampleRows: e.ColorSampleRows,
		DateSampleRows:  e.DateSampleRows,
		Writer:          e.WriterConfig(),
	}
	return opts
}

// Server builds the HTTP API and its SSE hub.
func (c *Container) Server() *api.Server {
	if c.SSEHub == nil {
		c.SSEHub = api.NewSSEHub(c.Logger)
	}
	return api.NewServer(c.Service, c.SSEHub, api.Options{
		Settings: c.Settings,
		Workbook: c.Config.Paths.Workbook,
		GinMode:  c.Config.Server.GinMode,
	}, c.Logger)
}

// Shutdown releases everything New and Server acquired.
func (c *Container) Shutdown() error {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
