package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/handlers"
	"github.com/bioarchive/studysearch/internal/httpclient"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/ontology"
	"github.com/bioarchive/studysearch/internal/queue"
	"github.com/bioarchive/studysearch/internal/schema"
	"github.com/bioarchive/studysearch/internal/search"
	"github.com/bioarchive/studysearch/internal/services/views"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	Registry *schema.Registry
	Pool     *index.Pool
	TxnMgr   *index.TxnManager

	SearchService   *search.Service
	OntologyService *ontology.Service
	ViewService     *views.Service
	QueueManager    *queue.Manager

	taskStore *badgerhold.Store
	scheduler *cron.Cron

	// HTTP handlers
	APIHandler          *handlers.APIHandler
	SearchHandler       *handlers.SearchHandler
	AutocompleteHandler *handlers.AutocompleteHandler
	IndexHandler        *handlers.IndexHandler
	AdminHandler        *handlers.AdminHandler
	WSHandler           *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if cfg.Index.ResetOnStartup {
		if err := index.RemoveIndexDirs(cfg.Index.BaseDir); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to reset index directories: %w", err)
		}
		logger.Warn().Str("base_dir", cfg.Index.BaseDir).Msg("Index directories removed on startup")
	}

	registry, err := schema.NewRegistry("", logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build field registry: %w", err)
	}
	app.Registry = registry

	pool := index.NewPool(cfg.Index.BaseDir, logger)
	if err := pool.OpenAll(registry); err != nil {
		cancel()
		return nil, err
	}
	app.Pool = pool

	if err := index.SeedFacetDimensions(pool, registry); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to seed facet dimensions: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = cfg.Index.TaskDBPath
	opts.ValueDir = cfg.Index.TaskDBPath
	opts.Logger = nil // disable the default badger logger in favour of arbor
	store, err := badgerhold.Open(opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	app.taskStore = store

	app.ViewService = views.NewService(store, logger)

	app.TxnMgr = index.NewTxnManager(pool, app.ViewService.Lookup, logger)

	executor := index.NewExecutor(pool, logger)

	app.OntologyService = ontology.NewService(pool, executor, cfg, logger)
	if err := app.OntologyService.Initialize(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize ontology: %w", err)
	}
	app.TxnMgr.SetOntologyTagger(app.OntologyService.FacetValues)

	app.SearchService = search.NewService(pool, registry, cfg, logger)

	app.WSHandler = handlers.NewWebSocketHandler(logger)

	app.QueueManager = queue.NewManager(app.TxnMgr, store, cfg, app.WSHandler, logger)
	app.QueueManager.Start(ctx, cfg.Queue.Concurrency)

	app.initScheduler()
	app.initHandlers()

	return app, nil
}

// initScheduler wires the recurring jobs: the view-count reload and the
// ontology refresh
func (a *App) initScheduler() {
	a.scheduler = cron.New()

	if schedule := a.Config.Queue.ViewsReload; schedule != "" {
		if _, err := a.scheduler.AddFunc(schedule, func() {
			if err := a.ViewService.Reload(); err != nil {
				a.Logger.Warn().Err(err).Msg("View-count reload failed")
			}
		}); err != nil {
			a.Logger.Warn().Err(err).Str("schedule", schedule).Msg("Invalid view-count reload schedule")
		}
	}

	if schedule := a.Config.Ontology.UpdateSchedule; schedule != "" {
		if _, err := a.scheduler.AddFunc(schedule, func() {
			client, err := httpclient.NewOutboundClient(a.Config, 10*time.Minute)
			if err != nil {
				a.Logger.Error().Err(err).Msg("Ontology refresh client failed")
				return
			}
			downloader := httpclient.NewDownloader(client, a.Logger)
			if err := a.OntologyService.Refresh(a.ctx, downloader); err != nil {
				a.Logger.Error().Err(err).Msg("Ontology refresh failed")
			}
		}); err != nil {
			a.Logger.Warn().Err(err).Str("schedule", schedule).Msg("Invalid ontology refresh schedule")
		}
	}

	a.scheduler.Start()
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, a.QueueManager, a.Logger)
	a.AutocompleteHandler = handlers.NewAutocompleteHandler(a.OntologyService.Autocomplete(), a.Logger)
	a.IndexHandler = handlers.NewIndexHandler(a.QueueManager, a.Logger)
	a.AdminHandler = handlers.NewAdminHandler(a.Pool, a.Logger)
}

// Close shuts the application down in dependency order: stop accepting
// work, stop the queue workers (items still queued are not processed),
// flush writers, close readers and stores
func (a *App) Close() {
	a.cancelCtx()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.QueueManager != nil {
		a.QueueManager.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.taskStore != nil {
		if err := a.taskStore.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Task store close failed")
		}
	}

	a.Logger.Info().Msg("Application stopped")
}
