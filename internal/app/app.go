package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"extinguisher_map/internal/config"
	"extinguisher_map/internal/events"
	"extinguisher_map/internal/floorplan"
	"extinguisher_map/internal/httpapi"
	"extinguisher_map/internal/loader"
	"extinguisher_map/internal/metrics"
	"extinguisher_map/internal/queue"
	"extinguisher_map/internal/state"
	"extinguisher_map/internal/store"
	"extinguisher_map/internal/watch"
)

const (
	enqueueRetryWindow   = 2 * time.Second
	enqueueRetryInterval = 100 * time.Millisecond
	shutdownTimeout      = 10 * time.Second
)

// App wires the data plane components together.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.Metrics
	bus     *events.Bus
	state   *state.State
	queue   *queue.Queue
	watcher *watch.Watcher
	plan    *floorplan.Plan
	mux     *http.ServeMux
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	bus := events.NewBus()

	fetcher := loader.NewFetcher(cfg.FetchTimeout())
	chain := loader.NewChain(logger.Named("loader"), cfg.FetchTimeout(),
		&loader.JSONStrategy{Location: cfg.JSONSource, Fetcher: fetcher, Logger: logger.Named("loader")},
		&loader.CSVStrategy{Location: cfg.CSVSource, Fetcher: fetcher, Logger: logger.Named("loader")},
	)
	s := state.New(state.Options{Loader: chain, Store: st, Metrics: m, Bus: bus, Logger: logger.Named("state")})

	// One worker: reloads must not overlap. The job budget covers both
	// strategies running to their own timeout.
	q := queue.New(cfg.ReloadQueueSize, 1, 3*cfg.FetchTimeout(), m, logger.Named("queue"))

	plan := floorplan.NewPlan(cfg.FloorPlanPath, floorplan.NewMapper(cfg.MapWidth, cfg.MapHeight))

	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		bus:     bus,
		state:   s,
		queue:   q,
		plan:    plan,
		mux:     http.NewServeMux(),
	}
	if cfg.EnableWatcher {
		a.watcher = watch.New(cfg.WatchDebounce(), logger.Named("watch"))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:  cfg,
		State:   s,
		Store:   st,
		Queue:   q,
		Metrics: m,
		Bus:     bus,
		Plan:    plan,
		Reload:  a.EnqueueReload,
		Logger:  logger.Named("http"),
	})
	router.Register(a.mux)
	return a, nil
}

// Start loads the initial dataset and starts the reload worker and the
// watcher. It does not serve HTTP.
func (a *App) Start(ctx context.Context) error {
	a.probeFloorPlan()
	if _, err := a.state.Initialize(ctx); err != nil {
		return err
	}
	a.queue.Start(ctx)
	if a.watcher == nil {
		a.logger.Info("watcher disabled")
		return nil
	}
	reload := func() { a.enqueueWithRetry(ctx, "watch") }
	a.watcher.Watch(a.cfg.JSONSource, reload)
	a.watcher.Watch(a.cfg.CSVSource, reload)
	a.watcher.Watch(a.cfg.FloorPlanPath, func() {
		a.plan.Invalidate()
		a.probeFloorPlan()
	})
	return a.watcher.Start(ctx)
}

// Run starts workers, watcher, and HTTP server.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Close()
		return err
	}
	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("http listening", zap.String("addr", a.cfg.HTTPPort))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	a.Close()
	return err
}

// Close drains the reload queue, drops the dataset and closes the store.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.queue.Stop(ctx)
	a.state.Teardown()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
}

func (a *App) reloadJob(trigger string) queue.Job {
	id := uuid.NewString()
	return queue.Job{
		ID:     id,
		Source: trigger,
		Work: func(ctx context.Context) error {
			_, err := a.state.Reload(ctx, trigger)
			return err
		},
	}
}

// EnqueueReload queues a reload without blocking.
func (a *App) EnqueueReload(trigger string) (string, bool) {
	job := a.reloadJob(trigger)
	return job.ID, a.queue.Enqueue(job)
}

func (a *App) enqueueWithRetry(ctx context.Context, trigger string) {
	job := a.reloadJob(trigger)
	if ok, _ := a.queue.EnqueueWithRetry(ctx, job, enqueueRetryWindow, enqueueRetryInterval); ok {
		a.logger.Info("reload queued", zap.String("job", job.ID), zap.String("trigger", trigger))
	}
}

func (a *App) probeFloorPlan() {
	info, err := floorplan.Probe(a.cfg.FloorPlanPath)
	if err != nil {
		a.logger.Warn("floor plan unavailable", zap.String("path", a.cfg.FloorPlanPath), zap.Error(err))
		return
	}
	if info.Width != a.cfg.MapWidth || info.Height != a.cfg.MapHeight {
		a.logger.Warn("floor plan size differs from configured map size",
			zap.Int("image_width", info.Width),
			zap.Int("image_height", info.Height),
			zap.Int("map_width", a.cfg.MapWidth),
			zap.Int("map_height", a.cfg.MapHeight),
		)
		return
	}
	a.logger.Info("floor plan ready", zap.String("format", info.Format), zap.Int("width", info.Width), zap.Int("height", info.Height))
}

func (a *App) State() *state.State { return a.state }
func (a *App) Queue() *queue.Queue { return a.queue }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Mux() *http.ServeMux { return a.mux }
