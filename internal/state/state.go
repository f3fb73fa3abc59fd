package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"extinguisher_map/internal/dataset"
	"extinguisher_map/internal/events"
	"extinguisher_map/internal/loader"
	"extinguisher_map/internal/metrics"
	"extinguisher_map/internal/store"
)

// ErrAlreadyInitialized is returned by a second Initialize without Teardown.
var ErrAlreadyInitialized = errors.New("state already initialized")

// Load run statuses persisted in the history.
const (
	RunStatusOK    = "ok"
	RunStatusEmpty = "empty"
)

// Loader produces a dataset; *loader.Chain satisfies it.
type Loader interface {
	Load(ctx context.Context) loader.Result
}

// Recorder persists load runs; *store.Store satisfies it.
type Recorder interface {
	RecordLoad(ctx context.Context, r store.LoadRun) error
}

// Options configures a State. Only Loader is required.
type Options struct {
	Loader  Loader
	Store   Recorder
	Metrics *metrics.Metrics
	Bus     *events.Bus
	Logger  *zap.Logger
	Now     func() time.Time
}

// State owns the current snapshot. Readers go through Snapshot and never
// block on a reload in progress.
type State struct {
	opts    Options
	current atomic.Pointer[dataset.Snapshot]
	lastRun atomic.Pointer[store.LoadRun]
	mu      sync.Mutex
}

func New(opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &State{opts: opts}
}

// Initialize performs the first load.
func (s *State) Initialize(ctx context.Context) (store.LoadRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Load() != nil {
		return store.LoadRun{}, ErrAlreadyInitialized
	}
	return s.reloadLocked(ctx, "startup")
}

// Reload runs the loader chain and swaps in the new snapshot. Concurrent
// calls are serialized. When ctx ends before the chain finishes the current
// snapshot is kept and ctx's error is returned.
func (s *State) Reload(ctx context.Context, trigger string) (store.LoadRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx, trigger)
}

func (s *State) reloadLocked(ctx context.Context, trigger string) (store.LoadRun, error) {
	started := s.opts.Now()
	res := s.opts.Loader.Load(ctx)
	if err := ctx.Err(); err != nil {
		s.opts.Logger.Warn("reload abandoned, keeping current dataset", zap.String("trigger", trigger), zap.Error(err))
		return store.LoadRun{}, fmt.Errorf("reload %s: %w", trigger, err)
	}

	snap := dataset.Normalize(res.Raw, res.Source, s.opts.Now())
	s.current.Store(snap)

	run := store.LoadRun{
		ID:            uuid.NewString(),
		Trigger:       trigger,
		Source:        res.Source,
		Status:        RunStatusOK,
		Buildings:     len(snap.Buildings),
		Extinguishers: len(snap.Extinguishers),
		SkippedRows:   res.Raw.SkippedRows,
		StartedAt:     started,
		FinishedAt:    snap.LoadedAt,
	}
	if res.Source == loader.SourceEmpty {
		run.Status = RunStatusEmpty
	}
	if b, err := json.Marshal(res.Attempts); err == nil {
		run.Attempts = b
	}
	s.lastRun.Store(&run)

	s.opts.Metrics.RecordLoad(res.Source, res.Raw.SkippedRows)
	if s.opts.Store != nil {
		if err := s.opts.Store.RecordLoad(ctx, run); err != nil {
			s.opts.Metrics.RecordStoreError()
			s.opts.Logger.Error("record load run", zap.String("load_id", run.ID), zap.Error(err))
		}
	}
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.ReloadEvent{
			LoadID:        run.ID,
			Trigger:       trigger,
			Source:        res.Source,
			Buildings:     run.Buildings,
			Extinguishers: run.Extinguishers,
			LoadedAt:      snap.LoadedAt,
		})
	}
	s.opts.Logger.Info("dataset swapped",
		zap.String("load_id", run.ID),
		zap.String("trigger", trigger),
		zap.String("source", res.Source),
		zap.Int("buildings", run.Buildings),
		zap.Int("extinguishers", run.Extinguishers),
	)
	return run, nil
}

// Teardown drops the current snapshot. Initialize may be called again.
func (s *State) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(nil)
	s.lastRun.Store(nil)
}

// Snapshot returns the live snapshot, or an empty one before the first load.
func (s *State) Snapshot() *dataset.Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return dataset.Empty()
}

// LastRun reports the most recent completed load.
func (s *State) LastRun() (store.LoadRun, bool) {
	run := s.lastRun.Load()
	if run == nil {
		return store.LoadRun{}, false
	}
	return *run, true
}

// Initialized reports whether a dataset has been loaded since the last Teardown.
func (s *State) Initialized() bool {
	return s.current.Load() != nil
}
