package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/parsers"
	"github.com/lightningdb/chililog/pkg/stats"
	"go.uber.org/multierr"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// RepositoryStateError is returned by a control operation that is not allowed in the current status.
type RepositoryStateError struct {
	Repository string
	Operation  string
	Status     abstract.RepositoryStatus
}

func (e *RepositoryStateError) Error() string {
	return fmt.Sprintf("cannot %s repository %s while it is %s", e.Operation, e.Repository, e.Status)
}

func (e *RepositoryStateError) Code() coded.Code {
	return codes.RepositoryState
}

func (e *RepositoryStateError) Unwrap() error {
	return nil
}

// Repository runs the storage workers of one repository. Control calls are serialized.
type Repository struct {
	mu      sync.Mutex
	cfg     *abstract.RepositoryConfig
	status  abstract.RepositoryStatus
	broker  abstract.Broker
	store   abstract.EntryStore
	opts    WorkerOptions
	logger  log.Logger
	stats   *stats.RepositoryStats
	workers []*Worker
	// parseLog is shared by the workers of one run.
	parseLog *logger.BatchingLogger
	cancel   context.CancelFunc
}

// New returns an OFFLINE repository. cfg is copied.
func New(cfg *abstract.RepositoryConfig, broker abstract.Broker, store abstract.EntryStore, opts WorkerOptions,
	lgr log.Logger, st *stats.RepositoryStats) (*Repository, error) {
	cfg = cfg.Copy()
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, coded.Wrap(codes.RepositoryConfig, err)
	}
	opts.WithDefaults()
	if st == nil {
		st = stats.NewRepositoryStats(cfg.Name)
	}
	return &Repository{
		cfg:    cfg,
		status: abstract.StatusOffline,
		broker: broker,
		store:  store,
		opts:   opts,
		logger: log.With(lgr, log.String("repository", cfg.Name)),
		stats:  st,
	}, nil
}

func (r *Repository) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Name
}

func (r *Repository) Status() abstract.RepositoryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Config returns a copy of the current configuration.
func (r *Repository) Config() *abstract.RepositoryConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Copy()
}

// Workers is the number of workers launched by the current run.
func (r *Repository) Workers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// LiveWorkers is the number of workers whose loop is still running.
func (r *Repository) LiveWorkers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.workers {
		if w.IsRunning() {
			n++
		}
	}
	return n
}

// Start brings the repository ONLINE with StorageQueueWorkerCount workers.
// On failure nothing is left running and the repository stays OFFLINE.
func (r *Repository) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == abstract.StatusOnline {
		return &RepositoryStateError{Repository: r.cfg.Name, Operation: "start", Status: r.status}
	}
	if err := r.broker.EnsureRepository(ctx, r.cfg); err != nil {
		return xerrors.Errorf("unable to prepare queues of repository %s: %w", r.cfg.Name, err)
	}

	parseLog := logger.NewBatchingLogger(r.logger, time.Minute, 32)
	workers := make([]*Worker, 0, r.cfg.StorageQueueWorkerCount)
	var startErr error
	for i := 0; i < r.cfg.StorageQueueWorkerCount; i++ {
		chain, err := parsers.NewChain(r.cfg, r.logger)
		if err != nil {
			startErr = err
			break
		}
		session, err := r.broker.NewConsumerSession(ctx, r.cfg)
		if err != nil {
			startErr = xerrors.Errorf("unable to open consumer session: %w", err)
			break
		}
		workers = append(workers, newWorker(r.cfg, session, chain, r.store, r.opts, r.logger, parseLog, r.stats))
	}
	if startErr != nil {
		for _, w := range workers {
			_ = w.session.Close()
		}
		parseLog.Close()
		return xerrors.Errorf("unable to start repository %s: %w", r.cfg.Name, startErr)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	for _, w := range workers {
		w.running.Store(true)
		go w.Run(runCtx)
	}
	r.workers = workers
	r.parseLog = parseLog
	r.cancel = cancel
	r.status = abstract.StatusOnline
	r.stats.Online.Set(1)
	r.logger.Info("repository started", log.Int("workers", len(workers)))
	return nil
}

// Stop lets every worker finish its current message, waits for all of them and releases their sessions.
// Stopping an OFFLINE repository does nothing.
func (r *Repository) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == abstract.StatusOffline {
		return nil
	}
	for _, w := range r.workers {
		w.Stop()
	}
	for _, w := range r.workers {
		w.Wait()
	}
	r.cancel()

	var err error
	for _, w := range r.workers {
		err = multierr.Append(err, w.session.Close())
	}
	r.parseLog.Close()
	r.workers = nil
	r.parseLog = nil
	r.cancel = nil
	r.status = abstract.StatusOffline
	r.stats.Online.Set(0)
	r.logger.Info("repository stopped")
	if err != nil {
		return xerrors.Errorf("unable to release sessions of repository %s: %w", r.cfg.Name, err)
	}
	return nil
}

// SetRepoInfo replaces the configuration. It is only allowed while OFFLINE and takes effect on the next Start.
func (r *Repository) SetRepoInfo(cfg *abstract.RepositoryConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == abstract.StatusOnline {
		return &RepositoryStateError{Repository: r.cfg.Name, Operation: "reconfigure", Status: r.status}
	}
	cfg = cfg.Copy()
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return coded.Wrap(codes.RepositoryConfig, err)
	}
	if cfg.Name != r.cfg.Name {
		return coded.Errorf(codes.RepositoryConfig, "cannot rename repository %s to %s", r.cfg.Name, cfg.Name)
	}
	r.cfg = cfg
	return nil
}

func (r *Repository) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%s[%s]", r.cfg, r.status)
}
