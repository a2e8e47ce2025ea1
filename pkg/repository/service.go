package repository

import (
	"context"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/stats"
	"github.com/lightningdb/chililog/pkg/util"
	"go.uber.org/multierr"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
	"golang.org/x/sync/errgroup"
)

// Service owns every repository of the server process.
type Service struct {
	broker  abstract.Broker
	store   abstract.EntryStore
	opts    WorkerOptions
	logger  log.Logger
	metrics *stats.Metrics
	repos   *util.ConcurrentMap[string, *Repository]
}

// NewService returns an empty service. metrics may be nil.
func NewService(broker abstract.Broker, store abstract.EntryStore, opts WorkerOptions, logger log.Logger, metrics *stats.Metrics) *Service {
	if metrics == nil {
		metrics = stats.NewMetrics(nil)
	}
	opts.WithDefaults()
	return &Service{
		broker:  broker,
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		repos:   util.NewConcurrentMap[string, *Repository](),
	}
}

// Load registers repositories from configuration. Nothing is registered if any config is invalid.
func (s *Service) Load(configs []abstract.RepositoryConfig) error {
	repos := make([]*Repository, 0, len(configs))
	seen := map[string]bool{}
	for i := range configs {
		if seen[configs[i].Name] {
			return coded.Errorf(codes.RepositoryConfig, "repository %s is configured twice", configs[i].Name)
		}
		seen[configs[i].Name] = true
		if _, ok := s.repos.Get(configs[i].Name); ok {
			return coded.Errorf(codes.RepositoryConfig, "repository %s is already registered", configs[i].Name)
		}
		repo, err := New(&configs[i], s.broker, s.store, s.opts, s.logger, s.metrics.For(configs[i].Name))
		if err != nil {
			return err
		}
		repos = append(repos, repo)
	}
	for _, repo := range repos {
		s.repos.Set(repo.Name(), repo)
	}
	return nil
}

// Start brings up the repositories whose startup status is ONLINE.
func (s *Service) Start(ctx context.Context) error {
	return s.start(ctx, func(r *Repository) bool {
		return r.Config().StartupStatus == abstract.StatusOnline
	})
}

// StartAll brings up every OFFLINE repository.
func (s *Service) StartAll(ctx context.Context) error {
	return s.start(ctx, func(*Repository) bool { return true })
}

func (s *Service) start(ctx context.Context, filter func(*Repository) bool) error {
	var err error
	for _, repo := range s.repos.Values() {
		if repo.Status() == abstract.StatusOnline || !filter(repo) {
			continue
		}
		if startErr := repo.Start(ctx); startErr != nil {
			err = multierr.Append(err, startErr)
		}
	}
	return err
}

// Stop takes every repository OFFLINE in parallel.
func (s *Service) Stop() error {
	var g errgroup.Group
	for _, repo := range s.repos.Values() {
		g.Go(repo.Stop)
	}
	if err := g.Wait(); err != nil {
		return xerrors.Errorf("unable to stop repositories: %w", err)
	}
	return nil
}

// Repositories returns the registered repositories ordered by name.
func (s *Service) Repositories() []*Repository {
	return s.repos.Values()
}

func (s *Service) Get(name string) (*Repository, error) {
	repo, ok := s.repos.Get(name)
	if !ok {
		return nil, coded.Errorf(codes.UnknownRepo, "repository %s is not configured", name)
	}
	return repo, nil
}

// Put adds a repository or reconfigures an OFFLINE one.
func (s *Service) Put(cfg *abstract.RepositoryConfig) (*Repository, error) {
	if repo, ok := s.repos.Get(cfg.Name); ok {
		if err := repo.SetRepoInfo(cfg); err != nil {
			return nil, err
		}
		return repo, nil
	}
	repo, err := New(cfg, s.broker, s.store, s.opts, s.logger, s.metrics.For(cfg.Name))
	if err != nil {
		return nil, err
	}
	if !s.repos.SetIfAbsent(cfg.Name, repo) {
		return s.Put(cfg)
	}
	return repo, nil
}

// Delete stops the repository and forgets it. Queues and stored entries are kept.
func (s *Service) Delete(name string) error {
	repo, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := repo.Stop(); err != nil {
		return err
	}
	s.repos.Delete(name)
	s.metrics.Forget(name)
	return nil
}

// Online counts the ONLINE repositories.
func (s *Service) Online() int {
	n := 0
	for _, repo := range s.repos.Values() {
		if repo.Status() == abstract.StatusOnline {
			n++
		}
	}
	return n
}

func (s *Service) Broker() abstract.Broker {
	return s.broker
}

func (s *Service) Store() abstract.EntryStore {
	return s.store
}
