package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/parsers"
	"github.com/lightningdb/chililog/pkg/stats"
	"go.uber.org/atomic"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// WorkerOptions tune the storage workers of every repository.
type WorkerOptions struct {
	// PollInterval bounds one receive call, and so how long Stop waits for an idle worker.
	PollInterval time.Duration `yaml:"poll_interval" log:"true"`
	// SaveRetries is how many times a failed store write is retried before the message is rolled back.
	SaveRetries uint64 `yaml:"save_retries" log:"true"`
	// SaveRetryInterval is the first delay between store write retries; later delays grow exponentially.
	SaveRetryInterval time.Duration `yaml:"save_retry_interval" log:"true"`
}

func (o *WorkerOptions) WithDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.SaveRetries == 0 {
		o.SaveRetries = 5
	}
	if o.SaveRetryInterval <= 0 {
		o.SaveRetryInterval = 200 * time.Millisecond
	}
}

// entryNamespace seeds entry ids derived from queue message ids.
var entryNamespace = uuid.MustParse("7a0c3f5e-2b1d-4c8e-9f61-5d2a8b4e6c10")

// EntryID is the id of the entry stored for message messageID of repository.
// Every delivery of a message yields the same id, so a redelivered message overwrites nothing and adds nothing.
func EntryID(repository, messageID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(repository+"/"+messageID)).String()
}

// Worker is one consumer of a repository's input queue. It owns its session and its parser chain.
type Worker struct {
	id         string
	repository string
	store      bool
	session    abstract.ConsumerSession
	chain      *parsers.Chain
	entries    abstract.EntryStore
	opts       WorkerOptions
	logger     log.Logger
	parseLog   log.Logger
	stats      *stats.RepositoryStats

	stopping *atomic.Bool
	running  *atomic.Bool
	done     chan struct{}
}

func newWorker(cfg *abstract.RepositoryConfig, session abstract.ConsumerSession, chain *parsers.Chain, entries abstract.EntryStore,
	opts WorkerOptions, lgr log.Logger, parseLog log.Logger, st *stats.RepositoryStats) *Worker {
	id := uuid.NewString()
	return &Worker{
		id:         id,
		repository: cfg.Name,
		store:      cfg.StoreEntriesIndicator,
		session:    session,
		chain:      chain,
		entries:    entries,
		opts:       opts,
		logger:     log.With(lgr, log.String("worker", id)),
		parseLog:   parseLog,
		stats:      st,
		stopping:   atomic.NewBool(false),
		running:    atomic.NewBool(false),
		done:       make(chan struct{}),
	}
}

func (w *Worker) ID() string {
	return w.id
}

// IsRunning reports whether the receive loop has not exited yet.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Stop asks the loop to exit after the message in hand. It does not wait.
func (w *Worker) Stop() {
	w.stopping.Store(true)
}

// Wait blocks until the loop has exited.
func (w *Worker) Wait() {
	<-w.done
}

// Run receives messages until Stop is called or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer w.running.Store(false)
	w.stats.Workers.Inc()
	defer w.stats.Workers.Dec()

	w.logger.Debug("storage worker started")
	for !w.stopping.Load() {
		msg, err := w.session.Receive(ctx, w.opts.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Warn("receive failed", log.Error(err))
			w.sleep(ctx, w.opts.PollInterval)
			continue
		}
		if msg == nil {
			continue
		}
		w.stats.Received.Inc()
		w.handle(ctx, msg)
	}
	w.logger.Debug("storage worker stopped")
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (w *Worker) handle(ctx context.Context, msg abstract.QueueMessage) {
	var parser parsers.EntryParser
	defer func() {
		if r := recover(); r != nil {
			err := xerrors.Errorf("panic while handling message %s: %v", msg.ID(), r)
			w.parseFailed(msg, parser, &parsers.EntryParseError{Repository: w.repository, Err: err})
		}
	}()

	entry, parser, err := w.chain.Parse(msg.Metadata(), msg.Body())
	if err != nil {
		w.parseFailed(msg, parser, err)
		return
	}
	entry.ID = EntryID(w.repository, msg.ID())
	if w.store {
		if err := w.save(ctx, entry); err != nil {
			errors.LogError(w.logger, "entry not saved, message left for redelivery", err, log.String("message", msg.ID()))
			w.rollback(msg)
			return
		}
	}
	if err := w.session.Commit(msg); err != nil {
		w.logger.Error("commit failed", log.String("message", msg.ID()), log.Error(err))
	}
}

// parseFailed applies the field error policy of the parser that rejected msg.
// Without a parser (no parser applies) the message is dead-lettered.
func (w *Worker) parseFailed(msg abstract.QueueMessage, parser parsers.EntryParser, err error) {
	w.stats.ParseErrors.Inc()
	policy := abstract.SkipEntry
	parserName := ""
	if parser != nil {
		policy = parser.Config().ParseFieldErrorHandling
		parserName = parser.Config().Name
	}
	w.parseLog.Warn("cannot parse entry",
		log.String("repository", w.repository),
		log.String("parser", parserName),
		log.String("source", msg.Metadata().Source),
		log.String("host", msg.Metadata().Host),
		log.Int("deliveries", msg.Deliveries()),
		log.Error(err))

	if policy == abstract.Redeliver {
		w.rollback(msg)
		return
	}
	if err := w.session.DeadLetter(msg, err); err != nil {
		w.logger.Error("dead-letter failed", log.String("message", msg.ID()), log.Error(err))
		return
	}
	w.stats.DeadLettered.Inc()
}

func (w *Worker) rollback(msg abstract.QueueMessage) {
	if err := w.session.Rollback(msg); err != nil {
		w.logger.Error("rollback failed", log.String("message", msg.ID()), log.Error(err))
		return
	}
	w.stats.RolledBack.Inc()
}

func (w *Worker) save(ctx context.Context, entry *abstract.RepositoryEntry) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = w.opts.SaveRetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(retry, w.opts.SaveRetries), ctx)

	err := backoff.RetryNotify(func() error {
		start := time.Now()
		err := w.entries.Save(ctx, w.repository, entry)
		w.stats.SaveDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			w.stats.SaveErrors.Inc()
			return err
		}
		return nil
	}, policy, func(err error, next time.Duration) {
		w.logger.Warn(fmt.Sprintf("save failed, retrying in %v", next), log.String("entry", entry.ID), log.Error(err))
	})
	if err != nil {
		return coded.Wrap(codes.StoreSave, xerrors.Errorf("unable to save entry %s: %w", entry.ID, err))
	}
	w.stats.Saved.Inc()
	return nil
}
