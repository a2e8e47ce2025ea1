package nats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/util"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const (
	consumerName = "storage"
	// policyMetadata keeps the max memory policy on the input stream for publishers in other processes.
	policyMetadata = "chililog_max_memory_policy"
	// HeaderDeadLetterReason carries the error that sent a message to the dead-letter stream.
	HeaderDeadLetterReason = "Chililog-Dead-Letter-Reason"
)

// Broker keeps every repository in two JetStream streams: a work queue for input and a dead-letter stream.
// All storage workers of a repository pull from one durable consumer of the input stream.
type Broker struct {
	cfg       *Config
	conn      *nats.Conn
	jetStream jetstream.JetStream
	logger    log.Logger
	policies  *util.ConcurrentMap[string, abstract.MaxMemoryPolicy]
}

var _ abstract.Broker = (*Broker)(nil)

// NewBroker connects to NATS, retrying for up to cfg.ConnectRetry.
func NewBroker(ctx context.Context, cfg *Config, logger log.Logger) (*Broker, error) {
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = cfg.ConnectRetry
	conn, err := backoff.RetryNotifyWithData(func() (*nats.Conn, error) {
		return nats.Connect(cfg.URL, cfg.options()...)
	}, backoff.WithContext(retry, ctx), func(err error, next time.Duration) {
		logger.Warn("nats is not reachable, retrying", log.String("url", cfg.URL), log.Duration("next", next), log.Error(err))
	})
	if err != nil {
		return nil, coded.Wrap(codes.Dial, xerrors.Errorf("error while connecting to nats: %w", err))
	}

	jetStream, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, xerrors.Errorf("error while creating new jetstream instance: %w", err)
	}
	logger.Info("connected to nats", log.Any("config", cfg))
	return &Broker{
		cfg:       cfg,
		conn:      conn,
		jetStream: jetStream,
		logger:    logger,
		policies:  util.NewConcurrentMap[string, abstract.MaxMemoryPolicy](),
	}, nil
}

func (b *Broker) inputStreamConfig(repo *abstract.RepositoryConfig, maxBytes int64) jetstream.StreamConfig {
	cfg := jetstream.StreamConfig{
		Name:        b.cfg.InputStream(repo.Name),
		Description: repo.Description,
		Subjects:    []string{b.cfg.InputSubject(repo.Name)},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.MemoryStorage,
		Replicas:    b.cfg.Replicas,
		MaxBytes:    -1,
		Metadata:    map[string]string{policyMetadata: string(repo.MaxMemoryPolicy)},
	}
	if repo.StorageQueueDurableIndicator {
		cfg.Storage = jetstream.FileStorage
	}
	switch repo.MaxMemoryPolicy {
	case abstract.MaxMemoryPolicyPage:
		// Overflow is paged to disk: the stream is file backed and unbounded.
		cfg.Storage = jetstream.FileStorage
	default:
		cfg.MaxBytes = maxBytes
		cfg.Discard = jetstream.DiscardNew
	}
	if maxBytes <= 0 {
		cfg.MaxBytes = -1
	}
	return cfg
}

// EnsureRepository creates or updates the streams and the storage consumer of a repository.
func (b *Broker) EnsureRepository(ctx context.Context, repo *abstract.RepositoryConfig) error {
	maxBytes, err := repo.MaxMemoryBytes()
	if err != nil {
		return coded.Wrap(codes.RepositoryConfig, err)
	}
	if _, err := b.jetStream.CreateOrUpdateStream(ctx, b.inputStreamConfig(repo, maxBytes)); err != nil {
		return xerrors.Errorf("unable to create input stream of %s: %w", repo.Name, err)
	}
	if _, err := b.jetStream.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      b.cfg.DeadLetterStream(repo.Name),
		Subjects:  []string{b.cfg.DeadLetterSubject(repo.Name)},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		Replicas:  b.cfg.Replicas,
	}); err != nil {
		return xerrors.Errorf("unable to create dead-letter stream of %s: %w", repo.Name, err)
	}
	if _, err := b.consumer(ctx, repo); err != nil {
		return err
	}
	b.policies.Set(repo.Name, repo.MaxMemoryPolicy)
	return nil
}

func (b *Broker) consumer(ctx context.Context, repo *abstract.RepositoryConfig) (jetstream.Consumer, error) {
	consumer, err := b.jetStream.CreateOrUpdateConsumer(ctx, b.cfg.InputStream(repo.Name), jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.cfg.AckWait,
		MaxDeliver:    b.cfg.MaxDeliver,
		MaxAckPending: repo.PageSize,
		FilterSubject: b.cfg.InputSubject(repo.Name),
	})
	if err != nil {
		return nil, xerrors.Errorf("unable to create or update consumer of %s: %w", repo.Name, err)
	}
	return consumer, nil
}

func (b *Broker) NewConsumerSession(ctx context.Context, repo *abstract.RepositoryConfig) (abstract.ConsumerSession, error) {
	consumer, err := b.consumer(ctx, repo)
	if err != nil {
		return nil, err
	}
	return &session{
		broker:     b,
		consumer:   consumer,
		dlqSubject: b.cfg.DeadLetterSubject(repo.Name),
		maxDeliver: b.cfg.MaxDeliver,
	}, nil
}

// Publish writes one raw log line to the input stream of repository, with the metadata in headers.
// A full stream rejects the line: DROP discards it silently, BLOCK retries until ctx is done, FAIL returns the error.
func (b *Broker) Publish(ctx context.Context, repository string, meta abstract.EntryMetadata, body string) error {
	policy, err := b.policy(ctx, repository)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: b.cfg.InputSubject(repository),
		Header:  metadataHeader(meta),
		Data:    []byte(body),
	}
	publish := func() error {
		_, err := b.jetStream.PublishMsg(ctx, msg)
		return err
	}
	switch policy {
	case abstract.MaxMemoryPolicyBlock:
		err = backoff.Retry(func() error {
			err := publish()
			if err != nil && !streamFull(err) {
				return backoff.Permanent(err)
			}
			return err
		}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)), ctx))
	case abstract.MaxMemoryPolicyDrop:
		if err = publish(); streamFull(err) {
			b.logger.Debug("input queue full, line dropped", log.String("repository", repository))
			return nil
		}
	default:
		err = publish()
	}
	if err != nil {
		return coded.Wrap(codes.QueuePublish, xerrors.Errorf("unable to publish to %s: %w", msg.Subject, err))
	}
	return nil
}

// streamFull reports a publish rejected by a stream that hit its MaxBytes or MaxMsgs limit under DiscardNew.
func streamFull(err error) bool {
	var apiErr *jetstream.APIError
	if err == nil || !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Description, "maximum bytes exceeded") ||
		strings.Contains(apiErr.Description, "maximum messages exceeded")
}

// policy is the max memory policy of a repository, read from its input stream when another process created it.
func (b *Broker) policy(ctx context.Context, repository string) (abstract.MaxMemoryPolicy, error) {
	if policy, ok := b.policies.Get(repository); ok {
		return policy, nil
	}
	stream, err := b.jetStream.Stream(ctx, b.cfg.InputStream(repository))
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return "", coded.Errorf(codes.UnknownRepo, "no queue for repository %s", repository)
		}
		return "", coded.Wrap(codes.QueuePublish, xerrors.Errorf("unable to get input stream of %s: %w", repository, err))
	}
	policy := abstract.MaxMemoryPolicy(stream.CachedInfo().Config.Metadata[policyMetadata])
	if policy == "" {
		policy = abstract.MaxMemoryPolicyFail
	}
	b.policies.SetIfAbsent(repository, policy)
	return policy, nil
}

func (b *Broker) QueueStats(ctx context.Context, repository string) (*abstract.QueueStats, error) {
	input, err := b.streamMessages(ctx, b.cfg.InputStream(repository))
	if err != nil {
		return nil, err
	}
	dead, err := b.streamMessages(ctx, b.cfg.DeadLetterStream(repository))
	if err != nil {
		return nil, err
	}
	return &abstract.QueueStats{Messages: input, DeadLetters: dead}, nil
}

func (b *Broker) streamMessages(ctx context.Context, name string) (int64, error) {
	stream, err := b.jetStream.Stream(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return 0, coded.Errorf(codes.UnknownRepo, "stream %s does not exist", name)
		}
		return 0, xerrors.Errorf("unable to get stream %s: %w", name, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, xerrors.Errorf("unable to get info of stream %s: %w", name, err)
	}
	return int64(info.State.Msgs), nil
}

func (b *Broker) Close() error {
	return b.conn.Drain()
}

func metadataHeader(meta abstract.EntryMetadata) nats.Header {
	h := nats.Header{}
	h.Set(abstract.HeaderTimestamp, meta.Timestamp)
	h.Set(abstract.HeaderSource, meta.Source)
	h.Set(abstract.HeaderHost, meta.Host)
	if meta.Severity != "" {
		h.Set(abstract.HeaderSeverity, meta.Severity)
	}
	return h
}

func headerMetadata(h nats.Header) abstract.EntryMetadata {
	return abstract.EntryMetadata{
		Timestamp: h.Get(abstract.HeaderTimestamp),
		Source:    h.Get(abstract.HeaderSource),
		Host:      h.Get(abstract.HeaderHost),
		Severity:  h.Get(abstract.HeaderSeverity),
	}
}
