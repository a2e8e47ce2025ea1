package mongo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// CollectionPrefix names the collection of a repository: <prefix><repository>.
const CollectionPrefix = "repo_"

// Store writes entries to one collection per repository.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	logger  log.Logger
	indexed *util.ConcurrentMap[string, bool]
}

var _ abstract.EntryStore = (*Store)(nil)

// NewStore connects and pings the server, retrying for up to cfg.ConnectRetry.
func NewStore(ctx context.Context, cfg *Config, logger log.Logger) (*Store, error) {
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, coded.Wrap(codes.Dial, xerrors.Errorf("unable to connect to mongo: %w", err))
	}
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = cfg.ConnectRetry
	err = backoff.RetryNotify(func() error {
		return client.Ping(ctx, readpref.Primary())
	}, backoff.WithContext(retry, ctx), func(err error, next time.Duration) {
		logger.Warn("mongo is not reachable, retrying", log.Duration("next", next), log.Error(err))
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, coded.Wrap(codes.Dial, xerrors.Errorf("unable to ping mongo: %w", err))
	}
	logger.Info("connected to mongo", log.Any("config", cfg))
	return &Store{
		client:  client,
		db:      client.Database(cfg.Database),
		logger:  logger,
		indexed: util.NewConcurrentMap[string, bool](),
	}, nil
}

func (s *Store) collection(repository string) *mongo.Collection {
	return s.db.Collection(CollectionPrefix + repository)
}

// ensureIndexes creates the search indexes of a repository collection once per process.
func (s *Store) ensureIndexes(ctx context.Context, repository string) error {
	if _, ok := s.indexed.Get(repository); ok {
		return nil
	}
	_, err := s.collection(repository).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: KeyTimestamp, Value: -1}}},
		{Keys: bson.D{{Key: KeyKeywords, Value: 1}}},
		{Keys: bson.D{{Key: KeySeverity, Value: 1}, {Key: KeyTimestamp, Value: -1}}},
	})
	if err != nil {
		return xerrors.Errorf("unable to create indexes of %s: %w", repository, err)
	}
	s.indexed.Set(repository, true)
	s.logger.Info("collection indexes are ready", log.String("repository", repository))
	return nil
}

func (s *Store) Save(ctx context.Context, repository string, entry *abstract.RepositoryEntry) error {
	if err := s.ensureIndexes(ctx, repository); err != nil {
		return coded.Wrap(codes.StoreSave, err)
	}
	if _, err := s.collection(repository).InsertOne(ctx, Document(entry)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// saved by an earlier delivery whose commit was lost
			return nil
		}
		return coded.Wrap(codes.StoreSave, xerrors.Errorf("unable to insert entry %s: %w", entry.ID, err))
	}
	return nil
}

func (s *Store) Count(ctx context.Context, repository string) (int64, error) {
	n, err := s.collection(repository).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, xerrors.Errorf("unable to count entries of %s: %w", repository, err)
	}
	return n, nil
}

// Drop removes the collection of a repository.
func (s *Store) Drop(ctx context.Context, repository string) error {
	s.indexed.Delete(repository)
	return s.collection(repository).Drop(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
