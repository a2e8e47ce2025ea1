package nats_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/providers/nats"
	"github.com/lightningdb/chililog/pkg/providers/nats/recipe"
	"github.com/stretchr/testify/require"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func newBroker(t *testing.T) (*nats.Broker, *abstract.RepositoryConfig) {
	if !recipe.Available() {
		t.Skip("set USE_TESTCONTAINERS=1 or NATS_TEST_URL to run nats tests")
	}
	ctx := context.Background()
	cfg, err := recipe.ConfigRecipe(ctx)
	require.NoError(t, err)
	broker, err := nats.NewBroker(ctx, cfg, logger.Log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })

	repo := &abstract.RepositoryConfig{Name: "junit", StorageQueueWorkerCount: 1}
	repo.WithDefaults()
	require.NoError(t, broker.EnsureRepository(ctx, repo))
	return broker, repo
}

func TestConfigNaming(t *testing.T) {
	cfg := &nats.Config{}
	cfg.WithDefaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "chililog_junit", cfg.InputStream("junit"))
	require.Equal(t, "chililog_junit_dlq", cfg.DeadLetterStream("junit"))
	require.Equal(t, "chililog.repo.junit.in", cfg.InputSubject("junit"))
	require.Equal(t, "chililog.repo.junit.dlq", cfg.DeadLetterSubject("junit"))

	cfg.StreamPrefix = "a.b"
	require.Error(t, cfg.Validate())
}

func TestPublishReceiveCommit(t *testing.T) {
	ctx := context.Background()
	broker, repo := newBroker(t)
	meta := abstract.EntryMetadata{Timestamp: "2011-01-01T05:05:05.100Z", Source: "s", Host: "h", Severity: "3"}
	require.NoError(t, broker.Publish(ctx, repo.Name, meta, "hello"))

	session, err := broker.NewConsumerSession(ctx, repo)
	require.NoError(t, err)
	defer session.Close()

	msg, err := session.Receive(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "hello", msg.Body())
	require.Equal(t, meta, msg.Metadata())
	require.Equal(t, 1, msg.Deliveries())
	require.NoError(t, session.Commit(msg))

	require.Eventually(t, func() bool {
		st, err := broker.QueueStats(ctx, repo.Name)
		return err == nil && st.Messages == 0
	}, 5*time.Second, 50*time.Millisecond)

	msg, err = session.Receive(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestRollbackAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	broker, repo := newBroker(t)
	meta := abstract.EntryMetadata{Timestamp: "2011-01-01T05:05:05.100Z", Source: "s", Host: "h"}
	require.NoError(t, broker.Publish(ctx, repo.Name, meta, "poison"))
	require.NoError(t, broker.Publish(ctx, repo.Name, meta, "bad"))

	session, err := broker.NewConsumerSession(ctx, repo)
	require.NoError(t, err)

	poisonDone, badDone := false, false
	for !poisonDone || !badDone {
		msg, err := session.Receive(ctx, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		if msg.Body() == "bad" {
			require.NoError(t, session.DeadLetter(msg, xerrors.New("cannot parse")))
			badDone = true
			continue
		}
		require.NoError(t, session.Rollback(msg))
		poisonDone = msg.Deliveries() == 3
	}

	require.Eventually(t, func() bool {
		st, err := broker.QueueStats(ctx, repo.Name)
		return err == nil && st.Messages == 0 && st.DeadLetters == 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestPublishToUnknownRepository(t *testing.T) {
	broker, _ := newBroker(t)
	require.Error(t, broker.Publish(context.Background(), "missing", abstract.EntryMetadata{}, "x"))
}

func TestPublishFromAnotherProcess(t *testing.T) {
	if !recipe.Available() {
		t.Skip("set USE_TESTCONTAINERS=1 or NATS_TEST_URL to run nats tests")
	}
	ctx := context.Background()
	cfg, err := recipe.ConfigRecipe(ctx)
	require.NoError(t, err)
	server, err := nats.NewBroker(ctx, cfg, logger.Log)
	require.NoError(t, err)
	defer server.Close()
	repo := &abstract.RepositoryConfig{Name: "remote", MaxMemoryPolicy: abstract.MaxMemoryPolicyBlock}
	repo.WithDefaults()
	require.NoError(t, server.EnsureRepository(ctx, repo))

	publisherCfg := *cfg
	publisher, err := nats.NewBroker(ctx, &publisherCfg, logger.Log)
	require.NoError(t, err)
	defer publisher.Close()
	meta := abstract.EntryMetadata{Timestamp: "2011-01-01T05:05:05.100Z", Source: "s", Host: "h"}
	require.NoError(t, publisher.Publish(ctx, repo.Name, meta, "from the cli"))

	st, err := server.QueueStats(ctx, repo.Name)
	require.NoError(t, err)
	require.Equal(t, int64(1), st.Messages)
}

func TestDropPolicyKeepsQueuedLines(t *testing.T) {
	broker, _ := newBroker(t)
	ctx := context.Background()
	repo := &abstract.RepositoryConfig{Name: "dropping", MaxMemory: "1KB", MaxMemoryPolicy: abstract.MaxMemoryPolicyDrop, StorageQueueWorkerCount: 1}
	repo.WithDefaults()
	require.NoError(t, broker.EnsureRepository(ctx, repo))

	meta := abstract.EntryMetadata{Timestamp: "2011-01-01T05:05:05.100Z", Source: "s", Host: "h"}
	for i := 0; i < 20; i++ {
		require.NoError(t, broker.Publish(ctx, repo.Name, meta, fmt.Sprintf("line %02d %0200d", i, i)))
	}
	st, err := broker.QueueStats(ctx, repo.Name)
	require.NoError(t, err)
	require.Less(t, st.Messages, int64(20))

	session, err := broker.NewConsumerSession(ctx, repo)
	require.NoError(t, err)
	defer session.Close()
	msg, err := session.Receive(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.True(t, strings.HasPrefix(msg.Body(), "line 00 "), msg.Body())
}
