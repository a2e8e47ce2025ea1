package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/providers/memory"
	"github.com/lightningdb/chililog/pkg/stats"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

var testOptions = WorkerOptions{
	PollInterval:      10 * time.Millisecond,
	SaveRetries:       2,
	SaveRetryInterval: time.Millisecond,
}

func testMeta(i int) abstract.EntryMetadata {
	return abstract.EntryMetadata{
		Timestamp: time.Date(2011, 1, 1, 5, 5, 5, 0, time.UTC).Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano),
		Source:    "junit",
		Host:      "localhost",
		Severity:  "Information",
	}
}

func delimitedRepo(name string, workers int) *abstract.RepositoryConfig {
	return &abstract.RepositoryConfig{
		Name:                    name,
		StoreEntriesIndicator:   true,
		StorageQueueWorkerCount: workers,
		Parsers: []abstract.RepositoryParserConfig{{
			Name:       "pipes",
			Kind:       abstract.ParserKindDelimited,
			Properties: map[string]string{abstract.PropertyDelimiter: "|"},
			Fields: []abstract.RepositoryFieldConfig{
				{Name: "name", DataType: abstract.DataTypeString},
				{Name: "n", DataType: abstract.DataTypeInteger},
			},
		}},
	}
}

type fixture struct {
	broker *memory.Broker
	store  *memory.Store
	stats  *stats.RepositoryStats
	repo   *Repository
}

func newFixture(t *testing.T, cfg *abstract.RepositoryConfig, maxDeliver int) *fixture {
	f := &fixture{
		broker: memory.NewBroker(maxDeliver),
		store:  memory.NewStore(),
		stats:  stats.NewRepositoryStats(cfg.Name),
	}
	repo, err := New(cfg, f.broker, f.store, testOptions, logger.Log, f.stats)
	require.NoError(t, err)
	f.repo = repo
	t.Cleanup(func() { require.NoError(t, repo.Stop()) })
	return f
}

func (f *fixture) publish(t *testing.T, bodies ...string) {
	ctx := context.Background()
	for i, body := range bodies {
		require.NoError(t, f.broker.Publish(ctx, f.repo.Name(), testMeta(i), body))
	}
}

func (f *fixture) waitDrained(t *testing.T, persisted int, deadLetters int) {
	name := f.repo.Name()
	require.Eventually(t, func() bool {
		st, err := f.broker.QueueStats(context.Background(), name)
		if err != nil {
			return false
		}
		count, _ := f.store.Count(context.Background(), name)
		return st.Messages == 0 && st.DeadLetters == int64(deadLetters) && count == int64(persisted)
	}, 10*time.Second, 10*time.Millisecond)
}

func requireStateError(t *testing.T, err error) {
	var stateErr *RepositoryStateError
	require.True(t, xerrors.As(err, &stateErr), err)
	code, ok := coded.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, codes.RepositoryState, code)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, delimitedRepo("lifecycle", 3), 0)
	repo := f.repo
	require.Equal(t, abstract.StatusOffline, repo.Status())
	require.NoError(t, repo.Stop())

	require.NoError(t, repo.Start(ctx))
	require.Equal(t, abstract.StatusOnline, repo.Status())
	require.Equal(t, 3, repo.Workers())
	require.Equal(t, 3, repo.LiveWorkers())
	require.EqualValues(t, 1, testutil.ToFloat64(f.stats.Online))

	requireStateError(t, repo.Start(ctx))
	require.Equal(t, abstract.StatusOnline, repo.Status())
	require.Equal(t, 3, repo.LiveWorkers())

	requireStateError(t, repo.SetRepoInfo(delimitedRepo("lifecycle", 5)))
	require.Equal(t, 3, repo.Config().StorageQueueWorkerCount)

	require.NoError(t, repo.Stop())
	require.Equal(t, abstract.StatusOffline, repo.Status())
	require.Equal(t, 0, repo.LiveWorkers())
	require.NoError(t, repo.Stop())

	require.NoError(t, repo.SetRepoInfo(delimitedRepo("lifecycle", 5)))
	require.NoError(t, repo.Start(ctx))
	require.Equal(t, 5, repo.LiveWorkers())
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.stats.Workers) == 5 }, time.Second, 5*time.Millisecond)
}

func TestSetRepoInfoValidates(t *testing.T) {
	f := newFixture(t, delimitedRepo("validated", 1), 0)
	bad := delimitedRepo("validated", 1)
	bad.Parsers[0].Kind = "Xml"
	require.Error(t, f.repo.SetRepoInfo(bad))
	require.Error(t, f.repo.SetRepoInfo(delimitedRepo("renamed", 1)))
	require.Equal(t, abstract.ParserKindDelimited, f.repo.Config().Parsers[0].Kind)
}

func TestThroughputIndependentOfWorkerCount(t *testing.T) {
	const n = 300
	for _, workers := range []int{2, 10} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			f := newFixture(t, delimitedRepo(fmt.Sprintf("throughput-%d", workers), workers), 0)
			require.NoError(t, f.repo.Start(context.Background()))

			bodies := make([]string, n)
			for i := range bodies {
				bodies[i] = fmt.Sprintf("line%d|%d", i, i)
			}
			f.publish(t, bodies...)
			f.waitDrained(t, n, 0)

			require.EqualValues(t, n, testutil.ToFloat64(f.stats.Saved))
			entry := f.store.Entries(f.repo.Name())[0]
			require.Len(t, entry.Fields, 2)
		})
	}
}

func TestBadEntryIsolation(t *testing.T) {
	f := newFixture(t, delimitedRepo("isolation", 4), 0)
	require.NoError(t, f.repo.Start(context.Background()))

	bodies := []string{"a|1", "b|2", "c|3", "line3", "d|4", "e|5"}
	f.publish(t, bodies...)
	f.waitDrained(t, len(bodies)-1, 1)

	dead := f.broker.DeadLetters("isolation")
	require.Len(t, dead, 1)
	require.Equal(t, "line3", dead[0].Body)
	require.NotEmpty(t, dead[0].Reason)
	require.EqualValues(t, 1, testutil.ToFloat64(f.stats.ParseErrors))
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.stats.DeadLettered) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRedeliverPolicy(t *testing.T) {
	cfg := delimitedRepo("redeliver", 1)
	cfg.Parsers[0].ParseFieldErrorHandling = abstract.Redeliver
	f := newFixture(t, cfg, 3)
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1", "b|not a number")
	f.waitDrained(t, 1, 1)
	require.EqualValues(t, 3, testutil.ToFloat64(f.stats.ParseErrors))
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.stats.RolledBack) == 3 }, time.Second, 5*time.Millisecond)
}

func TestNoMatchingParser(t *testing.T) {
	cfg := delimitedRepo("filtered", 1)
	cfg.Parsers[0].AppliesTo = abstract.AppliesToAllowFiltered
	cfg.Parsers[0].AppliesToHostFilter = "web-\\d+"
	f := newFixture(t, cfg, 0)
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1")
	f.waitDrained(t, 0, 1)
	require.Contains(t, f.broker.DeadLetters("filtered")[0].Reason, "no parser")
}

func TestStoreDisabled(t *testing.T) {
	cfg := delimitedRepo("nostore", 2)
	cfg.StoreEntriesIndicator = false
	f := newFixture(t, cfg, 0)
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1", "b|2", "c|3")
	f.waitDrained(t, 0, 0)
	require.EqualValues(t, 3, testutil.ToFloat64(f.stats.Received))
}

func TestSaveIsRetried(t *testing.T) {
	f := newFixture(t, delimitedRepo("retried", 1), 0)
	failures := 2
	f.store.OnSave = func(string, *abstract.RepositoryEntry) error {
		if failures > 0 {
			failures--
			return xerrors.New("store unavailable")
		}
		return nil
	}
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1")
	f.waitDrained(t, 1, 0)
	require.EqualValues(t, 2, testutil.ToFloat64(f.stats.SaveErrors))
}

func TestSaveFailureLeavesMessageForRedelivery(t *testing.T) {
	f := newFixture(t, delimitedRepo("unsaved", 1), 2)
	f.store.OnSave = func(string, *abstract.RepositoryEntry) error {
		return xerrors.New("store unavailable")
	}
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1")
	f.waitDrained(t, 0, 1)
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.stats.RolledBack) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, f.repo.LiveWorkers())
}

func TestRedeliveredMessageKeepsEntryID(t *testing.T) {
	f := newFixture(t, delimitedRepo("redelivered", 1), 0)
	var ids []string
	failures := int(testOptions.SaveRetries) + 1
	f.store.OnSave = func(_ string, entry *abstract.RepositoryEntry) error {
		ids = append(ids, entry.ID)
		if failures > 0 {
			failures--
			return xerrors.New("store unavailable")
		}
		return nil
	}
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "a|1")
	f.waitDrained(t, 1, 0)
	require.EqualValues(t, 1, testutil.ToFloat64(f.stats.RolledBack))
	require.Len(t, ids, int(testOptions.SaveRetries)+2)
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	require.Equal(t, ids[0], f.store.Entries("redelivered")[0].ID)
}

func TestEntryID(t *testing.T) {
	require.Equal(t, EntryID("junit", "42"), EntryID("junit", "42"))
	require.NotEqual(t, EntryID("junit", "42"), EntryID("junit", "43"))
	require.NotEqual(t, EntryID("junit", "42"), EntryID("other", "42"))
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	f := newFixture(t, delimitedRepo("panicky", 1), 0)
	f.store.OnSave = func(_ string, entry *abstract.RepositoryEntry) error {
		if entry.Message == "boom|0" {
			panic("unexpected entry")
		}
		return nil
	}
	require.NoError(t, f.repo.Start(context.Background()))

	f.publish(t, "boom|0", "a|1")
	f.waitDrained(t, 1, 1)
	require.Equal(t, 1, f.repo.LiveWorkers())
}

func TestStartFailureLeavesRepositoryOffline(t *testing.T) {
	cfg := delimitedRepo("broken", 2)
	cfg.Parsers[0].Fields[1].Properties = map[string]string{abstract.FieldPropertyDefaultValue: "not a number"}
	f := newFixture(t, cfg, 0)
	require.Error(t, f.repo.Start(context.Background()))
	require.Equal(t, abstract.StatusOffline, f.repo.Status())
	require.Equal(t, 0, f.repo.Workers())
}
