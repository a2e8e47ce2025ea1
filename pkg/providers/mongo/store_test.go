package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/providers/mongo"
	"github.com/lightningdb/chililog/pkg/providers/mongo/recipe"
	"github.com/stretchr/testify/require"
)

func TestSaveAndCount(t *testing.T) {
	if !recipe.Available() {
		t.Skip("set USE_TESTCONTAINERS=1 or MONGO_TEST_URI to run mongo tests")
	}
	ctx := context.Background()
	cfg, err := recipe.ConfigRecipe(ctx)
	require.NoError(t, err)
	store, err := mongo.NewStore(ctx, cfg, logger.Log)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Drop(ctx, "junit")
		_ = store.Close(ctx)
	})

	entry := &abstract.RepositoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		SavedTimestamp: time.Now().UTC(),
		Source:         "junit",
		Host:           "localhost",
		Severity:       abstract.SeverityInformation,
		Message:        "hello",
		Keywords:       []string{"hello"},
	}
	require.NoError(t, store.Save(ctx, "junit", entry))
	// a second delivery of the same entry is not an error and is not stored twice
	require.NoError(t, store.Save(ctx, "junit", entry))

	for i := 0; i < 3; i++ {
		e := *entry
		e.ID = uuid.NewString()
		require.NoError(t, store.Save(ctx, "junit", &e))
	}
	n, err := store.Count(ctx, "junit")
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	n, err = store.Count(ctx, "other")
	require.NoError(t, err)
	require.Zero(t, n)
}
