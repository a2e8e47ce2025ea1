package memory

import (
	"context"
	"testing"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/stretchr/testify/require"
)

func TestStoreIgnoresDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Save(ctx, "repo", &abstract.RepositoryEntry{ID: "1", Message: "first"}))
	require.NoError(t, s.Save(ctx, "repo", &abstract.RepositoryEntry{ID: "1", Message: "again"}))
	require.NoError(t, s.Save(ctx, "other", &abstract.RepositoryEntry{ID: "1", Message: "elsewhere"}))

	count, err := s.Count(ctx, "repo")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, "first", s.Entries("repo")[0].Message)
	count, err = s.Count(ctx, "other")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
