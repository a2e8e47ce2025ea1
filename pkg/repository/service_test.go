package repository

import (
	"context"
	"testing"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/providers/memory"
	"github.com/lightningdb/chililog/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	s := NewService(memory.NewBroker(0), memory.NewStore(), testOptions, logger.Log, stats.NewMetrics(prometheus.NewRegistry()))
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return s
}

func TestServiceStartsOnlineRepositories(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	offline := delimitedRepo("second", 1)
	offline.StartupStatus = abstract.StatusOffline
	require.NoError(t, s.Load([]abstract.RepositoryConfig{*delimitedRepo("first", 2), *offline}))

	require.NoError(t, s.Start(ctx))
	repos := s.Repositories()
	require.Len(t, repos, 2)
	require.Equal(t, "first", repos[0].Name())
	require.Equal(t, abstract.StatusOnline, repos[0].Status())
	require.Equal(t, abstract.StatusOffline, repos[1].Status())
	require.Equal(t, 1, s.Online())

	require.NoError(t, s.StartAll(ctx))
	require.Equal(t, 2, s.Online())

	require.NoError(t, s.Stop())
	require.Equal(t, 0, s.Online())
	for _, repo := range s.Repositories() {
		require.Equal(t, 0, repo.LiveWorkers())
	}
}

func TestServiceLoadRejectsInvalidConfigs(t *testing.T) {
	s := newService(t)
	require.Error(t, s.Load([]abstract.RepositoryConfig{*delimitedRepo("dup", 1), *delimitedRepo("dup", 1)}))
	require.Error(t, s.Load([]abstract.RepositoryConfig{*delimitedRepo("ok", 1), {Name: "Bad Name"}}))
	require.Empty(t, s.Repositories())

	require.NoError(t, s.Load([]abstract.RepositoryConfig{*delimitedRepo("ok", 1)}))
	require.Error(t, s.Load([]abstract.RepositoryConfig{*delimitedRepo("ok", 1)}))
}

func TestServicePutAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	repo, err := s.Put(delimitedRepo("dynamic", 1))
	require.NoError(t, err)
	require.NoError(t, repo.Start(ctx))

	_, err = s.Put(delimitedRepo("dynamic", 4))
	requireStateError(t, err)

	require.NoError(t, repo.Stop())
	same, err := s.Put(delimitedRepo("dynamic", 4))
	require.NoError(t, err)
	require.Same(t, repo, same)
	require.NoError(t, same.Start(ctx))
	require.Equal(t, 4, same.LiveWorkers())

	require.NoError(t, s.Delete("dynamic"))
	require.Equal(t, abstract.StatusOffline, repo.Status())
	_, err = s.Get("dynamic")
	code, ok := coded.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, codes.UnknownRepo, code)
	require.Error(t, s.Delete("dynamic"))
}
