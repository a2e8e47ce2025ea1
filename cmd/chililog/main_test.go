package main

import (
	"context"
	"strings"
	"testing"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/config"
	"github.com/lightningdb/chililog/pkg/providers/memory"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	cfg, err := config.Parse([]byte(`
transport: memory
store: memory
repositories:
  - name: plain
  - name: csv
    parsers:
      - name: csv
        kind: Delimited
        fields:
          - name: n
            data_type: Integer
`))
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, check(&out, cfg))
	require.Contains(t, out.String(), "plain")
	require.Contains(t, out.String(), "max_memory=20 MB")

	cfg.Repositories[1].Parsers[0].Kind = abstract.ParserKindRegex
	out.Reset()
	require.Error(t, check(&out, cfg))
	require.Contains(t, out.String(), "FAILED")
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	broker := memory.NewBroker(0)
	repo := &abstract.RepositoryConfig{Name: "junit"}
	repo.WithDefaults()
	require.NoError(t, broker.EnsureRepository(ctx, repo))
	opts := publishOptions{repository: "junit", source: "cli", host: "h", severity: "warning"}

	n, err := publish(ctx, broker, opts, []string{"a", "b"}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = publish(ctx, broker, opts, nil, strings.NewReader("one\n\ntwo\nthree\n"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	stats, err := broker.QueueStats(ctx, "junit")
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.Messages)

	opts.severity = "loud"
	_, err = publish(ctx, broker, opts, []string{"a"}, nil)
	require.Error(t, err)

	opts.severity = "info"
	opts.repository = "ghost"
	_, err = publish(ctx, broker, opts, []string{"a"}, nil)
	require.Error(t, err)
}
