package serverutil

import (
	"io"
	"net/http"
	"testing"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPing(t *testing.T) {
	healthErr := atomic.NewError(nil)
	s, err := NewServer("tcp", "127.0.0.1:0", func() (map[string]any, error) {
		return map[string]any{"online": 2}, healthErr.Load()
	}, logger.Log)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	base := "http://" + s.Addr().String()
	status, body := get(t, base+"/ping")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"online": 2}`, body)

	healthErr.Store(xerrors.New("broker is gone"))
	status, body = get(t, base+"/ping")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.JSONEq(t, `{"online": 2, "error": "broker is gone"}`, body)

	status, _ = get(t, base+"/debug/pprof/cmdline")
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, s.Close())
	require.NoError(t, <-done)
}
