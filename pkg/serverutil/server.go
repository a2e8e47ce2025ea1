package serverutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"

	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Health reports the state of the process. A non nil error makes /ping answer 503.
type Health func() (status map[string]any, err error)

// Server is the operator endpoint of the process: health checks and profiling.
type Server struct {
	listener net.Listener
	logger   log.Logger
	health   Health
}

func NewServer(network, address string, health Health, logger log.Logger) (*Server, error) {
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, xerrors.Errorf("listen %s %s: %w", network, address, err)
	}

	return &Server{
		listener: listener,
		logger:   logger,
		health:   health,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", s.ping)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Serve blocks until Close.
func (s *Server) Serve() error {
	s.logger.Info("health check is listening", log.String("addr", s.Addr().String()))
	if err := http.Serve(s.listener, s.Handler()); err != nil && !xerrors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	status, err := s.health()
	if status == nil {
		status = map[string]any{}
	}
	code := http.StatusOK
	if err != nil {
		s.logger.Warn("health check failed", log.Error(err))
		status["error"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
