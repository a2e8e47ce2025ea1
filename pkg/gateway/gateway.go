package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/lightningdb/chililog/pkg/repository"
	"github.com/lightningdb/chililog/pkg/stats"
	"github.com/valyala/fastjson"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

type Config struct {
	Listen string `yaml:"listen" log:"true"`
	// MaxBatch caps the entries of one POST request.
	MaxBatch int `yaml:"max_batch" log:"true"`
	// MaxFrameBytes caps a request body and a websocket frame.
	MaxFrameBytes int64 `yaml:"max_frame_bytes" log:"true"`
}

func (c *Config) WithDefaults() {
	if c.Listen == "" {
		c.Listen = ":61615"
	}
	if c.MaxBatch == 0 {
		c.MaxBatch = 1000
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = 1 << 20
	}
}

// Gateway is the HTTP face of the server: publishing into input queues and repository management.
type Gateway struct {
	cfg      Config
	service  *repository.Service
	auth     abstract.Authorizer
	logger   log.Logger
	stats    *stats.GatewayStats
	router   *httprouter.Router
	upgrader websocket.Upgrader
	parsers  fastjson.ParserPool
}

func New(cfg Config, service *repository.Service, auth abstract.Authorizer, logger log.Logger, st *stats.GatewayStats) *Gateway {
	cfg.WithDefaults()
	if st == nil {
		st = stats.NewGatewayStats(nil)
	}
	g := &Gateway{
		cfg:     cfg,
		service: service,
		auth:    auth,
		logger:  logger,
		stats:   st,
		router:  httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	g.router.POST("/api/v1/repositories/:name/entries", g.publisher(g.handlePublish))
	g.router.GET("/api/v1/repositories/:name/ws", g.publisher(g.handleWebSocket))
	g.router.GET("/api/v1/repositories", g.administrator(g.handleList))
	g.router.POST("/api/v1/repositories/:name/start", g.administrator(g.handleStart))
	g.router.POST("/api/v1/repositories/:name/stop", g.administrator(g.handleStop))
	g.router.GET("/ping", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]int{"online": service.Online()})
	})
	g.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		g.logger.Error("gateway handler panicked", log.String("path", r.URL.Path), log.Any("panic", v))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return g
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Serve listens on cfg.Listen until ctx is done, then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return xerrors.Errorf("listen %s: %w", g.cfg.Listen, err)
	}
	server := &http.Server{Handler: g.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	g.logger.Info("gateway is listening", log.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		return xerrors.Errorf("gateway stopped: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("unable to shut down gateway: %w", err)
	}
	return nil
}

// publisher requires the publisher role of the repository named in the path.
func (g *Gateway) publisher(next httprouter.Handle) httprouter.Handle {
	return g.authenticated(func(user string, p httprouter.Params) bool {
		return g.auth.HasRole(user, abstract.PublisherRoleName(p.ByName("name")))
	}, next)
}

func (g *Gateway) administrator(next httprouter.Handle) httprouter.Handle {
	return g.authenticated(func(user string, _ httprouter.Params) bool {
		return g.auth.HasRole(user, abstract.SystemAdministratorRole)
	}, next)
}

func (g *Gateway) authenticated(allowed func(user string, p httprouter.Params) bool, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		user, password, ok := r.BasicAuth()
		if !ok || !g.auth.Authenticate(user, password) {
			g.stats.Rejected.WithLabelValues("unauthorized").Inc()
			w.Header().Set("WWW-Authenticate", `Basic realm="chililog"`)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !allowed(user, p) {
			g.stats.Rejected.WithLabelValues("forbidden").Inc()
			g.logger.Warn("request is not allowed", log.String("user", user), log.String("path", r.URL.Path))
			writeError(w, http.StatusForbidden, "not allowed")
			return
		}
		next(w, r, p)
	}
}

// statusOf maps an engine error to the HTTP status reported to clients.
func statusOf(err error) int {
	var stateErr *repository.RepositoryStateError
	if xerrors.As(err, &stateErr) {
		return http.StatusConflict
	}
	code, ok := coded.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case codes.UnknownRepo:
		return http.StatusNotFound
	case codes.RepositoryConfig, codes.EntryParse:
		return http.StatusBadRequest
	case codes.QueuePublish:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
