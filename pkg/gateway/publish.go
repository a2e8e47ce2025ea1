package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/parsers"
	"github.com/lightningdb/chililog/pkg/repository"
	"github.com/valyala/fastjson"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// publication is one raw log line as sent by a client:
//
//	{"timestamp": "2011-01-01T05:05:05.100Z", "source": "app", "host": "web1", "severity": "error", "message": "..."}
//
// A missing timestamp means now. Severity may be a name or a numeric code.
type publication struct {
	meta abstract.EntryMetadata
	body string
}

type publishResponse struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// decodePublications accepts a single object or an array of objects.
func decodePublications(v *fastjson.Value, maxBatch int, now time.Time) ([]publication, error) {
	items := []*fastjson.Value{v}
	if v.Type() == fastjson.TypeArray {
		items, _ = v.Array()
	}
	if len(items) == 0 {
		return nil, xerrors.New("no entries")
	}
	if len(items) > maxBatch {
		return nil, xerrors.Errorf("%d entries exceed the batch limit of %d", len(items), maxBatch)
	}
	res := make([]publication, 0, len(items))
	for i, item := range items {
		pub, err := decodePublication(item, now)
		if err != nil {
			return nil, xerrors.Errorf("entry %d: %w", i, err)
		}
		res = append(res, pub)
	}
	return res, nil
}

func decodePublication(v *fastjson.Value, now time.Time) (publication, error) {
	if v.Type() != fastjson.TypeObject {
		return publication{}, xerrors.Errorf("expected an object, got %s", v.Type())
	}
	pub := publication{
		meta: abstract.EntryMetadata{
			Timestamp: string(v.GetStringBytes("timestamp")),
			Source:    string(v.GetStringBytes("source")),
			Host:      string(v.GetStringBytes("host")),
		},
		body: string(v.GetStringBytes("message")),
	}
	if severity := v.Get("severity"); severity != nil {
		switch severity.Type() {
		case fastjson.TypeString:
			pub.meta.Severity = string(severity.GetStringBytes())
		case fastjson.TypeNumber:
			pub.meta.Severity = severity.String()
		}
	}
	if pub.meta.Timestamp == "" {
		pub.meta.Timestamp = now.UTC().Format(parsers.TimestampLayout)
	}
	if strings.TrimSpace(pub.meta.Source) == "" {
		return publication{}, xerrors.New("source is empty")
	}
	if strings.TrimSpace(pub.meta.Host) == "" {
		return publication{}, xerrors.New("host is empty")
	}
	if pub.body == "" {
		return publication{}, xerrors.New("message is empty")
	}
	return pub, nil
}

// onlineRepository resolves the repository of the request path; publishing needs it ONLINE.
func (g *Gateway) onlineRepository(name string) (*repository.Repository, int, error) {
	repo, err := g.service.Get(name)
	if err != nil {
		return nil, statusOf(err), err
	}
	if repo.Status() != abstract.StatusOnline {
		return nil, http.StatusConflict, xerrors.Errorf("repository %s is %s", name, repo.Status())
	}
	return repo, http.StatusOK, nil
}

func (g *Gateway) publish(ctx context.Context, repo string, pubs []publication) (int, error) {
	for i, pub := range pubs {
		if err := g.service.Broker().Publish(ctx, repo, pub.meta, pub.body); err != nil {
			g.stats.Rejected.WithLabelValues("queue").Inc()
			return i, xerrors.Errorf("unable to publish entry %d: %w", i, err)
		}
		g.stats.Published.Inc()
	}
	return len(pubs), nil
}

func (g *Gateway) handlePublish(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if _, status, err := g.onlineRepository(name); err != nil {
		g.stats.Rejected.WithLabelValues("repository").Inc()
		writeError(w, status, err.Error())
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.cfg.MaxFrameBytes))
	if err != nil {
		g.stats.Rejected.WithLabelValues("payload").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	parser := g.parsers.Get()
	defer g.parsers.Put(parser)
	v, err := parser.ParseBytes(data)
	if err != nil {
		g.stats.Rejected.WithLabelValues("payload").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pubs, err := decodePublications(v, g.cfg.MaxBatch, time.Now())
	if err != nil {
		g.stats.Rejected.WithLabelValues("payload").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := g.publish(r.Context(), name, pubs)
	if err != nil {
		g.logger.Warn("publish failed", log.String("repository", name), log.Int("accepted", accepted), log.Error(err))
		writeJSON(w, statusOf(err), publishResponse{Accepted: accepted, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{Accepted: accepted})
}

// handleWebSocket publishes every text frame, one entry or an array of entries, and answers each frame
// with a publishResponse.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if _, status, err := g.onlineRepository(name); err != nil {
		g.stats.Rejected.WithLabelValues("repository").Inc()
		writeError(w, status, err.Error())
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", log.String("repository", name), log.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(g.cfg.MaxFrameBytes)

	logger := log.With(g.logger, log.String("repository", name), log.String("remote", r.RemoteAddr))
	logger.Debug("websocket publisher connected")
	var parser fastjson.Parser
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket publisher dropped", log.Error(err))
			}
			return
		}
		resp := g.publishFrame(r.Context(), name, &parser, data)
		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("unable to answer websocket publisher", log.Error(err))
			return
		}
	}
}

func (g *Gateway) publishFrame(ctx context.Context, repo string, parser *fastjson.Parser, data []byte) publishResponse {
	v, err := parser.ParseBytes(data)
	if err != nil {
		g.stats.Rejected.WithLabelValues("payload").Inc()
		return publishResponse{Error: err.Error()}
	}
	pubs, err := decodePublications(v, g.cfg.MaxBatch, time.Now())
	if err != nil {
		g.stats.Rejected.WithLabelValues("payload").Inc()
		return publishResponse{Error: err.Error()}
	}
	accepted, err := g.publish(ctx, repo, pubs)
	if err != nil {
		return publishResponse{Accepted: accepted, Error: err.Error()}
	}
	return publishResponse{Accepted: accepted}
}
