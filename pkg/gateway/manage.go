package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/repository"
	"go.ytsaurus.tech/library/go/core/log"
)

type repositoryInfo struct {
	Name        string                    `json:"name"`
	DisplayName string                    `json:"display_name"`
	Status      abstract.RepositoryStatus `json:"status"`
	Workers     int                       `json:"workers"`
	LiveWorkers int                       `json:"live_workers"`
	Messages    int64                     `json:"messages"`
	DeadLetters int64                     `json:"dead_letters"`
	QueueError  string                    `json:"queue_error,omitempty"`
}

func (g *Gateway) info(r *http.Request, repo *repository.Repository) repositoryInfo {
	cfg := repo.Config()
	res := repositoryInfo{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Status:      repo.Status(),
		Workers:     repo.Workers(),
		LiveWorkers: repo.LiveWorkers(),
	}
	queue, err := g.service.Broker().QueueStats(r.Context(), cfg.Name)
	if err != nil {
		res.QueueError = err.Error()
		return res
	}
	res.Messages = queue.Messages
	res.DeadLetters = queue.DeadLetters
	return res
}

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	repos := g.service.Repositories()
	res := make([]repositoryInfo, 0, len(repos))
	for _, repo := range repos {
		res = append(res, g.info(r, repo))
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) handleStart(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	repo, err := g.service.Get(p.ByName("name"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	if err := repo.Start(r.Context()); err != nil {
		g.logger.Warn("repository start refused", log.String("repository", repo.Name()), log.Error(err))
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g.info(r, repo))
}

func (g *Gateway) handleStop(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	repo, err := g.service.Get(p.ByName("name"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	if err := repo.Stop(); err != nil {
		g.logger.Warn("repository stop failed", log.String("repository", repo.Name()), log.Error(err))
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g.info(r, repo))
}
