package api

import (
	"net/http"

	"github.com/ShayCichocki/hive/internal/state"
	"github.com/ShayCichocki/hive/pkg/models"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// poolsResponse is the JSON response for GET /pools. Field names and
// units inside each entry are fixed by the pool stats contract.
type poolsResponse struct {
	Pools []models.PoolStats `json:"pools"`
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, poolsResponse{Pools: s.engine.PoolStats()})
}

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	MaxConcurrency int               `json:"maxConcurrency"`
	Pools          int               `json:"pools"`
	DroppedEvents  uint64            `json:"droppedEvents"`
	Totals         state.Totals      `json:"totals"`
	RecentRuns     []state.RunRecord `json:"recentRuns"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		MaxConcurrency: s.engine.MaxConcurrency(),
		Pools:          len(s.engine.PoolStats()),
		DroppedEvents:  s.engine.DroppedEventCount(),
		RecentRuns:     []state.RunRecord{},
	}

	if s.history != nil {
		totals, err := s.history.RunTotals()
		if err != nil {
			s.logger.Error("query run totals", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to read run history")
			return
		}
		resp.Totals = totals

		recent, err := s.history.RecentRuns(20)
		if err != nil {
			s.logger.Error("query recent runs", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to read run history")
			return
		}
		if recent != nil {
			resp.RecentRuns = recent
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
