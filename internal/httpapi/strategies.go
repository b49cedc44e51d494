package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sawpanic/tradebot/internal/venueerrors"
)

func (s *Server) listStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.strategies.Descriptors())
}

func (s *Server) getStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := s.strategies.Descriptor(id)
	if !ok {
		s.writeAdapterError(w, r, venueerrors.NotFound(id))
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

type setActiveStrategyBody struct {
	StrategyID string         `json:"strategy_id"`
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) setActiveStrategy(w http.ResponseWriter, r *http.Request) {
	var body setActiveStrategyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeBadRequest(w, r, "malformed strategy selection body")
		return
	}
	if body.StrategyID == "" {
		s.writeBadRequest(w, r, "strategy_id is required")
		return
	}

	if err := s.strategies.SetActive(r.Context(), body.StrategyID, body.Parameters); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}

	if s.configStore != nil {
		if stored, err := s.configStore.Load(); err == nil {
			stored.ActiveStrategy = body.StrategyID
			stored.StrategyParams = body.Parameters
			if err := s.configStore.Save(stored); err != nil {
				s.log.Warn().Err(err).Msg("failed to persist active strategy")
			}
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"strategy_id": body.StrategyID, "status": "active"})
}

func (s *Server) startActiveStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.strategies.StartActive(); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) stopActiveStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.strategies.StopActive(); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) activeStrategyStatus(w http.ResponseWriter, r *http.Request) {
	id, running, perf, ok := s.strategies.ActiveStatus()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active":      true,
		"strategy_id": id,
		"running":     running,
		"performance": perf,
	})
}
