package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sawpanic/tradebot/internal/config"
)

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	if s.configStore == nil {
		s.writeError(w, r, http.StatusInternalServerError, "config_unavailable", "no config store configured")
		return
	}
	cfg, err := s.configStore.Load()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "config_load_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// postConfig overwrites the persisted configuration wholesale, matching
// original config.py's save() semantics (no partial-field merge).
func (s *Server) postConfig(w http.ResponseWriter, r *http.Request) {
	if s.configStore == nil {
		s.writeError(w, r, http.StatusInternalServerError, "config_unavailable", "no config store configured")
		return
	}

	var cfg config.BotConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeBadRequest(w, r, "malformed config body")
		return
	}
	if cfg.StrategyParams == nil {
		cfg.StrategyParams = make(map[string]any)
	}

	if err := s.configStore.Save(&cfg); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "config_save_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, &cfg)
}
