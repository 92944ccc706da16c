package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type healthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
	Env    string `json:"env"`
}

// HealthHandler reports liveness (GET /healthz)
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		err := json.NewEncoder(w).Encode(healthResponse{
			Status: "ok",
			App:    s.config.GetAppName(),
			Env:    s.env,
		})
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("failed to write health response")
		}
	}
}
