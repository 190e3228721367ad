package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetgate/internal/core"
)

type healthResponse struct {
	Status   string               `json:"status"`
	Limiters []core.LimiterStatus `json:"limiters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.hashLimiter != nil {
		resp.Limiters = append(resp.Limiters, s.hashLimiter.Status())
	}
	resp.Limiters = append(resp.Limiters, s.ingestor.Limiter().Status())
	writeJSON(w, http.StatusOK, resp)
}
