package http

import (
	"net/http"
)

// ConnectionCounter reports the number of live WebSocket connections.
type ConnectionCounter interface {
	Count() int
}

type HealthHandler struct {
	connections ConnectionCounter
}

func NewHealthHandler(connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{connections: connections}
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.connections != nil {
		resp.Connections = h.connections.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}
