package http

import (
	"encoding/json"
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type HistoryHandler struct {
	service ports.HistoryService
}

func NewHistoryHandler(service ports.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		service: service,
	}
}

// ListEndedPolls godoc
// @Summary  List archived polls, most recently ended first
// @Produce  json
// @Success  200 {array} domain.ArchivedPoll
// @Router   /api/polls/history [get]
func (h *HistoryHandler) ListEndedPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.service.ListEndedPolls(r.Context())
	if err != nil {
		http.Error(w, "failed to load poll history", http.StatusInternalServerError)
		return
	}
	if polls == nil {
		polls = []*domain.ArchivedPoll{}
	}
	writeJSON(w, http.StatusOK, polls)
}

// ListChatMessages godoc
// @Summary  List chat messages, oldest first
// @Produce  json
// @Success  200 {array} domain.ChatMessage
// @Router   /api/messages [get]
func (h *HistoryHandler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.ListChatMessages(r.Context())
	if err != nil {
		http.Error(w, "failed to load chat messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
