package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nikhilbhutani/fiscalassistant/internal/chat"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

type ChatHandler struct {
	orch *chat.Orchestrator
}

func NewChatHandler(orch *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{orch: orch}
}

type askRequest struct {
	Message string `json:"message"`
}

// Ask answers one question. A blank message is accepted and answered with
// 204 and nothing stored.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.orch.Answer(r.Context(), owner, req.Message)
	if err != nil && msg == nil {
		writeError(w, r, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// a metering failure still returns the stored answer
	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	msgs, err := h.orch.History(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}
