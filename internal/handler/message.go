package handler

import (
	"log/slog"
	"net/http"

	"github.com/fineahban/marketplace/internal/service"
)

// MessageHandler serves direct messages.
//
// HTTP:
//   - POST /api/messages                       → send
//   - GET  /api/conversations/{userId}         → latest message per peer
//   - GET  /api/messages/{user1Id}/{user2Id}   → transcript, oldest first
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	SenderID    int64  `json:"senderId"`
	RecipientID int64  `json:"recipientId"`
	Body        string `json:"body"`
}

// HandleSend stores a message. Connected clients of both participants are
// notified by the service once the row exists.
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid message JSON", slog.String("error", err.Error()))
		writeError(w, invalidBody())
		return
	}

	msg, err := h.messages.Send(r.Context(), req.SenderID, req.RecipientID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	conversations, err := h.messages.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *MessageHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	a, err := pathID(r, "user1Id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := pathID(r, "user2Id")
	if err != nil {
		writeError(w, err)
		return
	}

	messages, err := h.messages.ListMessages(r.Context(), a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
