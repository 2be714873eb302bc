package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/gate"
)

// ChatBackend is the downstream LLM contract. The backend itself is an
// external collaborator; the gate only needs its admission decision made
// before this call happens.
type ChatBackend interface {
	Complete(ctx context.Context, identity, prompt string) (string, error)
}

// EchoBackend is a stand-in backend for development and tests.
type EchoBackend struct{}

// Complete implements ChatBackend.
func (EchoBackend) Complete(_ context.Context, _, prompt string) (string, error) {
	return prompt, nil
}

// ChatHandler forwards admitted chat requests to the backend.
type ChatHandler struct {
	backend ChatBackend
	sink    audit.Sink
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(backend ChatBackend, sink audit.Sink) *ChatHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &ChatHandler{backend: backend, sink: sink}
}

// chatRequest holds the chat payload.
type chatRequest struct {
	Message string `json:"message"`
}

// Complete answers a chat message. Quota was already consumed by the gate.
func (h *ChatHandler) Complete(c *gin.Context) {
	var req chatRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		gate.Deny(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid chat payload")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		gate.Deny(c, http.StatusBadRequest, "INVALID_REQUEST", "message is required")
		return
	}

	result := gate.SessionFrom(c)
	h.sink.Record(c.Request.Context(), audit.Event{
		Action:    audit.ActionChatRequest,
		Identity:  result.Key(),
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	reply, errComplete := h.backend.Complete(c.Request.Context(), result.Key(), req.Message)
	if errComplete != nil {
		gate.Deny(c, http.StatusBadGateway, "BACKEND_ERROR", "chat backend unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
}
