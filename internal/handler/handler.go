package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// maxBodyBytes caps the size of a /chat request body
const maxBodyBytes = 1 << 20

// Conversation runs chat turns against the remote assistant
type Conversation interface {
	StartConversation(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, text string) (string, error)
}

// ChatHandler handles the HTTP API
type ChatHandler struct {
	conversation Conversation
	assistantID  string
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversation Conversation, assistantID string) *ChatHandler {
	return &ChatHandler{
		conversation: conversation,
		assistantID:  assistantID,
	}
}

// ServeHTTP handles all HTTP requests
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}

	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	// Route request
	switch r.URL.Path {
	case "/health":
		h.handleHealth(w, r, log)
	case "/start":
		h.handleStart(w, r, log)
	case "/chat":
		h.handleChat(w, r, log)
	default:
		h.handleError(w, http.StatusNotFound, "Endpoint not found", log)
	}

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// handleHealth handles health check requests
func (h *ChatHandler) handleHealth(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().Unix(),
		"assistant_id": h.assistantID,
	})
}

// handleStart handles GET /start
func (h *ChatHandler) handleStart(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodGet {
		h.handleError(w, http.StatusMethodNotAllowed, "Only GET method is allowed", log)
		return
	}

	log.Info("starting a new conversation")

	threadID, err := h.conversation.StartConversation(r.Context())
	if err != nil {
		h.handleRunError(w, err, log)
		return
	}

	log.Info("new thread created", zap.String("thread_id", threadID))
	writeJSON(w, http.StatusOK, models.StartResponse{ThreadID: threadID})
}

// handleChat handles POST /chat
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodPost {
		h.handleError(w, http.StatusMethodNotAllowed, "Only POST method is allowed", log)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.handleError(w, http.StatusBadRequest, "Invalid JSON body", log)
		return
	}

	if req.ThreadID == "" {
		h.handleError(w, http.StatusBadRequest, "Missing thread_id", log)
		return
	}

	log = log.With(zap.String("thread_id", req.ThreadID))
	log.Info("received message", zap.Int("message_length", len(req.Message)))

	response, err := h.conversation.PostMessage(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		h.handleRunError(w, err, log)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: response})
}

// handleRunError maps a failed turn to a gateway status
func (h *ChatHandler) handleRunError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, ErrRunTimeout):
		h.handleError(w, http.StatusGatewayTimeout, err.Error(), log)
	case errors.Is(err, context.Canceled):
		log.Warn("client went away", zap.Error(err))
	default:
		h.handleError(w, http.StatusBadGateway, err.Error(), log)
	}
}

// handleError handles errors
func (h *ChatHandler) handleError(w http.ResponseWriter, status int, message string, log *zap.Logger) {
	log.Error("request error",
		zap.String("message", message),
		zap.Int("status", status),
	)

	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// extractTraceID extracts trace ID from various possible headers
func extractTraceID(r *http.Request) string {
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	return uuid.New().String()[:16]
}
