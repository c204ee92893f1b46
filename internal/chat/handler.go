package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"tableflow/maitre/internal/maitre"
	"tableflow/maitre/pkg/llm"
	"tableflow/maitre/pkg/logging"
)

const (
	// maxMessageRunes bounds a single chat message; anything longer is almost
	// certainly pasted junk rather than a guest question.
	maxMessageRunes = 10000

	// maxPromptTokenBudget caps the estimated token size of the prompt sent to
	// the model, history trimmed newest-first to fit.
	maxPromptTokenBudget = 6000
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	CategoryID string        `json:"categoryId,omitempty"`
}

// HandlerConfig wires the chat endpoint.
type HandlerConfig struct {
	Orchestrator       *Orchestrator
	Traces             TraceRecorder
	Logger             logging.Logger
	MaxHistoryMessages int
}

type Handler struct {
	orchestrator       *Orchestrator
	traces             TraceRecorder
	logger             logging.Logger
	maxHistoryMessages int
}

func NewHandler(cfg HandlerConfig) *Handler {
	maxHistory := cfg.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = 6
	}
	return &Handler{
		orchestrator:       cfg.Orchestrator,
		traces:             cfg.Traces,
		logger:             cfg.Logger,
		maxHistoryMessages: maxHistory,
	}
}

// HandleChat handles POST /api/chat. The response is streamed as SSE: token
// events while the model talks, a meta event with retrieval info, then done.
func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages is required"})
		return
	}

	last := req.Messages[len(req.Messages)-1]
	question := strings.TrimSpace(last.Content)
	if last.Role != "user" || question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last message must be a non-empty user message"})
		return
	}
	if utf8.RuneCountInString(last.Content) > maxMessageRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}

	ctx := c.Request.Context()
	tenantID := maitre.GetTenantID(ctx)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	streamer := newSSEStreamer(c.Writer)

	chatsActive.Inc()
	defer chatsActive.Dec()

	messages := h.buildPromptMessages(req.Messages, question)
	result, err := h.orchestrator.Run(ctx, messages, req.CategoryID, streamer)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id": tenantID,
			}).Error("Chat orchestration failed")
		}
		streamer.SendError("The assistant is temporarily unavailable. Please try again in a moment.")
		streamer.SendDone()
		// The result carries whatever was streamed before the failure, so a
		// disconnected guest still leaves a reviewable trace.
		h.recordTrace(ctx, tenantID, question, req.CategoryID, result)
		return
	}

	streamer.SendMeta(result)
	streamer.SendDone()

	h.recordTrace(ctx, tenantID, question, req.CategoryID, result)
}

// buildPromptMessages assembles system prompt + trimmed history + the current
// question. History keeps only the last maxHistoryMessages user/assistant
// turns and is further trimmed newest-to-oldest to fit the token budget.
func (h *Handler) buildPromptMessages(raw []ChatMessage, question string) []llm.Message {
	history := make([]llm.Message, 0, len(raw))
	for _, msg := range raw[:len(raw)-1] {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		history = append(history, llm.Message{Role: role, Content: content})
	}
	if len(history) > h.maxHistoryMessages {
		history = history[len(history)-h.maxHistoryMessages:]
	}

	budget := maxPromptTokenBudget - estimateTokens(SystemPrompt) - estimateTokens(question)
	var trimmed []llm.Message
	for i := len(history) - 1; i >= 0; i-- {
		cost := estimateTokens(history[i].Content)
		if cost > budget {
			break
		}
		budget -= cost
		trimmed = append(trimmed, history[i])
	}
	// Reverse back to chronological order.
	for i, j := 0, len(trimmed)-1; i < j; i, j = i+1, j-1 {
		trimmed[i], trimmed[j] = trimmed[j], trimmed[i]
	}

	messages := make([]llm.Message, 0, len(trimmed)+2)
	messages = append(messages, llm.Message{Role: "system", Content: SystemPrompt})
	messages = append(messages, trimmed...)
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// recordTrace persists the question/answer trace without blocking the
// response. Failures are logged and swallowed; tracing never affects guests.
func (h *Handler) recordTrace(ctx context.Context, tenantID, question, categoryID string, result OrchestratorResult) {
	if h.traces == nil {
		return
	}
	status := StatusOpen
	if result.MaxScore > 0 {
		status = StatusResolved
	}
	trace := QueryTrace{
		TenantID:   tenantID,
		UserID:     maitre.GetUserID(ctx),
		Question:   question,
		Answer:     result.Content,
		CategoryID: categoryID,
		MaxScore:   result.MaxScore,
		Status:     status,
	}
	go func(ctx context.Context) {
		if err := h.traces.Record(ctx, trace); err != nil && h.logger != nil {
			h.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id": tenantID,
			}).Warn("Failed to record query trace")
		}
	}(context.WithoutCancel(ctx))
}

// sseStreamer writes server-sent events to the response as the agent runs.
type sseStreamer struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
}

func newSSEStreamer(w gin.ResponseWriter) *sseStreamer {
	flusher, _ := w.(http.Flusher)
	return &sseStreamer{writer: w, flusher: flusher}
}

func (s *sseStreamer) send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseStreamer) SendToken(token string) error {
	return s.send(map[string]string{"type": "token", "content": token})
}

func (s *sseStreamer) SendToolStart(toolName string) error {
	return s.send(map[string]string{"type": "tool_start", "tool": toolName})
}

func (s *sseStreamer) SendToolEnd(toolName string, errMsg string) error {
	event := map[string]string{"type": "tool_end", "tool": toolName}
	if errMsg != "" {
		event["error"] = errMsg
	}
	return s.send(event)
}

func (s *sseStreamer) SendMeta(result OrchestratorResult) {
	sources := result.Sources
	if sources == nil {
		sources = []Source{}
	}
	_ = s.send(map[string]any{
		"type":     "meta",
		"found":    result.Found,
		"maxScore": result.MaxScore,
		"sources":  sources,
	})
}

func (s *sseStreamer) SendError(message string) {
	_ = s.send(map[string]string{"type": "error", "message": message})
}

func (s *sseStreamer) SendDone() {
	_ = s.send(map[string]string{"type": "done"})
	_, _ = fmt.Fprint(s.writer, "data: [DONE]\n\n")
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
