package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tableflow/maitre/internal/maitre"
	"tableflow/maitre/internal/restaurant"
	"tableflow/maitre/pkg/llm"
	"tableflow/maitre/pkg/logging"
)

// defaultMaxSteps is the hard cap on LLM rounds per chat turn. Each tool
// round costs one step, so the cap bounds both latency and spend.
const defaultMaxSteps = 5

// KnowledgeRetriever runs the hybrid knowledge retrieval pipeline.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, tenantID, query, categoryID string) (RetrievalResult, error)
}

// ReservationFinder looks up guest bookings.
type ReservationFinder interface {
	Lookup(ctx context.Context, tenantID, guestName string, date time.Time) ([]restaurant.Reservation, error)
}

// IncidentSource reports current disruptions and weather alerts.
type IncidentSource interface {
	ActiveStatus(ctx context.Context, tenantID string) (restaurant.ServiceStatus, error)
}

// WaitlistSource reads the walk-in queue for a day.
type WaitlistSource interface {
	PendingQueue(ctx context.Context, tenantID string, date time.Time) ([]restaurant.WaitlistEntry, error)
}

type OrchestratorConfig struct {
	LLMProvider  llm.Provider
	Logger       logging.Logger
	Retriever    KnowledgeRetriever
	Reservations ReservationFinder
	Incidents    IncidentSource
	Waitlist     WaitlistSource
	MaxSteps     int
}

type Orchestrator struct {
	llmProvider  llm.Provider
	logger       logging.Logger
	retriever    KnowledgeRetriever
	reservations ReservationFinder
	incidents    IncidentSource
	waitlist     WaitlistSource
	tools        []llm.Tool
	maxSteps     int
}

// Source identifies a knowledge entry cited in the answer.
type Source struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type TokenCounts struct {
	Input  int
	Output int
}

// OrchestratorResult is the full outcome of one agent run. Found and
// MaxScore describe knowledge retrieval across the whole turn: Found is true
// if any search produced context, MaxScore is the best raw similarity seen.
type OrchestratorResult struct {
	Content     string
	Found       bool
	MaxScore    float64
	Sources     []Source
	ToolCalls   []ToolCallRecord
	TokenCounts TokenCounts
}

// TokenStreamer receives answer tokens as they arrive from the model.
type TokenStreamer interface {
	SendToken(token string) error
}

// ToolEventStreamer is an optional extension of TokenStreamer for emitting
// tool lifecycle events during streaming.
type ToolEventStreamer interface {
	SendToolStart(toolName string) error
	SendToolEnd(toolName string, errMsg string) error
}

// ToolOutcome is what a tool hands back to the model, plus retrieval
// bookkeeping when the tool was a knowledge search.
type ToolOutcome struct {
	Content      string
	Sources      []Source
	HadRetrieval bool
	Found        bool
	MaxScore     float64
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	tools := make([]llm.Tool, 0, len(ToolDefinitions))
	for _, tool := range ToolDefinitions {
		tools = append(tools, llm.Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Orchestrator{
		llmProvider:  cfg.LLMProvider,
		logger:       cfg.Logger,
		retriever:    cfg.Retriever,
		reservations: cfg.Reservations,
		incidents:    cfg.Incidents,
		waitlist:     cfg.Waitlist,
		tools:        tools,
		maxSteps:     maxSteps,
	}
}

// Run drives the bounded tool loop. categoryID scopes knowledge searches for
// the whole turn; tool failures are folded into the conversation as error
// results so a single broken backend never kills the stream.
func (o *Orchestrator) Run(ctx context.Context, messages []llm.Message, categoryID string, streamer TokenStreamer) (OrchestratorResult, error) {
	if o == nil || o.llmProvider == nil {
		return OrchestratorResult{}, errors.New("llm provider is required")
	}

	var response strings.Builder
	var fullResponse strings.Builder
	var sources []Source
	var toolCalls []ToolCallRecord
	found := false
	maxScore := 0.0
	inputTokens := 0

	// Error returns still carry whatever was accumulated so far, so a client
	// disconnect mid-stream leaves the partial text and max score available
	// for trace recording.
	snapshot := func() OrchestratorResult {
		content := strings.TrimSpace(fullResponse.String())
		return OrchestratorResult{
			Content:   content,
			Found:     found,
			MaxScore:  maxScore,
			Sources:   sources,
			ToolCalls: toolCalls,
			TokenCounts: TokenCounts{
				Input:  inputTokens,
				Output: estimateTokens(content),
			},
		}
	}

	for step := 0; step < o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return snapshot(), err
		}

		inputTokens += countTokensInMessages(messages)
		llmStart := time.Now()
		stream, err := o.llmProvider.Complete(ctx, llm.Request{
			Messages: messages,
			Tools:    o.tools,
		})
		if err != nil {
			llmCallsTotal.WithLabelValues("error").Inc()
			llmDuration.Observe(time.Since(llmStart).Seconds())
			return snapshot(), err
		}

		var pendingToolCalls []llm.ToolCall
		for {
			chunk, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				_ = stream.Close()
				return snapshot(), err
			}
			if chunk.Content != "" {
				response.WriteString(chunk.Content)
				fullResponse.WriteString(chunk.Content)
				if streamer != nil {
					if sendErr := streamer.SendToken(chunk.Content); sendErr != nil {
						_ = stream.Close()
						return snapshot(), sendErr
					}
				}
			}
			if len(chunk.ToolCalls) > 0 {
				pendingToolCalls = mergeToolCalls(pendingToolCalls, chunk.ToolCalls)
			}
		}
		_ = stream.Close()
		llmCallsTotal.WithLabelValues("success").Inc()
		llmDuration.Observe(time.Since(llmStart).Seconds())

		if len(pendingToolCalls) == 0 {
			break
		}

		// Append the assistant message (with tool_use blocks) so the next
		// round sees the tool_use → tool_result pairing it expects.
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.String(),
			ToolCalls: pendingToolCalls,
		})
		response.Reset()

		tes, _ := streamer.(ToolEventStreamer)

		for _, call := range pendingToolCalls {
			if tes != nil {
				_ = tes.SendToolStart(call.Name)
			}
			outcome, err := o.executeTool(ctx, call, categoryID)
			record := ToolCallRecord{Name: call.Name}
			if call.Arguments != "" {
				record.Arguments = json.RawMessage(call.Arguments)
			}
			errMsg := ""
			if err != nil {
				if o.logger != nil {
					o.logger.WithError(err).WithField("tool", call.Name).Warn("Tool execution failed")
				}
				toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
				record.Error = err.Error()
				errMsg = err.Error()
				outcome = ToolOutcome{
					Content: fmt.Sprintf("Tool %s failed: %v. Work with the information you already have.", call.Name, err),
				}
			} else {
				toolCallsTotal.WithLabelValues(call.Name, "success").Inc()
			}
			if tes != nil {
				_ = tes.SendToolEnd(call.Name, errMsg)
			}

			toolCalls = append(toolCalls, record)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    outcome.Content,
				Name:       call.Name,
				ToolCallID: call.ID,
			})
			if outcome.HadRetrieval {
				if outcome.Found {
					found = true
				}
				if outcome.MaxScore > maxScore {
					maxScore = outcome.MaxScore
				}
			}
			sources = appendSources(sources, outcome.Sources)
		}

		if step == o.maxSteps-2 {
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: "[System note: you have one remaining tool round. Answer now with the context already gathered; only call another tool if absolutely necessary.]",
			})
		}
	}

	content := strings.TrimSpace(fullResponse.String())
	if content == "" {
		content = agentFallbackAnswer
		if streamer != nil {
			_ = streamer.SendToken(content)
		}
	}

	outputTokens := estimateTokens(content)
	llmTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	llmTokensTotal.WithLabelValues("output").Add(float64(outputTokens))

	return OrchestratorResult{
		Content:   content,
		Found:     found,
		MaxScore:  maxScore,
		Sources:   sources,
		ToolCalls: toolCalls,
		TokenCounts: TokenCounts{
			Input:  inputTokens,
			Output: outputTokens,
		},
	}, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, call llm.ToolCall, categoryID string) (ToolOutcome, error) {
	switch call.Name {
	case "search_knowledge_base":
		return o.searchKnowledgeBase(ctx, call.Arguments, categoryID)
	case "lookup_reservation":
		return o.lookupReservation(ctx, call.Arguments)
	case "get_active_incidents":
		return o.getActiveIncidents(ctx)
	case "check_waiting_list":
		return o.checkWaitingList(ctx, call.Arguments)
	default:
		return ToolOutcome{}, fmt.Errorf("unknown tool %q", call.Name)
	}
}

type searchKnowledgeInput struct {
	Query string `json:"query"`
}

func (o *Orchestrator) searchKnowledgeBase(ctx context.Context, arguments, categoryID string) (ToolOutcome, error) {
	if o.retriever == nil {
		return ToolOutcome{}, errors.New("knowledge retrieval unavailable")
	}
	var input searchKnowledgeInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return ToolOutcome{}, fmt.Errorf("parse search_knowledge_base arguments: %w", err)
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return ToolOutcome{}, errors.New("query is required")
	}
	tenantID := maitre.GetTenantID(ctx)
	if tenantID == "" {
		return ToolOutcome{}, errors.New("tenant id is required")
	}

	result, err := o.retriever.Retrieve(ctx, tenantID, query, categoryID)
	if err != nil {
		return ToolOutcome{}, err
	}

	outcome := ToolOutcome{
		HadRetrieval: true,
		Found:        result.Found,
		MaxScore:     result.MaxScore,
	}
	if !result.Found {
		outcome.Content = "No relevant information was found in the knowledge base. Tell the guest you do not have that information and invite them to contact the restaurant directly to confirm."
		return outcome, nil
	}

	outcome.Content = formatKnowledgeContext(result.Entries)
	outcome.Sources = make([]Source, 0, len(result.Entries))
	for _, retrieved := range result.Entries {
		outcome.Sources = append(outcome.Sources, Source{
			ID:    retrieved.Entry.ID,
			Title: retrieved.Entry.Title,
			Score: retrieved.Score,
		})
	}
	return outcome, nil
}

type lookupReservationInput struct {
	GuestName string `json:"guestName,omitempty"`
	Date      string `json:"date,omitempty"`
}

func (o *Orchestrator) lookupReservation(ctx context.Context, arguments string) (ToolOutcome, error) {
	if o.reservations == nil {
		return ToolOutcome{}, errors.New("reservation lookup unavailable")
	}
	var input lookupReservationInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return ToolOutcome{}, fmt.Errorf("parse lookup_reservation arguments: %w", err)
	}
	guestName := strings.TrimSpace(input.GuestName)

	var date time.Time
	if input.Date != "" {
		parsed, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			return ToolOutcome{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", input.Date)
		}
		date = parsed
	}
	if guestName == "" && date.IsZero() {
		return ToolOutcome{}, errors.New("guestName or date is required")
	}
	tenantID := maitre.GetTenantID(ctx)
	if tenantID == "" {
		return ToolOutcome{}, errors.New("tenant id is required")
	}

	reservations, err := o.reservations.Lookup(ctx, tenantID, guestName, date)
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{Content: formatReservations(reservations)}, nil
}

func (o *Orchestrator) getActiveIncidents(ctx context.Context) (ToolOutcome, error) {
	if o.incidents == nil {
		return ToolOutcome{}, errors.New("incident feed unavailable")
	}
	tenantID := maitre.GetTenantID(ctx)
	if tenantID == "" {
		return ToolOutcome{}, errors.New("tenant id is required")
	}
	status, err := o.incidents.ActiveStatus(ctx, tenantID)
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{Content: formatServiceStatus(status)}, nil
}

type checkWaitingListInput struct {
	Date string `json:"date"`
}

func (o *Orchestrator) checkWaitingList(ctx context.Context, arguments string) (ToolOutcome, error) {
	if o.waitlist == nil {
		return ToolOutcome{}, errors.New("waiting list unavailable")
	}
	var input checkWaitingListInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return ToolOutcome{}, fmt.Errorf("parse check_waiting_list arguments: %w", err)
	}
	if input.Date == "" {
		return ToolOutcome{}, errors.New("date is required")
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return ToolOutcome{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", input.Date)
	}
	tenantID := maitre.GetTenantID(ctx)
	if tenantID == "" {
		return ToolOutcome{}, errors.New("tenant id is required")
	}
	entries, err := o.waitlist.PendingQueue(ctx, tenantID, date)
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{Content: formatWaitlist(entries)}, nil
}

func formatKnowledgeContext(entries []RetrievedEntry) string {
	var builder strings.Builder
	builder.WriteString("Knowledge base results:\n\n")
	for i, retrieved := range entries {
		if retrieved.Entry.Section != "" {
			fmt.Fprintf(&builder, "[%d. %s / %s | Relevance: %.2f]\n", i+1, retrieved.Entry.Title, retrieved.Entry.Section, retrieved.Score)
		} else {
			fmt.Fprintf(&builder, "[%d. %s | Relevance: %.2f]\n", i+1, retrieved.Entry.Title, retrieved.Score)
		}
		builder.WriteString(retrieved.Entry.Content)
		builder.WriteString("\n")
		if i < len(entries)-1 {
			builder.WriteString("---\n")
		}
	}
	return strings.TrimSpace(builder.String())
}

func formatReservations(reservations []restaurant.Reservation) string {
	if len(reservations) == 0 {
		return "No upcoming reservations match that name or date."
	}
	var builder strings.Builder
	builder.WriteString("Upcoming reservations:\n")
	for _, r := range reservations {
		fmt.Fprintf(&builder, "- %s on %s at %s, party of %d, status %s",
			r.CustomerName, r.Date.Format("2006-01-02"), r.Time, r.PartySize, r.Status)
		if r.Notes != "" {
			fmt.Fprintf(&builder, " (%s)", r.Notes)
		}
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String())
}

func formatServiceStatus(status restaurant.ServiceStatus) string {
	if len(status.Incidents) == 0 && len(status.WeatherAlerts) == 0 {
		return "No active incidents or weather alerts. Service is running normally."
	}
	var builder strings.Builder
	if len(status.Incidents) > 0 {
		builder.WriteString("Active incidents:\n")
		for _, incident := range status.Incidents {
			fmt.Fprintf(&builder, "- [%s] %s: %s\n", incident.Severity, incident.Title, incident.Description)
		}
	}
	if len(status.WeatherAlerts) > 0 {
		builder.WriteString("Weather alerts:\n")
		for _, alert := range status.WeatherAlerts {
			fmt.Fprintf(&builder, "- %s: %s\n", alert.AlertType, alert.Message)
		}
	}
	return strings.TrimSpace(builder.String())
}

func formatWaitlist(entries []restaurant.WaitlistEntry) string {
	if len(entries) == 0 {
		return "The waiting list is currently empty."
	}
	var builder strings.Builder
	builder.WriteString("Current waiting list:\n")
	for _, entry := range entries {
		fmt.Fprintf(&builder, "%d. %s, party of %d (waiting since %s)\n",
			entry.Position, entry.CustomerName, entry.PartySize, entry.CreatedAt.Format("15:04"))
	}
	return strings.TrimSpace(builder.String())
}

func appendSources(existing []Source, incoming []Source) []Source {
	seen := make(map[string]struct{}, len(existing))
	for _, source := range existing {
		seen[source.ID] = struct{}{}
	}
	for _, source := range incoming {
		if _, ok := seen[source.ID]; ok {
			continue
		}
		seen[source.ID] = struct{}{}
		existing = append(existing, source)
	}
	return existing
}

func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

func countTokensInMessages(messages []llm.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateTokens(msg.Content)
	}
	return total
}

// mergeToolCalls accumulates tool calls across streaming chunks. If a chunk
// carries a call with the same ID as one already seen, its arguments replace
// the partial ones (models may split a single call across frames). New IDs
// are appended in arrival order.
func mergeToolCalls(existing, incoming []llm.ToolCall) []llm.ToolCall {
	for _, inc := range incoming {
		found := false
		for i, ex := range existing {
			if ex.ID != "" && ex.ID == inc.ID {
				existing[i].Arguments = inc.Arguments
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, inc)
		}
	}
	return existing
}
