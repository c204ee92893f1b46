package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trace resolution statuses. RESOLVED means the knowledge base produced an
// answer; OPEN flags a question worth adding to the knowledge base.
const (
	StatusResolved = "RESOLVED"
	StatusOpen     = "OPEN"
)

// QueryTrace is one recorded guest question with its outcome. MaxScore is
// the best raw similarity seen during retrieval, recorded even when nothing
// cleared the thresholds.
type QueryTrace struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	UserID     string    `json:"userId,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CategoryID string    `json:"categoryId,omitempty"`
	MaxScore   float64   `json:"maxScore"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TraceRecorder persists query traces.
type TraceRecorder interface {
	Record(ctx context.Context, trace QueryTrace) error
}

// TraceStore writes and reads query traces in Postgres.
type TraceStore struct {
	db *sql.DB
}

func NewTraceStore(db *sql.DB) *TraceStore {
	return &TraceStore{db: db}
}

func (s *TraceStore) Record(ctx context.Context, trace QueryTrace) error {
	if trace.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if trace.ID == "" {
		trace.ID = uuid.New().String()
	}
	if trace.Status != StatusResolved && trace.Status != StatusOpen {
		return fmt.Errorf("invalid trace status %q", trace.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maitre.query_traces (id, tenant_id, user_id, question, answer, category_id, max_score, status, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, NOW())
	`, trace.ID, trace.TenantID, trace.UserID, trace.Question, trace.Answer, trace.CategoryID, trace.MaxScore, trace.Status)
	if err != nil {
		tracesRecordedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("record query trace: %w", err)
	}
	tracesRecordedTotal.WithLabelValues(trace.Status).Inc()
	return nil
}

// Recent returns the newest traces for a tenant, most recent first.
func (s *TraceStore) Recent(ctx context.Context, tenantID string, limit int) ([]QueryTrace, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, COALESCE(user_id, ''), question, answer, COALESCE(category_id, ''), max_score, status, created_at
		FROM maitre.query_traces
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list query traces: %w", err)
	}
	defer rows.Close()

	var traces []QueryTrace
	for rows.Next() {
		var trace QueryTrace
		if err := rows.Scan(
			&trace.ID,
			&trace.TenantID,
			&trace.UserID,
			&trace.Question,
			&trace.Answer,
			&trace.CategoryID,
			&trace.MaxScore,
			&trace.Status,
			&trace.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query trace: %w", err)
		}
		traces = append(traces, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query traces: %w", err)
	}
	return traces, nil
}
