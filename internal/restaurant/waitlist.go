package restaurant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxWaitlistRows caps how much of the queue a single check returns.
const maxWaitlistRows = 8

// WaitlistEntry is a guest waiting for a table. Position is 1-based within
// the unnotified queue.
type WaitlistEntry struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	PartySize    int       `json:"partySize"`
	Priority     int       `json:"priority"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WaitlistStore reads the walk-in waiting list.
type WaitlistStore struct {
	db *sql.DB
}

func NewWaitlistStore(db *sql.DB) *WaitlistStore {
	return &WaitlistStore{db: db}
}

// PendingQueue returns the guests waiting on a given day who have not been
// notified yet, highest priority first and oldest first within the same
// priority.
func (s *WaitlistStore) PendingQueue(ctx context.Context, tenantID string, date time.Time) ([]WaitlistEntry, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if date.IsZero() {
		return nil, errors.New("date is required")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, customer_name, party_size, priority, created_at
		FROM maitre.waiting_list
		WHERE tenant_id = $1
		  AND notified = FALSE
		  AND created_at::date = $2::date
		ORDER BY priority DESC, created_at ASC
		LIMIT %d
	`, maxWaitlistRows), tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("list waiting list: %w", err)
	}
	defer rows.Close()

	var entries []WaitlistEntry
	for rows.Next() {
		var entry WaitlistEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.CustomerName,
			&entry.PartySize,
			&entry.Priority,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan waiting list entry: %w", err)
		}
		entry.Position = len(entries) + 1
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting list: %w", err)
	}
	return entries, nil
}
