package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var ErrEntryNotFound = errors.New("knowledge entry not found")

// Entry is a knowledge base document as stored in the entries table.
type Entry struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	CategoryID string    `json:"categoryId,omitempty"`
	Title      string    `json:"title"`
	Section    string    `json:"section,omitempty"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store is the SQL gateway for knowledge entries.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FindActiveByIDs fetches active entries and returns them in the order the
// ids were given. Missing or inactive ids are dropped without error, so the
// result can be shorter than the input.
func (s *Store) FindActiveByIDs(ctx context.Context, tenantID string, ids []string) ([]Entry, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, COALESCE(category_id, ''), title, COALESCE(section, ''), content, COALESCE(source, 'manual'), active, created_at, updated_at
		FROM maitre.knowledge_entries
		WHERE tenant_id = $1
		  AND id = ANY($2)
		  AND active = TRUE
	`, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Entry, len(ids))
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.CategoryID,
			&entry.Title,
			&entry.Section,
			&entry.Content,
			&entry.Source,
			&entry.Active,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		byID[entry.ID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	ordered := make([]Entry, 0, len(byID))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			ordered = append(ordered, entry)
		}
	}
	return ordered, nil
}

// Insert creates a new active entry and returns its generated id.
func (s *Store) Insert(ctx context.Context, entry Entry) (string, error) {
	if entry.TenantID == "" {
		return "", errors.New("tenant id is required")
	}
	if entry.Title == "" || entry.Content == "" {
		return "", errors.New("title and content are required")
	}

	if entry.Source == "" {
		entry.Source = "manual"
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO maitre.knowledge_entries (tenant_id, category_id, title, section, content, source, active)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, TRUE)
		RETURNING id
	`, entry.TenantID, entry.CategoryID, entry.Title, entry.Section, entry.Content, entry.Source).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}
	return id, nil
}

// Deactivate soft-deletes an entry so it stops matching retrieval filters.
func (s *Store) Deactivate(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE maitre.knowledge_entries
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("deactivate entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeactivateByCategory soft-deletes all of a tenant's entries in a category
// and returns how many rows changed.
func (s *Store) DeactivateByCategory(ctx context.Context, tenantID, categoryID string) (int64, error) {
	if tenantID == "" {
		return 0, errors.New("tenant id is required")
	}
	if categoryID == "" {
		return 0, errors.New("category id is required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE maitre.knowledge_entries
		SET active = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND category_id = $2 AND active = TRUE
	`, tenantID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("deactivate category: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ListByCategory returns a tenant's active entries, newest first.
func (s *Store) ListByCategory(ctx context.Context, tenantID, categoryID string, limit int) ([]Entry, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, COALESCE(category_id, ''), title, COALESCE(section, ''), content, COALESCE(source, 'manual'), active, created_at, updated_at
		FROM maitre.knowledge_entries
		WHERE tenant_id = $1 AND active = TRUE`
	args := []any{tenantID}
	if categoryID != "" {
		query += ` AND category_id = $2`
		args = append(args, categoryID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.CategoryID,
			&entry.Title,
			&entry.Section,
			&entry.Content,
			&entry.Source,
			&entry.Active,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
