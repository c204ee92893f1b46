package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Match is a scored hit from the vector index. Score is cosine similarity
// in [0, 1].
type Match struct {
	EntryID string
	Score   float64
}

// VectorRecord mirrors the filterable entry attributes next to its embedding
// so queries never touch the entries table.
type VectorRecord struct {
	EntryID    string
	TenantID   string
	CategoryID string
	Active     bool
	Embedding  []float32
}

// Index is the pgvector-backed vector store.
type Index struct {
	db *sql.DB
}

func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Query returns the topK nearest records for the tenant. Inactive records are
// always excluded; categoryID narrows the search when non-empty.
func (ix *Index) Query(ctx context.Context, tenantID string, embedding []float32, topK int, categoryID string) ([]Match, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT entry_id, 1 - (embedding <=> $2) AS score
		FROM maitre.knowledge_vectors
		WHERE tenant_id = $1
		  AND active = TRUE`
	args := []any{tenantID, pgvector.NewVector(embedding)}
	if categoryID != "" {
		query += ` AND category_id = $3`
		args = append(args, categoryID)
	}
	query += fmt.Sprintf(`
		ORDER BY embedding <=> $2
		LIMIT %d`, topK)

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var match Match
		if err := rows.Scan(&match.EntryID, &match.Score); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector matches: %w", err)
	}

	return matches, nil
}

// Upsert inserts or replaces a single record.
func (ix *Index) Upsert(ctx context.Context, record VectorRecord) error {
	return ix.UpsertBatch(ctx, []VectorRecord{record})
}

// UpsertBatch inserts or replaces records in one transaction.
func (ix *Index) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if record.EntryID == "" {
			return errors.New("entry id is required")
		}
		if record.TenantID == "" {
			return errors.New("tenant id is required")
		}
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO maitre.knowledge_vectors (entry_id, tenant_id, category_id, active, embedding)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (entry_id) DO UPDATE
		SET tenant_id = EXCLUDED.tenant_id,
			category_id = EXCLUDED.category_id,
			active = EXCLUDED.active,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(
			ctx,
			record.EntryID,
			record.TenantID,
			record.CategoryID,
			record.Active,
			pgvector.NewVector(record.Embedding),
		); err != nil {
			return fmt.Errorf("upsert vector %s: %w", record.EntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given records. An empty id list is a no-op and
// issues no SQL.
func (ix *Index) DeleteByIDs(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	if _, err := ix.db.ExecContext(ctx, `
		DELETE FROM maitre.knowledge_vectors
		WHERE tenant_id = $1 AND entry_id = ANY($2)
	`, tenantID, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete vectors by ids: %w", err)
	}
	return nil
}

// DeleteByCategory removes all of a tenant's records in a category.
func (ix *Index) DeleteByCategory(ctx context.Context, tenantID, categoryID string) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	if categoryID == "" {
		return errors.New("category id is required")
	}
	if _, err := ix.db.ExecContext(ctx, `
		DELETE FROM maitre.knowledge_vectors
		WHERE tenant_id = $1 AND category_id = $2
	`, tenantID, categoryID); err != nil {
		return fmt.Errorf("delete vectors by category: %w", err)
	}
	return nil
}
