package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func entryRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{"id", "tenant_id", "category_id", "title", "section", "content", "source", "active", "created_at", "updated_at"})
}

func TestFindActiveByIDsPreservesInputOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	// The database returns rows in its own order; the store must reorder them
	// to match the requested ids.
	mock.ExpectQuery("SELECT id, tenant_id").
		WillReturnRows(entryRows(t).
			AddRow("e1", "t1", "", "Horario", "Horarios", "Abrimos a las 13h", "manual", true, now, now).
			AddRow("e3", "t1", "", "Terraza", "", "Terraza exterior disponible", "import", true, now, now).
			AddRow("e2", "t1", "", "Menú", "Carta", "Menú del día 15€", "manual", true, now, now))

	store := NewStore(db)
	entries, err := store.FindActiveByIDs(context.Background(), "t1", []string{"e3", "e1", "e2"})
	if err != nil {
		t.Fatalf("FindActiveByIDs: %v", err)
	}

	want := []string{"e3", "e1", "e2"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Fatalf("entry %d: expected id %s, got %s", i, id, entries[i].ID)
		}
	}
}

func TestFindActiveByIDsDropsMissingIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, tenant_id").
		WillReturnRows(entryRows(t).
			AddRow("e2", "t1", "", "Menú", "Carta", "Menú del día 15€", "manual", true, now, now))

	store := NewStore(db)
	entries, err := store.FindActiveByIDs(context.Background(), "t1", []string{"e1", "e2", "e9"})
	if err != nil {
		t.Fatalf("FindActiveByIDs: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e2" {
		t.Fatalf("expected only e2, got %+v", entries)
	}
}

func TestFindActiveByIDsEmptyInputIssuesNoSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	entries, err := store.FindActiveByIDs(context.Background(), "t1", nil)
	if err != nil {
		t.Fatalf("FindActiveByIDs: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected SQL issued: %v", err)
	}
}

func TestFindActiveByIDsSurfacesSectionAndSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, tenant_id").
		WillReturnRows(entryRows(t).
			AddRow("e1", "t1", "", "Horario", "Horarios", "Abrimos a las 13h", "import", true, now, now))

	store := NewStore(db)
	entries, err := store.FindActiveByIDs(context.Background(), "t1", []string{"e1"})
	if err != nil {
		t.Fatalf("FindActiveByIDs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Section != "Horarios" || entries[0].Source != "import" {
		t.Fatalf("unexpected section/source: %+v", entries[0])
	}
}

func TestInsertDefaultsSourceToManual(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO maitre.knowledge_entries").
		WithArgs("t1", "", "Horario", "", "Abrimos a las 13h", "manual").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1"))

	store := NewStore(db)
	id, err := store.Insert(context.Background(), Entry{TenantID: "t1", Title: "Horario", Content: "Abrimos a las 13h"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "e1" {
		t.Fatalf("expected id e1, got %s", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeactivateReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE maitre.knowledge_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	if err := store.Deactivate(context.Background(), "t1", "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestInsertRequiresTitleAndContent(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	if _, err := store.Insert(context.Background(), Entry{TenantID: "t1", Title: "only title"}); err == nil {
		t.Fatal("expected error for missing content")
	}
}
