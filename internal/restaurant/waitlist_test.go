package restaurant

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPendingQueueAssignsOneBasedPositions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	day := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`notified = FALSE`).
		WithArgs("t1", day).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "party_size", "priority", "created_at"}).
			AddRow("w1", "Carlos", 2, 5, day.Add(19*time.Hour)).
			AddRow("w2", "María", 4, 0, day.Add(18*time.Hour)).
			AddRow("w3", "Luis", 3, 0, day.Add(20*time.Hour)))

	store := NewWaitlistStore(db)
	entries, err := store.PendingQueue(context.Background(), "t1", day)
	if err != nil {
		t.Fatalf("PendingQueue: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Position != i+1 {
			t.Fatalf("entry %s: expected position %d, got %d", entry.ID, i+1, entry.Position)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPendingQueueFiltersToRequestedDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	day := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`created_at::date = \$2::date`).
		WithArgs("t1", day).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "party_size", "priority", "created_at"}))

	store := NewWaitlistStore(db)
	if _, err := store.PendingQueue(context.Background(), "t1", day); err != nil {
		t.Fatalf("PendingQueue: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPendingQueueRequiresTenant(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewWaitlistStore(db)
	if _, err := store.PendingQueue(context.Background(), "", time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected error for empty tenant id")
	}
}

func TestPendingQueueRequiresDate(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewWaitlistStore(db)
	if _, err := store.PendingQueue(context.Background(), "t1", time.Time{}); err == nil {
		t.Fatal("expected error for missing date")
	}
}
