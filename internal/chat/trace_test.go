package chat

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordInsertsTraceWithGeneratedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO maitre.query_traces").
		WithArgs(sqlmock.AnyArg(), "t1", "u1", "¿Tenéis terraza?", "Sí, tenemos terraza.", "", 0.92, StatusResolved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewTraceStore(db)
	err = store.Record(context.Background(), QueryTrace{
		TenantID: "t1",
		UserID:   "u1",
		Question: "¿Tenéis terraza?",
		Answer:   "Sí, tenemos terraza.",
		MaxScore: 0.92,
		Status:   StatusResolved,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordRejectsInvalidStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewTraceStore(db)
	err = store.Record(context.Background(), QueryTrace{
		TenantID: "t1",
		Question: "pregunta",
		Status:   "PENDING",
	})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM maitre.query_traces").
		WithArgs("t1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "user_id", "question", "answer", "category_id", "max_score", "status", "created_at"}).
			AddRow("q2", "t1", "", "¿Hay piscina?", "No tenemos esa información.", "", 0.41, StatusOpen, now).
			AddRow("q1", "t1", "u1", "¿Tenéis terraza?", "Sí.", "", 0.92, StatusResolved, now.Add(-time.Hour)))

	store := NewTraceStore(db)
	traces, err := store.Recent(context.Background(), "t1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if traces[0].ID != "q2" || traces[0].Status != StatusOpen {
		t.Fatalf("unexpected first trace: %+v", traces[0])
	}
	if traces[1].MaxScore != 0.92 {
		t.Fatalf("unexpected second trace: %+v", traces[1])
	}
}
