package restaurant

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func reservationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_name", "phone", "reservation_date", "reservation_time", "party_size", "status", "notes"})
}

func TestLookupMatchesPartialNameCaseInsensitive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`LOWER\(customer_name\) LIKE LOWER\('%' \|\| \$2 \|\| '%'\)`).
		WithArgs("t1", "garc").
		WillReturnRows(reservationRows().
			AddRow("r1", "Ana García", "+34600111222", date, "20:30", 4, "CONFIRMED", ""))

	store := NewReservationStore(db)
	reservations, err := store.Lookup(context.Background(), "t1", "garc", time.Time{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(reservations) != 1 || reservations[0].CustomerName != "Ana García" {
		t.Fatalf("unexpected reservations: %+v", reservations)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupExcludesCancelledAndNoShow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`status NOT IN \('CANCELLED', 'NO_SHOW'\)`).
		WithArgs("t1", "Ana").
		WillReturnRows(reservationRows().
			AddRow("r1", "Ana", "+34600111222", date, "20:30", 4, "CONFIRMED", ""))

	store := NewReservationStore(db)
	reservations, err := store.Lookup(context.Background(), "t1", "Ana", time.Time{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Status != "CONFIRMED" {
		t.Fatalf("unexpected reservations: %+v", reservations)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupByDateOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`reservation_date = \$2`).
		WithArgs("t1", date).
		WillReturnRows(reservationRows().
			AddRow("r1", "Ana", "+34600111222", date, "20:30", 4, "CONFIRMED", "").
			AddRow("r2", "Carlos", "+34600333444", date, "21:00", 2, "PENDING", ""))

	store := NewReservationStore(db)
	reservations, err := store.Lookup(context.Background(), "t1", "", date)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(reservations) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(reservations))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupCombinesNameAndDateFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`LIKE LOWER\('%' \|\| \$2 \|\| '%'\).*reservation_date = \$3`).
		WithArgs("t1", "ana", date).
		WillReturnRows(reservationRows())

	store := NewReservationStore(db)
	if _, err := store.Lookup(context.Background(), "t1", "ana", date); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupRequiresNameOrDate(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewReservationStore(db)
	if _, err := store.Lookup(context.Background(), "t1", "", time.Time{}); err == nil {
		t.Fatal("expected error when both name and date are empty")
	}
}
