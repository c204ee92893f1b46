package restaurant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxReservationRows caps how many reservations a single lookup returns.
const maxReservationRows = 5

// Reservation is a single booking row. Time is the wall-clock slot as stored,
// e.g. "20:30".
type Reservation struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	Phone        string    `json:"phone"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	PartySize    int       `json:"partySize"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
}

// ReservationStore looks up bookings for the agent's reservation tool.
type ReservationStore struct {
	db *sql.DB
}

func NewReservationStore(db *sql.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

// Lookup returns reservations matching a guest name (case-insensitive partial
// match), a day, or both, soonest first. At least one filter is required.
// Cancelled and no-show bookings never surface.
func (s *ReservationStore) Lookup(ctx context.Context, tenantID, guestName string, date time.Time) ([]Reservation, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if guestName == "" && date.IsZero() {
		return nil, errors.New("guest name or date is required")
	}

	query := `
		SELECT id, customer_name, phone, reservation_date, reservation_time, party_size, status, COALESCE(notes, '')
		FROM maitre.reservations
		WHERE tenant_id = $1
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')`
	args := []any{tenantID}
	if guestName != "" {
		args = append(args, guestName)
		query += fmt.Sprintf(` AND LOWER(customer_name) LIKE LOWER('%%' || $%d || '%%')`, len(args))
	}
	if !date.IsZero() {
		args = append(args, date)
		query += fmt.Sprintf(` AND reservation_date = $%d`, len(args))
	}
	query += fmt.Sprintf(`
		ORDER BY reservation_date, reservation_time
		LIMIT %d`, maxReservationRows)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup reservations: %w", err)
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(
			&r.ID,
			&r.CustomerName,
			&r.Phone,
			&r.Date,
			&r.Time,
			&r.PartySize,
			&r.Status,
			&r.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return reservations, nil
}
