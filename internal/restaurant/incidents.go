package restaurant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	maxIncidentRows     = 5
	maxWeatherAlertRows = 3
)

// Incident is an operational disruption the restaurant wants guests to know
// about (kitchen closures, private events, works).
type Incident struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
}

// WeatherAlert mirrors incidents for weather conditions affecting service,
// typically the outdoor terrace.
type WeatherAlert struct {
	ID        string    `json:"id"`
	AlertType string    `json:"alertType"`
	Message   string    `json:"message"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// ServiceStatus bundles both feeds for the agent's incidents tool.
type ServiceStatus struct {
	Incidents     []Incident     `json:"incidents"`
	WeatherAlerts []WeatherAlert `json:"weatherAlerts"`
}

// IncidentStore reads the incident and weather alert feeds.
type IncidentStore struct {
	db *sql.DB
}

func NewIncidentStore(db *sql.DB) *IncidentStore {
	return &IncidentStore{db: db}
}

// ActiveStatus fetches current incidents and weather alerts concurrently.
func (s *IncidentStore) ActiveStatus(ctx context.Context, tenantID string) (ServiceStatus, error) {
	if tenantID == "" {
		return ServiceStatus{}, errors.New("tenant id is required")
	}

	var status ServiceStatus
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		incidents, err := s.activeIncidents(gctx, tenantID)
		if err != nil {
			return err
		}
		status.Incidents = incidents
		return nil
	})
	group.Go(func() error {
		alerts, err := s.activeWeatherAlerts(gctx, tenantID)
		if err != nil {
			return err
		}
		status.WeatherAlerts = alerts
		return nil
	})
	if err := group.Wait(); err != nil {
		return ServiceStatus{}, err
	}
	return status, nil
}

func (s *IncidentStore) activeIncidents(ctx context.Context, tenantID string) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, description, severity, starts_at, ends_at
		FROM maitre.incidents
		WHERE tenant_id = $1
		  AND active = TRUE
		ORDER BY starts_at DESC
		LIMIT %d
	`, maxIncidentRows), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		var incident Incident
		var endsAt sql.NullTime
		if err := rows.Scan(
			&incident.ID,
			&incident.Title,
			&incident.Description,
			&incident.Severity,
			&incident.StartsAt,
			&endsAt,
		); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if endsAt.Valid {
			t := endsAt.Time
			incident.EndsAt = &t
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return incidents, nil
}

func (s *IncidentStore) activeWeatherAlerts(ctx context.Context, tenantID string) ([]WeatherAlert, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, alert_type, message, issued_at
		FROM maitre.weather_alerts
		WHERE tenant_id = $1
		  AND active = TRUE
		ORDER BY issued_at DESC
		LIMIT %d
	`, maxWeatherAlertRows), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list weather alerts: %w", err)
	}
	defer rows.Close()

	var alerts []WeatherAlert
	for rows.Next() {
		var alert WeatherAlert
		if err := rows.Scan(&alert.ID, &alert.AlertType, &alert.Message, &alert.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan weather alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather alerts: %w", err)
	}
	return alerts, nil
}
