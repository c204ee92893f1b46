package restaurant

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestActiveStatusCombinesBothFeeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	mock.ExpectQuery("FROM maitre.incidents").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "severity", "starts_at", "ends_at"}).
			AddRow("i1", "Terraza cerrada", "Obras en la terraza", "HIGH", now, nil))
	mock.ExpectQuery("FROM maitre.weather_alerts").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_type", "message", "issued_at"}).
			AddRow("w1", "RAIN", "Lluvia prevista esta tarde", now))

	store := NewIncidentStore(db)
	status, err := store.ActiveStatus(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ActiveStatus: %v", err)
	}
	if len(status.Incidents) != 1 || status.Incidents[0].Title != "Terraza cerrada" {
		t.Fatalf("unexpected incidents: %+v", status.Incidents)
	}
	if len(status.WeatherAlerts) != 1 || status.WeatherAlerts[0].AlertType != "RAIN" {
		t.Fatalf("unexpected alerts: %+v", status.WeatherAlerts)
	}
}

func TestActiveStatusEmptyFeeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("FROM maitre.incidents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "severity", "starts_at", "ends_at"}))
	mock.ExpectQuery("FROM maitre.weather_alerts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_type", "message", "issued_at"}))

	store := NewIncidentStore(db)
	status, err := store.ActiveStatus(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ActiveStatus: %v", err)
	}
	if len(status.Incidents) != 0 || len(status.WeatherAlerts) != 0 {
		t.Fatalf("expected empty status, got %+v", status)
	}
}
