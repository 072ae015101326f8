package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"saferide/go-backend/internal/models"
)

// storeContract runs the behaviour every Store must share. ns keeps the
// vehicle IDs and emails of one run apart from earlier runs against the
// same database.
func storeContract(t *testing.T, s Store, ns string) {
	t.Run("users", func(t *testing.T) { checkUsers(t, s, ns) })
	t.Run("history bounded", func(t *testing.T) { checkHistoryBounded(t, s, ns) })
	t.Run("statuses", func(t *testing.T) { checkStatuses(t, s, ns) })
	t.Run("incidents bounded", func(t *testing.T) { checkIncidentsBounded(t, s, ns) })
	t.Run("points", func(t *testing.T) { checkPoints(t, s, ns) })
}

func checkUsers(t *testing.T, s Store, ns string) {
	ctx := context.Background()
	email := ns + "a@example.com"

	u := &models.User{Email: email, Name: "A", VehicleID: ns + "v-101", PasswordHash: "x"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 || u.CreatedAt.IsZero() {
		t.Fatalf("user not populated: %+v", u)
	}
	if err := s.CreateUser(ctx, &models.User{Email: email, PasswordHash: "y"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate signup err = %v", err)
	}

	got, err := s.UserByEmail(ctx, email)
	if err != nil || got.VehicleID != ns+"v-101" || got.PasswordHash != "x" {
		t.Fatalf("UserByEmail = %+v, %v", got, err)
	}
	if _, err := s.UserByEmail(ctx, ns+"nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func checkHistoryBounded(t *testing.T, s Store, ns string) {
	ctx := context.Background()
	vehicle := ns + "v-101"

	if _, err := s.Latest(ctx, vehicle); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest on empty store = %v", err)
	}
	if history, err := s.History(ctx, vehicle); err != nil || history == nil || len(history) != 0 {
		t.Fatalf("History on empty store = %v, %v; want empty non-nil", history, err)
	}

	for i := 0; i < HistoryLimit+5; i++ {
		if err := s.RecordTelemetry(ctx, models.Telemetry{VehicleID: vehicle, Timestamp: int64(i), Status: "safe"}); err != nil {
			t.Fatal(err)
		}
	}
	history, err := s.History(ctx, vehicle)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != HistoryLimit {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Timestamp != 5 || history[len(history)-1].Timestamp != HistoryLimit+4 {
		t.Fatalf("history window = %d..%d", history[0].Timestamp, history[len(history)-1].Timestamp)
	}

	latest, err := s.Latest(ctx, vehicle)
	if err != nil || latest.Timestamp != HistoryLimit+4 {
		t.Fatalf("Latest = %+v, %v", latest, err)
	}
}

func checkStatuses(t *testing.T, s Store, ns string) {
	ctx := context.Background()
	vehicle := ns + "v-102"

	d, v, err := s.Statuses(ctx, vehicle)
	if err != nil || d != "unknown" || v != "unknown" {
		t.Fatalf("statuses = %q, %q, %v", d, v, err)
	}

	if err := s.SetDriverStatus(ctx, vehicle, "drowsy"); err != nil {
		t.Fatal(err)
	}
	d, v, _ = s.Statuses(ctx, vehicle)
	if d != "drowsy" || v != "unknown" {
		t.Fatalf("after driver update: %q, %q", d, v)
	}

	if err := s.SetVehicleStatus(ctx, vehicle, "safe"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDriverStatus(ctx, vehicle, "fatigue"); err != nil {
		t.Fatal(err)
	}
	d, v, _ = s.Statuses(ctx, vehicle)
	if d != "fatigue" || v != "safe" {
		t.Fatalf("statuses = %q, %q", d, v)
	}
}

func checkIncidentsBounded(t *testing.T, s Store, ns string) {
	ctx := context.Background()
	vehicle := ns + "v-103"

	for i := 0; i < IncidentLimit+3; i++ {
		inc := &models.Incident{VehicleID: vehicle, Status: fmt.Sprintf("s%d", i), Source: "driver", Timestamp: int64(i)}
		if err := s.AddIncident(ctx, inc); err != nil {
			t.Fatal(err)
		}
		if inc.ID == 0 {
			t.Fatalf("incident %d got no id", i)
		}
	}
	incidents, err := s.Incidents(ctx, vehicle)
	if err != nil {
		t.Fatal(err)
	}
	if len(incidents) != IncidentLimit || incidents[0].Status != "s3" {
		t.Fatalf("incidents = %d, first %q", len(incidents), incidents[0].Status)
	}
	if last := incidents[len(incidents)-1]; last.Status != fmt.Sprintf("s%d", IncidentLimit+2) || last.Source != "driver" {
		t.Fatalf("newest incident = %+v", last)
	}
}

func checkPoints(t *testing.T, s Store, ns string) {
	ctx := context.Background()
	vehicle := ns + "v-104"

	if _, err := s.RedeemPoints(ctx, vehicle, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("redeem without points = %v", err)
	}
	if p, err := s.Points(ctx, vehicle); err != nil || p != 0 {
		t.Fatalf("Points before any award = %d, %v", p, err)
	}

	if total, _ := s.AddPoints(ctx, vehicle, 10); total != 10 {
		t.Fatalf("AddPoints = %d", total)
	}
	if total, _ := s.AddPoints(ctx, vehicle, 5); total != 15 {
		t.Fatalf("second AddPoints = %d", total)
	}
	if _, err := s.RedeemPoints(ctx, vehicle, 16); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("overdraw = %v", err)
	}
	balance, err := s.RedeemPoints(ctx, vehicle, 4)
	if err != nil || balance != 11 {
		t.Fatalf("RedeemPoints = %d, %v", balance, err)
	}
	if p, _ := s.Points(ctx, vehicle); p != 11 {
		t.Fatalf("Points = %d", p)
	}
}
