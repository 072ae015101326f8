package database

import (
	"context"
	"errors"

	"saferide/go-backend/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInsufficientPoints = errors.New("insufficient points")
)

const (
	HistoryLimit  = 50
	IncidentLimit = 20
)

// Store keeps the backend's per-vehicle state. History and incidents are
// bounded; the oldest entries are evicted first.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	RecordTelemetry(ctx context.Context, rec models.Telemetry) error
	Latest(ctx context.Context, vehicleID string) (models.Telemetry, error)
	History(ctx context.Context, vehicleID string) ([]models.Telemetry, error)

	SetDriverStatus(ctx context.Context, vehicleID, status string) error
	SetVehicleStatus(ctx context.Context, vehicleID, status string) error
	// Statuses returns "unknown" for a stream that never reported.
	Statuses(ctx context.Context, vehicleID string) (driver, vehicle string, err error)

	AddIncident(ctx context.Context, incident *models.Incident) error
	Incidents(ctx context.Context, vehicleID string) ([]models.Incident, error)

	AddPoints(ctx context.Context, vehicleID string, points int) (int, error)
	Points(ctx context.Context, vehicleID string) (int, error)
	// RedeemPoints fails with ErrNotFound when the vehicle never earned
	// points and ErrInsufficientPoints when the balance is too low.
	RedeemPoints(ctx context.Context, vehicleID string, points int) (int, error)

	Ping(ctx context.Context) error
	Close()
}

const unknownStatus = "unknown"
