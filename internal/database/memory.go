package database

import (
	"context"
	"sync"
	"time"

	"saferide/go-backend/internal/models"
)

type vehicleState struct {
	latest        *models.Telemetry
	history       []models.Telemetry
	incidents     []models.Incident
	driverStatus  string
	vehicleStatus string
	points        int
	hasPoints     bool
}

// Memory is the default Store. Everything is lost on restart.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	vehicles   map[string]*vehicleState
	nextUserID int
	nextIncID  int64
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*models.User),
		vehicles: make(map[string]*vehicleState),
	}
}

func (s *Memory) vehicle(id string) *vehicleState {
	v, ok := s.vehicles[id]
	if !ok {
		v = &vehicleState{
			history:       make([]models.Telemetry, 0, HistoryLimit),
			driverStatus:  unknownStatus,
			vehicleStatus: unknownStatus,
		}
		s.vehicles[id] = v
	}
	return v
}

func (s *Memory) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return ErrConflict
	}
	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	s.users[user.Email] = &stored
	return nil
}

func (s *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	found := *u
	return &found, nil
}

func (s *Memory) RecordTelemetry(_ context.Context, rec models.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vehicle(rec.VehicleID)
	latest := rec
	v.latest = &latest
	if len(v.history) >= HistoryLimit {
		v.history = v.history[1:]
	}
	v.history = append(v.history, rec)
	return nil
}

func (s *Memory) Latest(_ context.Context, vehicleID string) (models.Telemetry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok || v.latest == nil {
		return models.Telemetry{}, ErrNotFound
	}
	return *v.latest, nil
}

func (s *Memory) History(_ context.Context, vehicleID string) ([]models.Telemetry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return []models.Telemetry{}, nil
	}
	result := make([]models.Telemetry, len(v.history))
	copy(result, v.history)
	return result, nil
}

func (s *Memory) SetDriverStatus(_ context.Context, vehicleID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicle(vehicleID).driverStatus = status
	return nil
}

func (s *Memory) SetVehicleStatus(_ context.Context, vehicleID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicle(vehicleID).vehicleStatus = status
	return nil
}

func (s *Memory) Statuses(_ context.Context, vehicleID string) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return unknownStatus, unknownStatus, nil
	}
	return v.driverStatus, v.vehicleStatus, nil
}

func (s *Memory) AddIncident(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextIncID++
	incident.ID = s.nextIncID
	v := s.vehicle(incident.VehicleID)
	if len(v.incidents) >= IncidentLimit {
		v.incidents = v.incidents[1:]
	}
	v.incidents = append(v.incidents, *incident)
	return nil
}

func (s *Memory) Incidents(_ context.Context, vehicleID string) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return []models.Incident{}, nil
	}
	result := make([]models.Incident, len(v.incidents))
	copy(result, v.incidents)
	return result, nil
}

func (s *Memory) AddPoints(_ context.Context, vehicleID string, points int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vehicle(vehicleID)
	v.points += points
	v.hasPoints = true
	return v.points, nil
}

func (s *Memory) Points(_ context.Context, vehicleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.vehicles[vehicleID]; ok {
		return v.points, nil
	}
	return 0, nil
}

func (s *Memory) RedeemPoints(_ context.Context, vehicleID string, points int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok || !v.hasPoints {
		return 0, ErrNotFound
	}
	if v.points < points {
		return v.points, ErrInsufficientPoints
	}
	v.points -= points
	return v.points, nil
}

func (s *Memory) Ping(context.Context) error {
	return nil
}

func (s *Memory) Close() {}
