package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	VehicleID    string    `json:"vehicle_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	VehicleID string `json:"vehicle_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RedeemRequest struct {
	VehicleID string `json:"vehicle_id"`
	Points    int    `json:"points"`
}

// Snapshot is the latest record for a vehicle plus the two split statuses.
type Snapshot struct {
	Telemetry
	DriverStatus  string `json:"driver_status"`
	VehicleStatus string `json:"vehicle_status"`
}

type Incident struct {
	ID         int64   `json:"id"`
	VehicleID  string  `json:"vehicle_id"`
	Status     string  `json:"status"`
	Source     string  `json:"source"`
	HeartRate  int     `json:"heart_rate,omitempty"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status        string `json:"status"`
	Broker        bool   `json:"broker"`
	ActiveClients int    `json:"active_clients"`
	UptimeSec     int64  `json:"uptime_sec"`
	Version       string `json:"version,omitempty"`
}
