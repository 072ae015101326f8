package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedMessage = errors.New("malformed message")

// DriverStatus is ordered by severity. DriverUnknown only appears on a
// display that has not received anything yet.
type DriverStatus int

const (
	DriverUnknown DriverStatus = iota
	DriverSafe
	DriverDistracted
	DriverDrowsy
	DriverFatigue
)

func (s DriverStatus) Token() string {
	switch s {
	case DriverSafe:
		return "safe"
	case DriverDistracted:
		return "distracted"
	case DriverDrowsy:
		return "drowsy"
	case DriverFatigue:
		return "fatigue"
	}
	return "unknown"
}

func (s DriverStatus) Label() string {
	return strings.ToUpper(s.Token())
}

func (s DriverStatus) String() string {
	return s.Token()
}

func (s DriverStatus) Alert() bool {
	return s > DriverSafe
}

func (s DriverStatus) MarshalText() ([]byte, error) {
	return []byte(s.Token()), nil
}

func (s *DriverStatus) UnmarshalText(text []byte) error {
	if strings.EqualFold(string(text), "unknown") {
		*s = DriverUnknown
		return nil
	}
	st := ParseStatus(string(text))
	if st.Kind != StatusDriver {
		return fmt.Errorf("%w: %q is not a driver status", ErrMalformedMessage, text)
	}
	*s = st.Driver
	return nil
}

type VehicleStatus int

const (
	VehicleUnknown VehicleStatus = iota
	VehicleSafe
	VehicleHarshTurn
	VehicleHardBraking
)

// Token is the wire spelling. Vehicle-safe carries a suffix so receivers
// can tell it apart from the driver-safe token.
func (s VehicleStatus) Token() string {
	switch s {
	case VehicleSafe:
		return "safe_vehicle"
	case VehicleHarshTurn:
		return "harsh turn"
	case VehicleHardBraking:
		return "hard braking"
	}
	return "unknown"
}

func (s VehicleStatus) Label() string {
	switch s {
	case VehicleSafe:
		return "SAFE"
	case VehicleUnknown:
		return "UNKNOWN"
	}
	return strings.ToUpper(s.Token())
}

func (s VehicleStatus) String() string {
	return s.Token()
}

func (s VehicleStatus) MarshalText() ([]byte, error) {
	return []byte(s.Token()), nil
}

type StatusKind int

const (
	StatusRejected StatusKind = iota
	StatusDriver
	StatusVehicle
)

// Status is a wire token parsed into exactly one of the driver stream,
// the vehicle stream, or Rejected.
type Status struct {
	Kind    StatusKind
	Driver  DriverStatus
	Vehicle VehicleStatus
	Token   string
}

var driverTokens = map[string]DriverStatus{
	"SAFE":       DriverSafe,
	"DISTRACTED": DriverDistracted,
	"DROWSY":     DriverDrowsy,
	"FATIGUE":    DriverFatigue,
}

var vehicleTokens = map[string]VehicleStatus{
	"SAFE VEHICLE": VehicleSafe,
	"HARSH TURN":   VehicleHarshTurn,
	"HARD BRAKING": VehicleHardBraking,
}

// ParseStatus never fails; unknown tokens come back as StatusRejected.
func ParseStatus(token string) Status {
	normalized := strings.ToUpper(strings.TrimSpace(token))
	if d, ok := driverTokens[normalized]; ok {
		return Status{Kind: StatusDriver, Driver: d, Token: token}
	}

	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	if v, ok := vehicleTokens[normalized]; ok {
		return Status{Kind: StatusVehicle, Vehicle: v, Token: token}
	}

	return Status{Kind: StatusRejected, Token: token}
}

type Location struct {
	Lat  float64
	Long float64
}

type Telemetry struct {
	VehicleID  string  `json:"vehicle_id"`
	Timestamp  int64   `json:"timestamp"`
	Status     string  `json:"status"`
	Lat        float64 `json:"lat"`
	Long       float64 `json:"long"`
	Confidence float64 `json:"confidence"`
	HeartRate  *int    `json:"heart_rate,omitempty"`
	Source     string  `json:"source,omitempty"`
}

func (t Telemetry) HeartRateValue() int {
	if t.HeartRate == nil {
		return 0
	}
	return *t.HeartRate
}

// DecodeTelemetry accepts fractional timestamps, which boards without an
// RTC tend to send, and truncates them to whole seconds.
func DecodeTelemetry(payload []byte) (Telemetry, error) {
	var raw struct {
		Telemetry
		Timestamp json.Number `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Telemetry{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	t := raw.Telemetry
	if raw.Timestamp != "" {
		ts, err := raw.Timestamp.Float64()
		if err != nil {
			return Telemetry{}, fmt.Errorf("%w: timestamp %q", ErrMalformedMessage, raw.Timestamp)
		}
		t.Timestamp = int64(ts)
	}
	if t.Status == "" {
		return Telemetry{}, fmt.Errorf("%w: missing status", ErrMalformedMessage)
	}
	return t, nil
}

// Point is a normalised 2D landmark coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err == nil {
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	type plain Point
	return json.Unmarshal(data, (*plain)(p))
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// LandmarkSet is one frame of tracker output. It is only valid for the
// cycle it was produced in.
type LandmarkSet []Point
