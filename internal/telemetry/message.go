package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"saferide/go-backend/internal/models"
)

const (
	topicPrefix = "vehicles/"
	topicSuffix = "/telemetry"

	// WildcardTopic matches the telemetry topic of every vehicle.
	WildcardTopic = topicPrefix + "+" + topicSuffix

	alertConfidence = 0.95
	safeConfidence  = 0.99
)

// DefaultLocation is reported until a GPS source exists.
var DefaultLocation = models.Location{Lat: 28.7041, Long: 77.1025}

func Topic(vehicleID string) string {
	return topicPrefix + vehicleID + topicSuffix
}

// DriverMessage builds the record for one driver status. Confidence only
// depends on whether the status is an alert.
func DriverMessage(vehicleID string, status models.DriverStatus, loc models.Location, now time.Time) models.Telemetry {
	confidence := safeConfidence
	if status != models.DriverSafe {
		confidence = alertConfidence
	}
	return models.Telemetry{
		VehicleID:  vehicleID,
		Timestamp:  now.Unix(),
		Status:     status.Token(),
		Lat:        loc.Lat,
		Long:       loc.Long,
		Confidence: confidence,
	}
}

func VehicleMessage(vehicleID string, status models.VehicleStatus, heartRate int, loc models.Location, now time.Time) models.Telemetry {
	return models.Telemetry{
		VehicleID:  vehicleID,
		Timestamp:  now.Unix(),
		Status:     status.Token(),
		Lat:        loc.Lat,
		Long:       loc.Long,
		Confidence: safeConfidence,
		HeartRate:  &heartRate,
	}
}

func Encode(msg models.Telemetry) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("could not encode telemetry: %w", err)
	}
	return payload, nil
}
