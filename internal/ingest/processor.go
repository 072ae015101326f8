// Package ingest processes telemetry arriving at the backend: it splits
// the shared status field into driver and vehicle streams, keeps history,
// awards safe-driving points and records incidents.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/database"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

const (
	HealthCriticalBPM = 120
	StreakThreshold   = 15
	PointsPerStreak   = 10
	IncidentCooldown  = 10 * time.Second

	StatusSafe           = "safe"
	StatusHealthCritical = "HEALTH_CRITICAL"

	SourceAI        = "ai"
	SourceIoT       = "iot"
	SourceBiometric = "biometric"
)

// Broadcaster fans processed records out to live subscribers.
type Broadcaster interface {
	BroadcastTelemetry(rec models.Telemetry)
	BroadcastIncident(incident models.Incident)
}

type Result struct {
	Record        models.Telemetry
	Incident      *models.Incident
	PointsAwarded int
}

type Processor struct {
	store   database.Store
	clock   clock.Clock
	hub     Broadcaster
	metrics *services.Metrics

	mu           sync.Mutex
	streaks      map[string]int
	lastIncident map[string]time.Time
}

func NewProcessor(store database.Store, hub Broadcaster, clk clock.Clock, metrics *services.Metrics) *Processor {
	if clk == nil {
		clk = clock.Real()
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Processor{
		store:        store,
		clock:        clk,
		hub:          hub,
		metrics:      metrics,
		streaks:      make(map[string]int),
		lastIncident: make(map[string]time.Time),
	}
}

// Handle processes one payload. Malformed payloads and unknown status
// tokens return an error wrapping models.ErrMalformedMessage and leave
// no trace in the store.
func (p *Processor) Handle(ctx context.Context, payload []byte) (Result, error) {
	p.metrics.IncrementMessages()

	rec, err := models.DecodeTelemetry(payload)
	if err != nil {
		p.metrics.IncrementMalformed()
		return Result{}, err
	}
	status := models.ParseStatus(rec.Status)
	if status.Kind == models.StatusRejected {
		p.metrics.IncrementMalformed()
		return Result{}, fmt.Errorf("%w: unrecognised status %q", models.ErrMalformedMessage, rec.Status)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	// Nodes have no real-time clock; the server's time is authoritative.
	rec.Timestamp = now.Unix()

	vehicleEvent := false
	switch status.Kind {
	case models.StatusVehicle:
		vehicleEvent = status.Vehicle != models.VehicleSafe
		rec.Status = status.Vehicle.Token()
		if status.Vehicle == models.VehicleSafe {
			rec.Status = StatusSafe
		}
		rec.Source = SourceIoT
		if err := p.store.SetVehicleStatus(ctx, rec.VehicleID, rec.Status); err != nil {
			return Result{}, err
		}
	case models.StatusDriver:
		rec.Status = status.Driver.Token()
		rec.Source = SourceAI
		if err := p.store.SetDriverStatus(ctx, rec.VehicleID, rec.Status); err != nil {
			return Result{}, err
		}
	}

	if rec.HeartRateValue() > HealthCriticalBPM {
		rec.Status = StatusHealthCritical
		rec.Source = SourceBiometric
	}

	if err := p.store.RecordTelemetry(ctx, rec); err != nil {
		return Result{}, err
	}
	res := Result{Record: rec}

	if rec.Status == StatusSafe {
		p.streaks[rec.VehicleID]++
		if p.streaks[rec.VehicleID] == StreakThreshold {
			total, err := p.store.AddPoints(ctx, rec.VehicleID, PointsPerStreak)
			if err != nil {
				return res, err
			}
			res.PointsAwarded = PointsPerStreak
			p.streaks[rec.VehicleID] = 0
			log.Info().Str("vehicle_id", rec.VehicleID).Int("points", PointsPerStreak).Int("total", total).Msg("safe streak rewarded")
		}
	} else {
		p.streaks[rec.VehicleID] = 0

		last, seen := p.lastIncident[rec.VehicleID]
		bypass := vehicleEvent || rec.Status == StatusHealthCritical
		if bypass || !seen || now.Sub(last) > IncidentCooldown {
			incident := &models.Incident{
				VehicleID:  rec.VehicleID,
				Status:     rec.Status,
				Source:     rec.Source,
				HeartRate:  rec.HeartRateValue(),
				Confidence: rec.Confidence,
				Timestamp:  rec.Timestamp,
			}
			if err := p.store.AddIncident(ctx, incident); err != nil {
				return res, err
			}
			p.lastIncident[rec.VehicleID] = now
			p.metrics.IncrementIncidents()
			res.Incident = incident
			log.Warn().Str("vehicle_id", rec.VehicleID).Str("status", rec.Status).Msg("incident detected")
		} else {
			log.Debug().Str("vehicle_id", rec.VehicleID).Str("status", rec.Status).Msg("incident rate limited")
		}
	}

	if p.hub != nil {
		p.hub.BroadcastTelemetry(rec)
		if res.Incident != nil {
			p.hub.BroadcastIncident(*res.Incident)
		}
	}
	return res, nil
}
