package telemetry

import (
	"time"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

type PublisherConfig struct {
	VehicleID string
	Location  models.Location
	Interval  time.Duration
}

// Publisher turns per-cycle driver statuses into at most one telemetry
// message per interval.
type Publisher struct {
	vehicleID string
	topic     string
	location  models.Location
	limiter   *Limiter
	out       Dispatcher
	metrics   *services.Metrics
}

func NewPublisher(cfg PublisherConfig, out Dispatcher, metrics *services.Metrics) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Publisher{
		vehicleID: cfg.VehicleID,
		topic:     Topic(cfg.VehicleID),
		location:  cfg.Location,
		limiter:   NewLimiter(cfg.Interval),
		out:       out,
		metrics:   metrics,
	}
}

// MaybePublish reports whether an attempt was made. The interval restarts
// on every attempt whether or not the transport accepts it.
func (p *Publisher) MaybePublish(status models.DriverStatus, now time.Time) bool {
	if !p.limiter.Allow(now) {
		return false
	}
	p.metrics.IncrementPublishAttempts()

	payload, err := Encode(DriverMessage(p.vehicleID, status, p.location, now))
	if err != nil {
		log.Error().Err(err).Msg("dropping driver status")
		return true
	}
	p.out.Dispatch(p.topic, payload)
	return true
}

func (p *Publisher) Topic() string {
	return p.topic
}
