// Package node runs the remote display node: one cooperative loop that
// alternates between draining inbound telemetry and polling local inputs.
package node

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/aggregator"
	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
	"saferide/go-backend/internal/telemetry"
	"saferide/go-backend/internal/vehicle"
)

const DefaultPollInterval = 50 * time.Millisecond

type Config struct {
	VehicleID    string
	Location     models.Location
	PollInterval time.Duration
}

// Deps are built fresh for every run of the loop.
type Deps struct {
	Mailbox    *broker.Mailbox
	Source     *vehicle.Source
	Aggregator *aggregator.Aggregator
	Sender     telemetry.Sender
	Lost       <-chan error
	Clock      clock.Clock
	Metrics    *services.Metrics
}

// Loop owns the node's DisplayState through its Aggregator. Nothing else
// writes to it, so no locking is needed.
type Loop struct {
	cfg   Config
	topic string
	deps  Deps
}

func NewLoop(cfg Config, deps Deps) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Location == (models.Location{}) {
		cfg.Location = telemetry.DefaultLocation
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Metrics == nil {
		deps.Metrics = services.NewMetrics()
	}
	return &Loop{cfg: cfg, topic: telemetry.Topic(cfg.VehicleID), deps: deps}
}

// Run draws the initial screen and steps every poll interval until ctx
// ends or a fault occurs. It never returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.deps.Aggregator.Render(); err != nil {
		return err
	}

	ticker := l.deps.Clock.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-l.deps.Lost:
			return err
		case <-ticker.C:
			if err := l.Step(l.deps.Clock.Now()); err != nil {
				return err
			}
		}
	}
}

// Step is one pass of the loop: inbound messages first, then inputs.
func (l *Loop) Step(now time.Time) error {
	select {
	case err := <-l.deps.Lost:
		return err
	default:
	}

	var fault error
	l.deps.Mailbox.Poll(func(msg broker.Message) {
		if fault != nil {
			return
		}
		l.deps.Metrics.IncrementMessages()
		if err := l.deps.Aggregator.HandleMessage(msg.Payload); err != nil {
			if errors.Is(err, models.ErrMalformedMessage) {
				l.deps.Metrics.IncrementMalformed()
				log.Debug().Err(err).Str("topic", msg.Topic).Msg("dropping message")
				return
			}
			fault = err
		}
	})
	if fault != nil {
		return fault
	}

	ev, ok := l.deps.Source.Poll(now)
	if !ok {
		return nil
	}
	return l.send(ev)
}

func (l *Loop) send(ev vehicle.Event) error {
	if err := l.deps.Aggregator.Optimistic(ev.Status); err != nil {
		return err
	}

	l.deps.Metrics.IncrementPublishAttempts()
	payload, err := telemetry.Encode(telemetry.VehicleMessage(l.cfg.VehicleID, ev.Status, ev.HeartRate, l.cfg.Location, ev.At))
	if err != nil {
		return err
	}
	log.Info().Str("status", ev.Status.Token()).Int("heart_rate", ev.HeartRate).Msg("sending vehicle event")

	if err := l.deps.Sender.Publish(l.topic, payload); err != nil {
		if errors.Is(err, broker.ErrConnectionLost) {
			return err
		}
		l.deps.Metrics.IncrementTransportErrors()
		log.Warn().Err(err).Str("topic", l.topic).Msg("vehicle event send failed")
		return nil
	}
	l.deps.Metrics.IncrementSent()
	return nil
}
