package vehicle

import (
	"time"

	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/telemetry"
)

const DefaultHeartRateThreshold = 100

type Event struct {
	Status    models.VehicleStatus
	HeartRate int
	At        time.Time
}

type SourceConfig struct {
	HeartRateThreshold int
	Interval           time.Duration
	Sampler            HeartSampler
}

// Source turns the node's inputs into vehicle events. It owns its rate
// limit, separate from any driver-status publisher.
type Source struct {
	inputs    Inputs
	sample    HeartSampler
	threshold int
	limiter   *telemetry.Limiter
}

func NewSource(inputs Inputs, cfg SourceConfig) *Source {
	if cfg.HeartRateThreshold <= 0 {
		cfg.HeartRateThreshold = DefaultHeartRateThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = telemetry.DefaultInterval
	}
	if cfg.Sampler == nil {
		cfg.Sampler = RandomHeartRate(nil)
	}
	return &Source{
		inputs:    inputs,
		sample:    cfg.Sampler,
		threshold: cfg.HeartRateThreshold,
		limiter:   telemetry.NewLimiter(cfg.Interval),
	}
}

// Poll reads the inputs once. A pressed button always produces its event;
// with no button, a heart rate above the threshold produces a safe
// vehicle event carrying that rate. Inside the rate-limit window the
// inputs are left unread, so a latched press waits for the window to close.
func (s *Source) Poll(now time.Time) (Event, bool) {
	if !s.limiter.Ready(now) {
		return Event{}, false
	}
	status, pressed := s.button()
	heartRate := s.sample(asserted(s.inputs.HeartWire))

	if !pressed {
		if heartRate <= s.threshold {
			return Event{}, false
		}
		status = models.VehicleSafe
	}
	if !s.limiter.Allow(now) {
		return Event{}, false
	}
	return Event{Status: status, HeartRate: heartRate, At: now}, true
}

func (s *Source) button() (models.VehicleStatus, bool) {
	switch {
	case asserted(s.inputs.Safe):
		return models.VehicleSafe, true
	case asserted(s.inputs.HarshTurn):
		return models.VehicleHarshTurn, true
	case asserted(s.inputs.HardBraking):
		return models.VehicleHardBraking, true
	}
	return models.VehicleUnknown, false
}
