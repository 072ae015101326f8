// Package agent runs the sensing side: landmark frames in, one driver
// status per frame out, with rate-limited telemetry on the side.
package agent

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/detector"
	"saferide/go-backend/internal/geometry"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
	"saferide/go-backend/internal/telemetry"
)

// Frame is one tracker cycle. Nil Landmarks means no face was found.
// Reply, when set, receives the outcome on the loop's goroutine.
type Frame struct {
	Landmarks models.LandmarkSet
	Sequence  uint64
	Reply     func(Outcome)
}

type Outcome struct {
	detector.Cycle
	Skipped   bool `json:"skipped"`
	Published bool `json:"published"`
}

// Loop is the single owner of the detector session. Frames are processed
// strictly one at a time.
type Loop struct {
	session   *detector.Session
	publisher *telemetry.Publisher
	clock     clock.Clock
	metrics   *services.Metrics
}

func NewLoop(session *detector.Session, publisher *telemetry.Publisher, clk clock.Clock, metrics *services.Metrics) *Loop {
	if clk == nil {
		clk = clock.Real()
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Loop{session: session, publisher: publisher, clock: clk, metrics: metrics}
}

// Process runs one cycle. A degenerate frame is skipped: nothing is
// classified or published and the last good cycle is reported again.
func (l *Loop) Process(f Frame) Outcome {
	cycle, err := l.session.Step(f.Landmarks)
	if err != nil {
		if errors.Is(err, geometry.ErrDegenerate) {
			l.metrics.IncrementSkipped()
			log.Debug().Err(err).Uint64("sequence", f.Sequence).Msg("frame skipped")
		} else {
			log.Warn().Err(err).Uint64("sequence", f.Sequence).Msg("frame failed")
		}
		return Outcome{Cycle: cycle, Skipped: true}
	}

	if !cycle.Face {
		l.metrics.IncrementNoFace()
	}
	l.metrics.IncrementCycles(cycle.Status.Alert())
	if cycle.Status.Alert() {
		log.Debug().Str("status", cycle.Status.Token()).Str("rule", string(cycle.Rule)).Uint64("sequence", f.Sequence).Msg("alert")
	}

	published := l.publisher.MaybePublish(cycle.Status, l.clock.Now())
	return Outcome{Cycle: cycle, Published: published}
}

// Run consumes frames until ctx ends or frames is closed.
func (l *Loop) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			out := l.Process(f)
			if f.Reply != nil {
				f.Reply(out)
			}
		}
	}
}
