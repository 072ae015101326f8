package node

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
)

// Runner is a fully built node. Close releases everything Build created.
type Runner interface {
	Run(ctx context.Context) error
	Close()
}

// Screen shows fatal faults on the node's display.
type Screen interface {
	WiFiFailed() error
	Fault(err error) error
}

type BuildFunc func(ctx context.Context) (Runner, error)

// Supervisor restarts the node from scratch after any fault. Nothing
// survives a restart: every component, DisplayState included, is rebuilt.
type Supervisor struct {
	Build  BuildFunc
	Screen Screen
	Delay  time.Duration
	Clock  clock.Clock
}

// Run returns only when ctx ends.
func (s *Supervisor) Run(ctx context.Context) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.Real()
	}

	for restarts := 0; ; restarts++ {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, broker.ErrUnavailable) {
			s.show(s.Screen.WiFiFailed())
		} else {
			s.show(s.Screen.Fault(err))
		}
		log.Error().Err(err).Int("restarts", restarts).Dur("delay", s.Delay).Msg("node fault, restarting")

		if !wait(ctx, clk, s.Delay) {
			return ctx.Err()
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	runner, err := s.Build(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Run(ctx)
}

func (s *Supervisor) show(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("could not draw fault screen")
	}
}

func wait(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	ticker := clk.NewTicker(d)
	defer ticker.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return true
	}
}
