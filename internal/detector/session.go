package detector

import (
	"fmt"

	"saferide/go-backend/internal/geometry"
	"saferide/go-backend/internal/models"
)

// Cycle is the outcome of one sensing cycle.
type Cycle struct {
	Decision
	Ratios   geometry.Ratios `json:"ratios"`
	Counters Counters        `json:"counters"`
	Face     bool            `json:"face"`
	Sequence uint64          `json:"sequence"`
}

// Session owns the counters for one sensing loop. It is not safe for
// concurrent use; the loop that creates it is its only writer.
type Session struct {
	thresholds Thresholds
	evaluator  *geometry.Evaluator
	counters   Counters
	last       Cycle
	cycles     uint64
}

func NewSession(thresholds Thresholds, layout geometry.Layout) *Session {
	return &Session{
		thresholds: thresholds,
		evaluator:  geometry.NewEvaluator(layout),
		last:       Cycle{Decision: Decision{Status: models.DriverSafe, Rule: RuleDefault}},
	}
}

// Step runs one cycle. An empty set means no face was detected: the
// status defaults to Safe and the counters hold their previous values.
// A degenerate set skips the cycle entirely; the error wraps
// geometry.ErrDegenerate and the returned Cycle is the last good one.
func (s *Session) Step(set models.LandmarkSet) (Cycle, error) {
	s.cycles++

	if len(set) == 0 {
		return Cycle{
			Decision: Decision{Status: models.DriverSafe, Rule: RuleNoFace},
			Counters: s.counters,
			Sequence: s.cycles,
		}, nil
	}

	ratios, err := s.evaluator.Evaluate(set)
	if err != nil {
		return s.last, fmt.Errorf("cycle %d skipped: %w", s.cycles, err)
	}

	s.counters = s.thresholds.Update(s.counters, ratios)
	s.last = Cycle{
		Decision: s.thresholds.Classify(s.counters, s.thresholds.MouthOpenFlag(ratios)),
		Ratios:   ratios,
		Counters: s.counters,
		Face:     true,
		Sequence: s.cycles,
	}
	return s.last, nil
}

func (s *Session) Counters() Counters {
	return s.counters
}

func (s *Session) Cycles() uint64 {
	return s.cycles
}
