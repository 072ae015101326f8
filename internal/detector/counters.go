package detector

import (
	"errors"
	"fmt"

	"saferide/go-backend/internal/geometry"
)

var ErrInvalidThresholds = errors.New("invalid detector thresholds")

type Counters struct {
	EyeClosedFrames  uint `json:"eye_closed_frames"`
	HeadTurnedFrames uint `json:"head_turned_frames"`
}

// Thresholds are the fixed tuning constants of the detector. Frame counts
// assume roughly 30 cycles per second.
type Thresholds struct {
	EyeClosed        float64 // EAR below this counts as closed
	MouthOpen        float64 // MAR above this counts as a yawn
	HeadLow          float64
	HeadHigh         float64
	DrowsyFrames     uint
	FatigueFrames    uint
	SneezeWindow     uint
	DistractedFrames uint
}

var DefaultThresholds = Thresholds{
	EyeClosed:        0.25,
	MouthOpen:        0.8,
	HeadLow:          0.2,
	HeadHigh:         0.8,
	DrowsyFrames:     45,
	FatigueFrames:    75,
	SneezeWindow:     30,
	DistractedFrames: 20,
}

// Validate reports combinations under which a rule can never fire or
// fires ahead of the one it should escalate from. Classify does not call
// it; loaders do.
func (t Thresholds) Validate() error {
	switch {
	case t.EyeClosed <= 0:
		return fmt.Errorf("%w: eye-closed ratio %v must be positive", ErrInvalidThresholds, t.EyeClosed)
	case t.HeadLow >= t.HeadHigh:
		return fmt.Errorf("%w: head band [%v, %v] is empty", ErrInvalidThresholds, t.HeadLow, t.HeadHigh)
	case t.DrowsyFrames == 0 || t.DistractedFrames == 0:
		return fmt.Errorf("%w: frame counts must be positive", ErrInvalidThresholds)
	case t.FatigueFrames <= t.DrowsyFrames:
		return fmt.Errorf("%w: fatigue frames %d must exceed drowsy frames %d", ErrInvalidThresholds, t.FatigueFrames, t.DrowsyFrames)
	case t.SneezeWindow >= t.DrowsyFrames:
		return fmt.Errorf("%w: sneeze window %d must be shorter than drowsy frames %d", ErrInvalidThresholds, t.SneezeWindow, t.DrowsyFrames)
	}
	return nil
}

// Update is the per-cycle counter step.
func (t Thresholds) Update(c Counters, r geometry.Ratios) Counters {
	c.EyeClosedFrames = step(c.EyeClosedFrames, r.EyeOpenness < t.EyeClosed)
	c.HeadTurnedFrames = step(c.HeadTurnedFrames, r.HeadOffset < t.HeadLow || r.HeadOffset > t.HeadHigh)
	return c
}

func (t Thresholds) MouthOpenFlag(r geometry.Ratios) bool {
	return r.MouthOpenness > t.MouthOpen
}

func step(n uint, condition bool) uint {
	if condition {
		return n + 1
	}
	if n == 0 {
		return 0
	}
	return n - 1
}
