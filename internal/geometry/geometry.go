// Package geometry turns one frame of facial landmarks into the three
// scalar signals the detector works with: eye openness (EAR), mouth
// openness (MAR) and a horizontal head-offset proxy for yaw.
package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"saferide/go-backend/internal/models"
)

// ErrDegenerate means a reference distance was zero or negative, or the
// landmark set was too short for the layout. The cycle must be skipped.
var ErrDegenerate = errors.New("geometry degenerate")

type Ratios struct {
	EyeOpenness   float64 `json:"ear"`
	MouthOpenness float64 `json:"mar"`
	HeadOffset    float64 `json:"head_offset"`
}

// Layout names the landmark indices used by the evaluator. Eye rings use
// the 6-point convention (corners at 0 and 3, lids at 1/5 and 2/4); the
// mouth ring has corners at 0 and 4 and lips at 2/6 and 3/5.
type Layout struct {
	LeftEye       [6]int
	RightEye      [6]int
	Mouth         [8]int
	NoseTip       int
	FaceLeftEdge  int
	FaceRightEdge int
}

// MediaPipeLayout matches the 468/478-point MediaPipe face mesh.
var MediaPipeLayout = Layout{
	LeftEye:       [6]int{362, 385, 387, 263, 373, 380},
	RightEye:      [6]int{33, 160, 158, 133, 153, 144},
	Mouth:         [8]int{61, 37, 0, 267, 314, 17, 84, 181},
	NoseTip:       1,
	FaceLeftEdge:  234,
	FaceRightEdge: 454,
}

// MinPoints is the shortest landmark set the layout can be applied to.
func (l Layout) MinPoints() int {
	highest := max(l.NoseTip, l.FaceLeftEdge, l.FaceRightEdge)
	for _, i := range l.LeftEye {
		highest = max(highest, i)
	}
	for _, i := range l.RightEye {
		highest = max(highest, i)
	}
	for _, i := range l.Mouth {
		highest = max(highest, i)
	}
	return highest + 1
}

type Evaluator struct {
	layout    Layout
	minPoints int
}

func NewEvaluator(layout Layout) *Evaluator {
	return &Evaluator{layout: layout, minPoints: layout.MinPoints()}
}

func (e *Evaluator) Evaluate(set models.LandmarkSet) (Ratios, error) {
	if len(set) < e.minPoints {
		return Ratios{}, fmt.Errorf("%w: %d landmarks, layout needs %d", ErrDegenerate, len(set), e.minPoints)
	}

	left, err := eyeOpenness(set, e.layout.LeftEye)
	if err != nil {
		return Ratios{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := eyeOpenness(set, e.layout.RightEye)
	if err != nil {
		return Ratios{}, fmt.Errorf("right eye: %w", err)
	}
	mouth, err := mouthOpenness(set, e.layout.Mouth)
	if err != nil {
		return Ratios{}, fmt.Errorf("mouth: %w", err)
	}
	offset, err := headOffset(set, e.layout)
	if err != nil {
		return Ratios{}, fmt.Errorf("head offset: %w", err)
	}

	return Ratios{
		EyeOpenness:   (left + right) / 2,
		MouthOpenness: mouth,
		HeadOffset:    offset,
	}, nil
}

func eyeOpenness(set models.LandmarkSet, ring [6]int) (float64, error) {
	return openness(
		distance(set[ring[1]], set[ring[5]]),
		distance(set[ring[2]], set[ring[4]]),
		distance(set[ring[0]], set[ring[3]]),
	)
}

func mouthOpenness(set models.LandmarkSet, ring [8]int) (float64, error) {
	return openness(
		distance(set[ring[2]], set[ring[6]]),
		distance(set[ring[3]], set[ring[5]]),
		distance(set[ring[0]], set[ring[4]]),
	)
}

func openness(vertical1, vertical2, horizontal float64) (float64, error) {
	if horizontal <= 0 {
		return 0, ErrDegenerate
	}
	return (vertical1 + vertical2) / (2 * horizontal), nil
}

// headOffset is ~0.5 when facing the camera. It leaves [0,1] when the nose
// projects outside the face edges; callers must tolerate that.
func headOffset(set models.LandmarkSet, l Layout) (float64, error) {
	leftX := set[l.FaceLeftEdge].X
	width := set[l.FaceRightEdge].X - leftX
	if width <= 0 {
		return 0, ErrDegenerate
	}
	return (set[l.NoseTip].X - leftX) / width, nil
}

func distance(a, b models.Point) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}
