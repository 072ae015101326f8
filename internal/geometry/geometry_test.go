package geometry

import (
	"errors"
	"math"
	"testing"

	"saferide/go-backend/internal/models"
)

const tolerance = 1e-9

func TestEvaluateSynthesizedPose(t *testing.T) {
	eval := NewEvaluator(MediaPipeLayout)

	tests := []struct {
		name string
		pose Pose
	}{
		{"forward open eyes", Pose{EyeOpenness: 0.32, MouthOpenness: 0.1, HeadOffset: 0.5}},
		{"eyes closed", Pose{EyeOpenness: 0.1, MouthOpenness: 0.1, HeadOffset: 0.5}},
		{"yawning", Pose{EyeOpenness: 0.3, MouthOpenness: 1.1, HeadOffset: 0.5}},
		{"looking left", Pose{EyeOpenness: 0.3, MouthOpenness: 0.1, HeadOffset: 0.12}},
		{"nose outside face", Pose{EyeOpenness: 0.3, MouthOpenness: 0.1, HeadOffset: 1.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(MediaPipeLayout.Synthesize(tt.pose))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if math.Abs(got.EyeOpenness-tt.pose.EyeOpenness) > tolerance {
				t.Errorf("EyeOpenness = %v, want %v", got.EyeOpenness, tt.pose.EyeOpenness)
			}
			if math.Abs(got.MouthOpenness-tt.pose.MouthOpenness) > tolerance {
				t.Errorf("MouthOpenness = %v, want %v", got.MouthOpenness, tt.pose.MouthOpenness)
			}
			if math.Abs(got.HeadOffset-tt.pose.HeadOffset) > tolerance {
				t.Errorf("HeadOffset = %v, want %v", got.HeadOffset, tt.pose.HeadOffset)
			}
		})
	}
}

func TestEyeOpennessIsMeanOfBothEyes(t *testing.T) {
	set := MediaPipeLayout.Synthesize(Pose{EyeOpenness: 0.3, MouthOpenness: 0.1, HeadOffset: 0.5})
	// Close only the left eye.
	placeEye(set, MediaPipeLayout.LeftEye, 0.58, 0.42, 0.03, 0.1)

	got, err := NewEvaluator(MediaPipeLayout).Evaluate(set)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(got.EyeOpenness-0.2) > tolerance {
		t.Errorf("EyeOpenness = %v, want 0.2", got.EyeOpenness)
	}
}

func TestEvaluateDegenerate(t *testing.T) {
	eval := NewEvaluator(MediaPipeLayout)
	base := func() models.LandmarkSet {
		return MediaPipeLayout.Synthesize(Pose{EyeOpenness: 0.3, MouthOpenness: 0.2, HeadOffset: 0.5})
	}

	tests := []struct {
		name string
		set  models.LandmarkSet
	}{
		{"empty", nil},
		{"too short", base()[:100]},
		{"zero face width", func() models.LandmarkSet {
			s := base()
			s[MediaPipeLayout.FaceRightEdge] = s[MediaPipeLayout.FaceLeftEdge]
			return s
		}()},
		{"inverted face edges", func() models.LandmarkSet {
			s := base()
			s[MediaPipeLayout.FaceLeftEdge], s[MediaPipeLayout.FaceRightEdge] = s[MediaPipeLayout.FaceRightEdge], s[MediaPipeLayout.FaceLeftEdge]
			return s
		}()},
		{"collapsed eye corners", func() models.LandmarkSet {
			s := base()
			s[MediaPipeLayout.RightEye[3]] = s[MediaPipeLayout.RightEye[0]]
			return s
		}()},
		{"collapsed mouth corners", func() models.LandmarkSet {
			s := base()
			s[MediaPipeLayout.Mouth[4]] = s[MediaPipeLayout.Mouth[0]]
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eval.Evaluate(tt.set); !errors.Is(err, ErrDegenerate) {
				t.Errorf("err = %v, want ErrDegenerate", err)
			}
		})
	}
}

func TestMinPoints(t *testing.T) {
	if got := MediaPipeLayout.MinPoints(); got != 455 {
		t.Errorf("MinPoints() = %d, want 455", got)
	}
}
