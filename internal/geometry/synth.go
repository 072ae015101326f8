package geometry

import "saferide/go-backend/internal/models"

// MeshSize is the point count of a refined MediaPipe face mesh.
const MeshSize = 478

// Pose describes the ratios a synthetic face should produce.
type Pose struct {
	EyeOpenness   float64
	MouthOpenness float64
	HeadOffset    float64
}

// Synthesize builds a landmark set whose evaluated ratios equal the pose.
// Used by the tracker simulator and by tests.
func (l Layout) Synthesize(p Pose) models.LandmarkSet {
	n := max(MeshSize, l.MinPoints())
	set := make(models.LandmarkSet, n)
	for i := range set {
		set[i] = models.Point{X: 0.5, Y: 0.5}
	}

	placeEye(set, l.RightEye, 0.42, 0.42, 0.03, p.EyeOpenness)
	placeEye(set, l.LeftEye, 0.58, 0.42, 0.03, p.EyeOpenness)
	placeMouth(set, l.Mouth, 0.5, 0.65, 0.05, p.MouthOpenness)

	const faceLeft, faceWidth = 0.3, 0.4
	set[l.FaceLeftEdge] = models.Point{X: faceLeft, Y: 0.5}
	set[l.FaceRightEdge] = models.Point{X: faceLeft + faceWidth, Y: 0.5}
	set[l.NoseTip] = models.Point{X: faceLeft + p.HeadOffset*faceWidth, Y: 0.52}
	return set
}

func placeEye(set models.LandmarkSet, ring [6]int, cx, cy, halfWidth, ratio float64) {
	gap := ratio * 2 * halfWidth
	set[ring[0]] = models.Point{X: cx - halfWidth, Y: cy}
	set[ring[3]] = models.Point{X: cx + halfWidth, Y: cy}
	set[ring[1]] = models.Point{X: cx - halfWidth/3, Y: cy - gap/2}
	set[ring[5]] = models.Point{X: cx - halfWidth/3, Y: cy + gap/2}
	set[ring[2]] = models.Point{X: cx + halfWidth/3, Y: cy - gap/2}
	set[ring[4]] = models.Point{X: cx + halfWidth/3, Y: cy + gap/2}
}

func placeMouth(set models.LandmarkSet, ring [8]int, cx, cy, halfWidth, ratio float64) {
	gap := ratio * 2 * halfWidth
	set[ring[0]] = models.Point{X: cx - halfWidth, Y: cy}
	set[ring[4]] = models.Point{X: cx + halfWidth, Y: cy}
	set[ring[1]] = models.Point{X: cx - halfWidth/3, Y: cy - gap/2}
	set[ring[7]] = models.Point{X: cx - halfWidth/3, Y: cy + gap/2}
	set[ring[2]] = models.Point{X: cx, Y: cy - gap/2}
	set[ring[6]] = models.Point{X: cx, Y: cy + gap/2}
	set[ring[3]] = models.Point{X: cx + halfWidth/3, Y: cy - gap/2}
	set[ring[5]] = models.Point{X: cx + halfWidth/3, Y: cy + gap/2}
}
