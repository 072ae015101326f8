package vehicle

import "math/rand/v2"

// HeartSampler produces one heart-rate reading. The node has no real
// sensor: the heart wire selects between an elevated and a resting band.
type HeartSampler func(wire bool) int

const (
	elevatedMin = 125
	elevatedMax = 145
	restingMin  = 60
	restingMax  = 80
)

// RandomHeartRate draws uniformly from the band selected by the wire,
// inclusive on both ends.
func RandomHeartRate(r *rand.Rand) HeartSampler {
	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}
	return func(wire bool) int {
		if wire {
			return elevatedMin + intN(elevatedMax-elevatedMin+1)
		}
		return restingMin + intN(restingMax-restingMin+1)
	}
}
