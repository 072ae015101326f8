package main

import (
	"fmt"
	"sort"

	"saferide/go-backend/internal/geometry"
	"saferide/go-backend/internal/models"
)

var (
	attentive   = geometry.Pose{EyeOpenness: 0.32, MouthOpenness: 0.1, HeadOffset: 0.5}
	eyesClosed  = geometry.Pose{EyeOpenness: 0.1, MouthOpenness: 0.1, HeadOffset: 0.5}
	yawning     = geometry.Pose{EyeOpenness: 0.32, MouthOpenness: 0.95, HeadOffset: 0.5}
	lookingAway = geometry.Pose{EyeOpenness: 0.32, MouthOpenness: 0.1, HeadOffset: 0.9}
)

// phase is a run of identical frames. A nil pose means no face.
type phase struct {
	pose   *geometry.Pose
	frames int
}

type scenario struct {
	description string
	phases      []phase
	// expect is the status the agent should report on the last frame.
	expect models.DriverStatus
}

func pose(p geometry.Pose) *geometry.Pose { return &p }

var scenarios = map[string]scenario{
	"alert": {
		description: "eyes open, facing forward",
		phases:      []phase{{pose(attentive), 60}},
		expect:      models.DriverSafe,
	},
	"drowsy": {
		description: "eyes closed long enough to count as drowsy",
		phases:      []phase{{pose(attentive), 10}, {pose(eyesClosed), 50}},
		expect:      models.DriverDrowsy,
	},
	"fatigue": {
		description: "eyes closed past the fatigue limit",
		phases:      []phase{{pose(eyesClosed), 80}},
		expect:      models.DriverFatigue,
	},
	"yawn": {
		description: "mouth wide open",
		phases:      []phase{{pose(attentive), 10}, {pose(yawning), 5}},
		expect:      models.DriverDrowsy,
	},
	"distracted": {
		description: "head turned away",
		phases:      []phase{{pose(attentive), 10}, {pose(lookingAway), 25}},
		expect:      models.DriverDistracted,
	},
	"no-face": {
		description: "tracker loses the face",
		phases:      []phase{{pose(attentive), 5}, {nil, 30}},
		expect:      models.DriverSafe,
	},
	"recovery": {
		description: "drowsy, then eyes open again",
		phases:      []phase{{pose(eyesClosed), 50}, {pose(attentive), 10}},
		expect:      models.DriverSafe,
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (scenario, error) {
	sc, ok := scenarios[name]
	if !ok {
		return scenario{}, fmt.Errorf("unknown scenario %q, want one of %v", name, scenarioNames())
	}
	return sc, nil
}

// frames expands the scenario into one landmark set per frame. A nil set
// means no face. Sets are built once per phase and shared.
func (sc scenario) frames(layout geometry.Layout) []models.LandmarkSet {
	var out []models.LandmarkSet
	for _, ph := range sc.phases {
		var points models.LandmarkSet
		if ph.pose != nil {
			points = layout.Synthesize(*ph.pose)
		}
		for i := 0; i < ph.frames; i++ {
			out = append(out, points)
		}
	}
	return out
}
