package detector

import "saferide/go-backend/internal/models"

// Rule names the arbitration step that produced a decision.
type Rule string

const (
	RuleFatigue    Rule = "fatigue"
	RuleDrowsyEyes Rule = "drowsy_eyes"
	RuleYawn       Rule = "yawn"
	RuleDistracted Rule = "distracted"
	RuleDefault    Rule = "default"
	RuleNoFace     Rule = "no_face"
)

type Decision struct {
	Status models.DriverStatus `json:"status"`
	Rule   Rule                `json:"rule"`
	// SneezeFiltered is set when an open mouth coincided with a short
	// eye-closed streak, so the streak was not allowed to count as drowsy.
	SneezeFiltered bool `json:"sneeze_filtered"`
}

// Classify maps counters and the instantaneous mouth flag to exactly one
// status. Steps are checked in order and the first match wins:
//
//	eye-closed >= FatigueFrames                     Fatigue
//	eye-closed >= DrowsyFrames, not sneeze-filtered Drowsy
//	mouth open (yawn)                               Drowsy
//	head-turned >= DistractedFrames                 Distracted
//	otherwise                                       Safe
func (t Thresholds) Classify(c Counters, mouthOpen bool) Decision {
	sneeze := mouthOpen && c.EyeClosedFrames < t.SneezeWindow

	switch {
	case c.EyeClosedFrames >= t.FatigueFrames:
		return Decision{Status: models.DriverFatigue, Rule: RuleFatigue, SneezeFiltered: sneeze}
	case c.EyeClosedFrames >= t.DrowsyFrames && !sneeze:
		return Decision{Status: models.DriverDrowsy, Rule: RuleDrowsyEyes}
	case mouthOpen:
		return Decision{Status: models.DriverDrowsy, Rule: RuleYawn, SneezeFiltered: sneeze}
	case c.HeadTurnedFrames >= t.DistractedFrames:
		return Decision{Status: models.DriverDistracted, Rule: RuleDistracted}
	}
	return Decision{Status: models.DriverSafe, Rule: RuleDefault}
}
