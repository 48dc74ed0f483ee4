package qualitygate

import "fmt"

// Profile names a bundle of per-stage minimum passing scores.
type Profile string

const (
	ProfileStrict     Profile = "strict"
	ProfileStandard   Profile = "standard"
	ProfileLenient    Profile = "lenient"
	ProfilePermissive Profile = "permissive"
)

// profileThresholds maps each profile to its per-stage thresholds. For every
// stage the thresholds are monotone: strict >= standard >= lenient >=
// permissive. validateProfiles enforces this at package init via
// NewEvaluator.
var profileThresholds = map[Profile]map[Stage]float64{
	ProfileStrict: {
		StageExtraction: 0.85,
		StageSearch:     0.80,
		StageMatching:   0.85,
	},
	ProfileStandard: {
		StageExtraction: 0.70,
		StageSearch:     0.65,
		StageMatching:   0.70,
	},
	ProfileLenient: {
		StageExtraction: 0.55,
		StageSearch:     0.50,
		StageMatching:   0.55,
	},
	ProfilePermissive: {
		StageExtraction: 0.40,
		StageSearch:     0.35,
		StageMatching:   0.40,
	},
}

// profileOrder lists profiles from strictest to most permissive.
var profileOrder = []Profile{ProfileStrict, ProfileStandard, ProfileLenient, ProfilePermissive}

// Profiles returns all known profiles from strictest to most permissive.
func Profiles() []Profile {
	out := make([]Profile, len(profileOrder))
	copy(out, profileOrder)
	return out
}

// ParseProfile converts a string into a known Profile.
func ParseProfile(s string) (Profile, error) {
	p := Profile(s)
	if _, ok := profileThresholds[p]; !ok {
		return "", fmt.Errorf("unknown quality profile: %q", s)
	}
	return p, nil
}

// Thresholds returns a copy of the per-stage thresholds for a profile.
func (p Profile) Thresholds() (map[Stage]float64, error) {
	src, ok := profileThresholds[p]
	if !ok {
		return nil, fmt.Errorf("unknown quality profile: %q", p)
	}
	out := make(map[Stage]float64, len(src))
	for stage, t := range src {
		out[stage] = t
	}
	return out, nil
}

// validateProfiles checks that every profile covers every stage and that
// thresholds are monotone across profiles for each stage.
func validateProfiles() error {
	for _, p := range profileOrder {
		thresholds := profileThresholds[p]
		for _, stage := range AllStages() {
			t, ok := thresholds[stage]
			if !ok {
				return fmt.Errorf("profile %s missing threshold for stage %s", p, stage)
			}
			if t < 0 || t > 1 {
				return fmt.Errorf("profile %s stage %s threshold %f out of [0,1]", p, stage, t)
			}
		}
	}
	for _, stage := range AllStages() {
		for i := 1; i < len(profileOrder); i++ {
			stricter := profileThresholds[profileOrder[i-1]][stage]
			looser := profileThresholds[profileOrder[i]][stage]
			if stricter < looser {
				return fmt.Errorf("profile thresholds not monotone for stage %s: %s (%f) < %s (%f)",
					stage, profileOrder[i-1], stricter, profileOrder[i], looser)
			}
		}
	}
	return nil
}
