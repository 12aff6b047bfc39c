package core

// Rule holds the inclusive survive/birth neighbor-count ranges of a lattice.
// An inverted range (min > max) is legal and simply never matches, producing
// a rule under which the affected transition cannot occur.
type Rule struct {
	SurvivalMin int `json:"survivalMin"`
	SurvivalMax int `json:"survivalMax"`
	BirthMin    int `json:"birthMin"`
	BirthMax    int `json:"birthMax"`
}

// DefaultRule returns a rule that produces sustained activity for the given
// dimension count at moderate seed densities.
func DefaultRule(dim int) Rule {
	if dim == 4 {
		return Rule{SurvivalMin: 8, SurvivalMax: 10, BirthMin: 10, BirthMax: 10}
	}
	return Rule{SurvivalMin: 4, SurvivalMax: 5, BirthMin: 5, BirthMax: 5}
}

// Words encodes the rule as four device words in the layout the step kernel
// reads. Negative bounds clamp to zero so they cannot wrap on the device.
func (r Rule) Words() [4]uint32 {
	clamp := func(v int) uint32 {
		if v < 0 {
			return 0
		}
		return uint32(v)
	}
	return [4]uint32{
		clamp(r.SurvivalMin),
		clamp(r.SurvivalMax),
		clamp(r.BirthMin),
		clamp(r.BirthMax),
	}
}
