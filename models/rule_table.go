package models

type Criterion string

const (
	CriterionHeight Criterion = "height"
	CriterionWeight Criterion = "weight"
)

// HeightBand covers heights in (Lower, Upper]. The first band of a gender
// also accepts anything at or below Upper. A nil Upper marks the open top band.
type HeightBand struct {
	Label string   `json:"label" yaml:"label"`
	Lower float64  `json:"lower" yaml:"lower"`
	Upper *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Category is one age bracket of the rule table.
//
// WeightLimits holds signed boundaries: -W means "weight <= W" (lower bound
// exclusive at the previous boundary), +W means "weight > W" (open top band).
type Category struct {
	Name         string                  `json:"name" yaml:"name"`
	MinAge       int                     `json:"min_age" yaml:"min_age"`
	MaxAge       int                     `json:"max_age" yaml:"max_age"`
	Criterion    Criterion               `json:"criterion" yaml:"criterion"`
	HeightBands  map[Gender][]HeightBand `json:"height_bands,omitempty" yaml:"height_bands,omitempty"`
	WeightLimits map[Gender][]float64    `json:"weight_limits,omitempty" yaml:"weight_limits,omitempty"`
}

func (c Category) CoversAge(age int) bool {
	return age >= c.MinAge && age <= c.MaxAge
}

// BandCount returns how many bands the category declares for a gender.
func (c Category) BandCount(g Gender) int {
	if c.Criterion == CriterionHeight {
		return len(c.HeightBands[g])
	}
	return len(c.WeightLimits[g])
}

type RuleTable struct {
	Categories []Category `json:"categories" yaml:"categories"`
}
