package models

import "strings"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Genders lists genders in the order divisions are listed.
var Genders = []Gender{GenderMale, GenderFemale}

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Title returns the gender as it appears in division names ("Male", "Female").
func (g Gender) Title() string {
	s := string(g)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Competitor is a read-only roster record supplied by the registration tier.
// Only competitors with a confirmed official measurement are passed in.
type Competitor struct {
	ID       int      `json:"id" yaml:"id" validate:"required,gt=0"`
	Name     string   `json:"name,omitempty" yaml:"name"`
	Gender   Gender   `json:"gender" yaml:"gender" validate:"required,oneof=male female"`
	Age      int      `json:"age" yaml:"age" validate:"gte=0,lte=120"`
	HeightCm *float64 `json:"height_cm,omitempty" yaml:"height_cm" validate:"omitempty,gt=0"`
	WeightKg *float64 `json:"weight_kg,omitempty" yaml:"weight_kg" validate:"omitempty,gt=0"`
	TeamID   int      `json:"team_id" yaml:"team_id"`
}

func (c Competitor) Participant() Participant {
	return Participant{CompetitorID: c.ID, TeamID: c.TeamID, Name: c.Name}
}
