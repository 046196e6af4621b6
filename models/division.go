package models

import (
	"time"

	"github.com/google/uuid"
)

// Division groups competitors sharing a category, gender and physical band.
// A division always has at least one participant; it is Ready for a
// bracket once it has two.
type Division struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Category     string    `json:"category" db:"category"`
	Gender       Gender    `json:"gender" db:"gender"`
	MinAge       int       `json:"min_age" db:"min_age"`
	MaxAge       int       `json:"max_age" db:"max_age"`
	Criterion    Criterion `json:"criterion" db:"criterion"`
	RangeMin     *float64  `json:"range_min,omitempty" db:"range_min"` // exclusive; nil means from zero
	RangeMax     *float64  `json:"range_max,omitempty" db:"range_max"` // inclusive; nil means open-ended
	BandIndex    int       `json:"band_index" db:"band_index"`
	Position     int       `json:"position" db:"position"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// BracketToken changes on every bracket (re)generation.
	BracketToken *uuid.UUID `json:"bracket_token,omitempty" db:"bracket_token"`

	Participants []Participant `json:"participants" db:"-"`
	Ready        bool          `json:"ready" db:"-"`
}

func (d *Division) ParticipantCount() int {
	return len(d.Participants)
}

// RefreshReady recomputes Ready from the participant list.
func (d *Division) RefreshReady() {
	d.Ready = len(d.Participants) >= 2
}
