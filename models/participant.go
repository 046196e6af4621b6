package models

// Participant is a competitor's entry in a division. Match slots reference
// participants by CompetitorID.
type Participant struct {
	CompetitorID int    `json:"competitor_id" db:"competitor_id"`
	TeamID       int    `json:"team_id" db:"team_id"`
	Name         string `json:"name,omitempty" db:"name"`
}
