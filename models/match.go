package models

import (
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// Match is one game of a division's bracket, addressed by
// (DivisionID, Round, MatchNumber). Slots hold competitor ids; nil means the
// slot is still to be decided (or empty, for a bye).
type Match struct {
	ID          int         `json:"id" db:"id"`
	DivisionID  int         `json:"division_id" db:"division_id"`
	Round       int         `json:"round" db:"round"`
	MatchNumber int         `json:"match_number" db:"match_number"`
	Slot1ID     *int        `json:"slot1_id,omitempty" db:"slot1_id"`
	Slot2ID     *int        `json:"slot2_id,omitempty" db:"slot2_id"`
	WinnerID    *int        `json:"winner_id,omitempty" db:"winner_id"`
	Status      MatchStatus `json:"status" db:"status"`
	IsBye       bool        `json:"is_bye" db:"is_bye"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// UID is the bracket-local identifier, e.g. "R2M1".
func (m *Match) UID() string {
	return fmt.Sprintf("R%dM%d", m.Round, m.MatchNumber)
}

func (m *Match) Completed() bool {
	return m.Status == MatchStatusCompleted
}

// HasParticipant reports whether competitorID occupies either slot.
func (m *Match) HasParticipant(competitorID int) bool {
	return (m.Slot1ID != nil && *m.Slot1ID == competitorID) ||
		(m.Slot2ID != nil && *m.Slot2ID == competitorID)
}

// Clone returns a copy that shares no pointers with m.
func (m *Match) Clone() *Match {
	c := *m
	c.Slot1ID = copyInt(m.Slot1ID)
	c.Slot2ID = copyInt(m.Slot2ID)
	c.WinnerID = copyInt(m.WinnerID)
	return &c
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a small helper for optional ids.
func IntPtr(v int) *int {
	return &v
}
