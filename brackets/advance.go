package brackets

import (
	"fmt"

	"github.com/Dosada05/tournament-divisions/models"
)

// MatchLookup resolves a match of the same bracket by position. The returned
// match is mutated in place by Advance.
type MatchLookup func(round, number int) (*models.Match, error)

// RecordResult moves m from pending (or in_progress) to completed with the
// given winner. Both slots must be filled and the winner must occupy one of
// them. Re-recording the same winner on a completed match is a no-op
// (changed=false); a different winner is ErrResultConflict and leaves m
// untouched.
func RecordResult(m *models.Match, winnerID int) (changed bool, err error) {
	if m.Completed() {
		if m.WinnerID == nil {
			return false, fmt.Errorf("%w: match %s is completed without a winner", ErrPreconditionViolation, m.UID())
		}
		if *m.WinnerID == winnerID {
			return false, nil
		}
		return false, fmt.Errorf("%w: match %s already won by %d, got %d", ErrResultConflict, m.UID(), *m.WinnerID, winnerID)
	}
	if m.Slot1ID == nil || m.Slot2ID == nil {
		return false, fmt.Errorf("%w: match %s has an undecided slot", ErrPreconditionViolation, m.UID())
	}
	if !m.HasParticipant(winnerID) {
		return false, fmt.Errorf("%w: competitor %d does not play in match %s", ErrPreconditionViolation, winnerID, m.UID())
	}

	m.WinnerID = models.IntPtr(winnerID)
	m.Status = models.MatchStatusCompleted
	return true, nil
}

// Start marks a match with both slots decided as in progress. It carries no
// invariant beyond display; starting an in-progress match is a no-op.
func Start(m *models.Match) (changed bool, err error) {
	switch m.Status {
	case models.MatchStatusInProgress:
		return false, nil
	case models.MatchStatusCompleted:
		return false, fmt.Errorf("%w: match %s is already completed", ErrPreconditionViolation, m.UID())
	}
	if m.Slot1ID == nil || m.Slot2ID == nil {
		return false, fmt.Errorf("%w: match %s has an undecided slot", ErrPreconditionViolation, m.UID())
	}
	m.Status = models.MatchStatusInProgress
	return true, nil
}

// Advance places the winner of the completed match from into its
// destination slot and returns every match it modified. A destination with a
// single feeder is a bye: it is completed with that winner and advanced in
// turn. Advancing the final changes nothing; its winner is the champion.
func Advance(layout Layout, from *models.Match, lookup MatchLookup) ([]*models.Match, error) {
	var changed []*models.Match
	cur := from
	for {
		if !layout.Contains(cur.Round, cur.MatchNumber) {
			return changed, fmt.Errorf("%w: %s in a %d-participant bracket", ErrMatchOutsideBracket, cur.UID(), layout.Participants)
		}
		if !cur.Completed() || cur.WinnerID == nil {
			return changed, fmt.Errorf("%w: match %s has no winner to advance", ErrPreconditionViolation, cur.UID())
		}
		dest, ok := layout.Destination(cur.Round, cur.MatchNumber)
		if !ok {
			return changed, nil
		}

		next, err := lookup(dest.Round, dest.MatchNumber)
		if err != nil {
			return changed, fmt.Errorf("lookup R%dM%d: %w", dest.Round, dest.MatchNumber, err)
		}
		placed, err := place(next, dest.Position, *cur.WinnerID)
		if err != nil {
			return changed, err
		}

		if layout.Feeders(dest.Round, dest.MatchNumber) == 1 && !next.Completed() {
			next.IsBye = true
			next.WinnerID = models.IntPtr(*cur.WinnerID)
			next.Status = models.MatchStatusCompleted
			changed = append(changed, next)
			cur = next
			continue
		}
		if placed {
			changed = append(changed, next)
		}
		return changed, nil
	}
}

func place(m *models.Match, position, competitorID int) (bool, error) {
	slot := &m.Slot1ID
	if position == 2 {
		slot = &m.Slot2ID
	}
	if *slot != nil {
		if **slot == competitorID {
			return false, nil
		}
		return false, fmt.Errorf("%w: slot %d of match %s already holds %d, cannot place %d",
			ErrResultConflict, position, m.UID(), **slot, competitorID)
	}
	*slot = models.IntPtr(competitorID)
	return true, nil
}

// Champion returns the winner of the final once it is completed.
func Champion(matches []models.Match) (int, bool) {
	var final *models.Match
	for i := range matches {
		if final == nil || matches[i].Round > final.Round {
			final = &matches[i]
		}
	}
	if final == nil || !final.Completed() || final.WinnerID == nil {
		return 0, false
	}
	return *final.WinnerID, true
}
