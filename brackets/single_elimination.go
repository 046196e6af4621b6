package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-divisions/models"
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket seeds the division's participants for team separation and
// builds the full match tree.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Build(params.DivisionID, Seed(params.Participants))
}

// Build creates every match of a single-elimination bracket for already
// seeded participants.
//
// Round 1 pairs entries (0,1), (2,3), ...; an odd last entry gets a bye: a
// match with only slot 1 filled, completed with that participant as winner.
// Later rounds are empty pending placeholders. Bye winners are pushed forward
// with Advance, the same function used when results are recorded, so a bye
// feeding a single-feeder match cascades further. The result is ordered by
// round, then match number.
func Build(divisionID int, seeded []models.Participant) ([]models.Match, error) {
	n := len(seeded)
	if n < 2 {
		return nil, fmt.Errorf("%w: division %d has %d", ErrInsufficientParticipants, divisionID, n)
	}

	layout := NewLayout(n)
	rounds := make([][]*models.Match, layout.Rounds()+1)
	for r := 1; r <= layout.Rounds(); r++ {
		count := layout.MatchesInRound(r)
		rounds[r] = make([]*models.Match, count)
		for i := 0; i < count; i++ {
			rounds[r][i] = &models.Match{
				DivisionID:  divisionID,
				Round:       r,
				MatchNumber: i + 1,
				Status:      models.MatchStatusPending,
			}
		}
	}

	var byes []*models.Match
	for i, m := range rounds[1] {
		m.Slot1ID = models.IntPtr(seeded[2*i].CompetitorID)
		if 2*i+1 < n {
			m.Slot2ID = models.IntPtr(seeded[2*i+1].CompetitorID)
			continue
		}
		m.IsBye = true
		m.WinnerID = models.IntPtr(*m.Slot1ID)
		m.Status = models.MatchStatusCompleted
		byes = append(byes, m)
	}

	lookup := func(round, number int) (*models.Match, error) {
		if !layout.Contains(round, number) {
			return nil, fmt.Errorf("%w: R%dM%d", ErrMatchOutsideBracket, round, number)
		}
		return rounds[round][number-1], nil
	}
	for _, bye := range byes {
		if _, err := Advance(layout, bye, lookup); err != nil {
			return nil, fmt.Errorf("advance bye %s: %w", bye.UID(), err)
		}
	}

	matches := make([]models.Match, 0, layout.TotalMatches())
	for r := 1; r <= layout.Rounds(); r++ {
		for _, m := range rounds[r] {
			matches = append(matches, *m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].MatchNumber < matches[j].MatchNumber
	})
	return matches, nil
}
