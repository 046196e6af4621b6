package brackets_test

import (
	"testing"

	"github.com/Dosada05/tournament-divisions/brackets"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/stretchr/testify/assert"
)

func roster(teams ...int) []models.Participant {
	ps := make([]models.Participant, len(teams))
	for i, team := range teams {
		ps[i] = models.Participant{CompetitorID: i + 1, TeamID: team}
	}
	return ps
}

func ids(ps []models.Participant) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.CompetitorID
	}
	return out
}

func TestSeed_SingleTeamKeepsOrder(t *testing.T) {
	in := roster(7, 7, 7, 7)
	assert.Equal(t, []int{1, 2, 3, 4}, ids(brackets.Seed(in)))
}

func TestSeed_RoundRobinAcrossTeams(t *testing.T) {
	// team 1: competitors 1,2,3; team 2: 4; team 3: 5
	in := roster(1, 1, 1, 2, 3)
	assert.Equal(t, []int{1, 4, 5, 2, 3}, ids(brackets.Seed(in)))
}

func TestSeed_SeparatesBalancedTeams(t *testing.T) {
	in := roster(1, 1, 1, 2, 2, 2)
	out := brackets.Seed(in)
	for i := 0; i+1 < len(out); i += 2 {
		assert.NotEqual(t, out[i].TeamID, out[i+1].TeamID, "pair %d is a same-team pairing", i/2+1)
	}
}

func TestSeed_FirstPassHasDistinctTeams(t *testing.T) {
	rosters := [][]int{
		{1, 2},
		{1, 1, 2},
		{3, 3, 3, 3, 3, 1, 2, 4, 5},
		{9, 8, 9, 8, 7, 7, 7, 6},
		{5, 4, 3, 2, 1, 1, 2, 3, 4, 5},
	}
	for _, teams := range rosters {
		in := roster(teams...)
		out := brackets.Seed(in)

		distinct := make(map[int]bool)
		for _, team := range teams {
			distinct[team] = true
		}
		k := len(distinct)

		firstPass := make(map[int]bool)
		for _, p := range out[:k] {
			firstPass[p.TeamID] = true
		}
		assert.Len(t, firstPass, k, "roster %v", teams)
		assert.ElementsMatch(t, ids(in), ids(out), "seeding must be a permutation")
	}
}

func TestSeed_DominantTeamStillCollides(t *testing.T) {
	// Documented limitation: five members of team 1 against four singletons.
	in := roster(1, 1, 1, 1, 1, 2, 3, 4, 5)
	out := brackets.Seed(in)
	assert.Equal(t, []int{1, 6, 7, 8, 9, 2, 3, 4, 5}, ids(out))
}

func TestSeed_IsDeterministicAndPure(t *testing.T) {
	in := roster(1, 2, 1, 2, 3)
	before := append([]models.Participant(nil), in...)

	a := brackets.Seed(in)
	b := brackets.Seed(in)
	assert.Equal(t, a, b)
	assert.Equal(t, before, in)
	assert.Empty(t, brackets.Seed(nil))
}
