package brackets

import (
	"sort"

	"github.com/Dosada05/tournament-divisions/models"
)

// Round is one column of a bracket.
type Round struct {
	Number  int            `json:"number"`
	Matches []models.Match `json:"matches"`
}

// GroupByRound splits a division's matches into rounds ordered by round
// number, each sorted by match number.
func GroupByRound(matches []models.Match) []Round {
	byRound := make(map[int][]models.Match)
	var numbers []int
	for _, m := range matches {
		if _, ok := byRound[m.Round]; !ok {
			numbers = append(numbers, m.Round)
		}
		byRound[m.Round] = append(byRound[m.Round], m)
	}
	sort.Ints(numbers)

	rounds := make([]Round, 0, len(numbers))
	for _, n := range numbers {
		ms := byRound[n]
		sort.Slice(ms, func(i, j int) bool { return ms[i].MatchNumber < ms[j].MatchNumber })
		rounds = append(rounds, Round{Number: n, Matches: ms})
	}
	return rounds
}

// Index addresses an in-memory bracket by position. Lookups return pointers
// into the given slice.
func Index(matches []models.Match) MatchLookup {
	idx := make(map[[2]int]*models.Match, len(matches))
	for i := range matches {
		idx[[2]int{matches[i].Round, matches[i].MatchNumber}] = &matches[i]
	}
	return func(round, number int) (*models.Match, error) {
		m, ok := idx[[2]int{round, number}]
		if !ok {
			return nil, ErrMatchOutsideBracket
		}
		return m, nil
	}
}
