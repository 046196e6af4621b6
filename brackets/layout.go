package brackets

import "math/bits"

// Layout describes the shape of a single-elimination bracket for a given
// number of participants. Round r (1-based) holds ceil(N / 2^r) matches and
// there are ceil(log2 N) rounds; the final round always holds one match.
type Layout struct {
	Participants int
}

func NewLayout(participants int) Layout {
	return Layout{Participants: participants}
}

// Rounds returns ceil(log2 N), or 0 when no bracket is possible.
func (l Layout) Rounds() int {
	if l.Participants < 2 {
		return 0
	}
	return bits.Len(uint(l.Participants - 1))
}

// MatchesInRound returns the number of matches in round r, 0 outside the bracket.
func (l Layout) MatchesInRound(round int) int {
	if round < 1 || round > l.Rounds() {
		return 0
	}
	div := 1 << uint(round)
	return (l.Participants + div - 1) / div
}

func (l Layout) TotalMatches() int {
	total := 0
	for r := 1; r <= l.Rounds(); r++ {
		total += l.MatchesInRound(r)
	}
	return total
}

func (l Layout) Contains(round, number int) bool {
	return number >= 1 && number <= l.MatchesInRound(round)
}

func (l Layout) IsFinal(round int) bool {
	return round == l.Rounds()
}

// Slot addresses one side of a match.
type Slot struct {
	Round       int
	MatchNumber int
	Position    int // 1 or 2
}

// Destination returns the slot that the winner of (round, number) fills:
// round+1, match ceil(number/2), slot 1 for odd numbers and slot 2 for even.
// ok is false for the final.
func (l Layout) Destination(round, number int) (Slot, bool) {
	if !l.Contains(round, number) || l.IsFinal(round) {
		return Slot{}, false
	}
	pos := 2
	if number%2 == 1 {
		pos = 1
	}
	return Slot{Round: round + 1, MatchNumber: (number + 1) / 2, Position: pos}, true
}

// Feeders returns how many previous-round matches feed (round, number).
// Round-1 matches have no feeders. A later-round match with a single feeder
// can only ever receive one participant and is resolved as a bye.
func (l Layout) Feeders(round, number int) int {
	if round <= 1 || !l.Contains(round, number) {
		return 0
	}
	prev := l.MatchesInRound(round - 1)
	n := 0
	for _, src := range []int{2*number - 1, 2 * number} {
		if src <= prev {
			n++
		}
	}
	return n
}
