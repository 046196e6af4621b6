package brackets

import "github.com/Dosada05/tournament-divisions/models"

// Seed orders participants so that round-1 opponents (adjacent pairs) come
// from different teams where the roster allows it.
//
// Teams are visited in order of first appearance and one not-yet-drawn member
// is taken from each team per pass, so the first k entries (k = number of
// teams) are all from distinct teams. With a single team the input order is
// kept. The draw is deterministic: the same input always yields the same
// order.
//
// Known limitation: when one team dominates the roster (e.g. five members of
// one team against four single-member teams), later passes contain only that
// team and same-team pairings are unavoidable. Later rounds are not
// re-separated and there is no strength-based seeding.
func Seed(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(participants))

	var order []int
	members := make(map[int][]models.Participant)
	for _, p := range participants {
		if _, ok := members[p.TeamID]; !ok {
			order = append(order, p.TeamID)
		}
		members[p.TeamID] = append(members[p.TeamID], p)
	}

	if len(order) <= 1 {
		return append(out, participants...)
	}

	for len(out) < len(participants) {
		for _, team := range order {
			queue := members[team]
			if len(queue) == 0 {
				continue
			}
			out = append(out, queue[0])
			members[team] = queue[1:]
		}
	}
	return out
}
