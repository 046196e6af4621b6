package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-divisions/divisions"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memStore
	events    *recordingPublisher
	snapshots *recordingSnapshots
	divisions services.DivisionService
	brackets  services.BracketService
	matches   services.MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	events := &recordingPublisher{}
	snapshots := &recordingSnapshots{}
	logger := discardLogger()
	return &fixture{
		store:     store,
		events:    events,
		snapshots: snapshots,
		divisions: services.NewDivisionService(store, store, events, snapshots, logger),
		brackets:  services.NewBracketService(store, store, matchRepo{store}, events, snapshots, logger),
		matches:   services.NewMatchService(store, store, matchRepo{store}, events, logger),
	}
}

func weight(v float64) *float64 { return &v }

// cadets returns n male cadets in the -37kg band spread over three teams.
func cadets(firstID, n int) []models.Competitor {
	out := make([]models.Competitor, n)
	for i := range out {
		out[i] = models.Competitor{
			ID:       firstID + i,
			Name:     fmt.Sprintf("Cadet %d", firstID+i),
			Gender:   models.GenderMale,
			Age:      13,
			WeightKg: weight(35),
			TeamID:   i%3 + 1,
		}
	}
	return out
}

// divisionWith stores a division holding n participants and returns its id.
func (f *fixture) divisionWith(t *testing.T, tournamentID, n int) int {
	t.Helper()
	res, err := f.divisions.GenerateDivisions(context.Background(), tournamentID, cadets(tournamentID*100, n), divisions.DefaultRuleTable())
	require.NoError(t, err)
	require.Len(t, res.Divisions, 1)
	return res.Divisions[0].ID
}

func (f *fixture) match(t *testing.T, divisionID, round, number int) models.Match {
	t.Helper()
	m, err := matchRepo{f.store}.GetByPositionForUpdate(context.Background(), nil, divisionID, round, number)
	require.NoError(t, err)
	return *m
}

func TestGenerateDivisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roster := append(cadets(1, 3),
		models.Competitor{ID: 50, Gender: models.GenderFemale, Age: 13, TeamID: 1},                     // no weigh-in
		models.Competitor{ID: 51, Gender: models.GenderFemale, Age: 30, WeightKg: weight(60), TeamID: 2}, // Senior Female -62kg
	)
	res, err := f.divisions.GenerateDivisions(ctx, 9, roster, divisions.DefaultRuleTable())
	require.NoError(t, err)

	require.Len(t, res.Divisions, 2)
	assert.Equal(t, []int{50}, res.Skipped)
	assert.Equal(t, divisions.SkipMissingMeasurement, res.SkipReasons[0].Reason)
	for _, d := range res.Divisions {
		assert.Equal(t, 9, d.TournamentID)
		assert.NotZero(t, d.ID)
	}
	assert.Equal(t, "Cadet Male -37kg", res.Divisions[0].Name)
	assert.True(t, res.Divisions[0].Ready)
	assert.False(t, res.Divisions[1].Ready, "single participant division is flagged")

	stored, err := f.divisions.ListDivisions(ctx, 9)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, res.Divisions[0].Participants, stored[0].Participants)

	assert.Equal(t, []int{9}, f.store.tournamentLock)
	assert.Equal(t, []string{realtime.TournamentRoom(9)}, f.events.rooms(realtime.MessageDivisionsGenerated))
	assert.Equal(t, []int{9}, f.snapshots.divisions)
}

func TestGenerateDivisions_ReplacesPreviousRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.divisionWith(t, 1, 4)
	_, err := f.brackets.GenerateBracket(ctx, first)
	require.NoError(t, err)
	other := f.divisionWith(t, 2, 2)

	res, err := f.divisions.GenerateDivisions(ctx, 1, cadets(500, 2), divisions.DefaultRuleTable())
	require.NoError(t, err)

	list, err := f.divisions.ListDivisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Divisions[0].ID, list[0].ID)
	assert.NotEqual(t, first, list[0].ID)

	_, err = f.divisions.GetDivision(ctx, first)
	assert.ErrorIs(t, err, services.ErrDivisionNotFound)
	matches, err := matchRepo{f.store}.ListByDivision(ctx, nil, first)
	require.NoError(t, err)
	assert.Empty(t, matches, "matches of replaced divisions are removed")

	_, err = f.divisions.GetDivision(ctx, other)
	assert.NoError(t, err, "other tournaments are untouched")
}

func TestGenerateDivisions_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.divisions.GenerateDivisions(ctx, 0, cadets(1, 2), divisions.DefaultRuleTable())
	assert.ErrorIs(t, err, services.ErrValidationFailed)

	_, err = f.divisions.GenerateDivisions(ctx, 1, cadets(1, 2), models.RuleTable{})
	assert.ErrorIs(t, err, services.ErrInvalidRuleTable)

	list, err := f.divisions.ListDivisions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.store.tournamentLock, "nothing is written for a bad rule table")
}

func TestGenerateDivisions_SnapshotFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.snapshots.err = errors.New("bucket unavailable")

	res, err := f.divisions.GenerateDivisions(context.Background(), 3, cadets(1, 2), divisions.DefaultRuleTable())
	require.NoError(t, err)
	assert.Len(t, res.Divisions, 1)
}

func TestGenerateBracket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 5)

	matches, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)
	require.Len(t, matches, 6)
	for _, m := range matches {
		assert.NotZero(t, m.ID)
		assert.Equal(t, divisionID, m.DivisionID)
	}

	d, err := f.divisions.GetDivision(ctx, divisionID)
	require.NoError(t, err)
	require.NotNil(t, d.BracketToken)
	firstToken := *d.BracketToken
	assert.Equal(t, []string{realtime.DivisionRoom(divisionID), realtime.TournamentRoom(1)}, f.events.rooms(realtime.MessageBracketGenerated))

	again, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)
	require.Len(t, again, 6)
	assert.NotEqual(t, matches[0].ID, again[0].ID)

	stored, err := matchRepo{f.store}.ListByDivision(ctx, nil, divisionID)
	require.NoError(t, err)
	assert.Len(t, stored, 6, "regeneration replaces the bracket")

	d, err = f.divisions.GetDivision(ctx, divisionID)
	require.NoError(t, err)
	assert.NotEqual(t, firstToken, *d.BracketToken)
	assert.Equal(t, []uuid.UUID{firstToken, *d.BracketToken}, f.snapshots.brackets)
}

func TestGenerateBracket_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	single := f.divisionWith(t, 1, 1)
	_, err := f.brackets.GenerateBracket(ctx, single)
	assert.ErrorIs(t, err, services.ErrInsufficientParticipants)

	_, err = f.brackets.GenerateBracket(ctx, 4242)
	assert.ErrorIs(t, err, services.ErrDivisionNotFound)

	divisionID := f.divisionWith(t, 2, 4)
	_, err = f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)
	before, err := matchRepo{f.store}.ListByDivision(ctx, nil, divisionID)
	require.NoError(t, err)
	d, err := f.divisions.GetDivision(ctx, divisionID)
	require.NoError(t, err)

	f.store.matchCreates = 0
	f.store.failMatchCreateAfter = 2
	_, err = f.brackets.GenerateBracket(ctx, divisionID)
	assert.ErrorIs(t, err, errInjected)

	after, err := matchRepo{f.store}.ListByDivision(ctx, nil, divisionID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed regeneration leaves the previous bracket")
	unchanged, err := f.divisions.GetDivision(ctx, divisionID)
	require.NoError(t, err)
	assert.Equal(t, d.BracketToken, unchanged.BracketToken)
}

func TestGenerateTournamentBrackets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roster := append(cadets(1, 4),
		models.Competitor{ID: 90, Gender: models.GenderFemale, Age: 30, WeightKg: weight(60), TeamID: 1},
		models.Competitor{ID: 91, Gender: models.GenderMale, Age: 30, WeightKg: weight(90), TeamID: 1},
		models.Competitor{ID: 92, Gender: models.GenderMale, Age: 30, WeightKg: weight(95), TeamID: 2},
		models.Competitor{ID: 93, Gender: models.GenderMale, Age: 30, WeightKg: weight(99), TeamID: 3},
	)
	_, err := f.divisions.GenerateDivisions(ctx, 5, roster, divisions.DefaultRuleTable())
	require.NoError(t, err)

	res, err := f.brackets.GenerateTournamentBrackets(ctx, 5)
	require.NoError(t, err)
	require.Len(t, res.Divisions, 3)

	byName := map[string]services.DivisionBracketResult{}
	for _, r := range res.Divisions {
		byName[r.DivisionName] = r
	}
	assert.Equal(t, services.BracketStatusGenerated, byName["Cadet Male -37kg"].Status)
	assert.Equal(t, 3, byName["Cadet Male -37kg"].Matches)
	assert.NotNil(t, byName["Cadet Male -37kg"].BracketToken)
	assert.Equal(t, services.BracketStatusGenerated, byName["Senior Male +87kg"].Status)
	assert.Equal(t, 3, byName["Senior Male +87kg"].Matches)
	assert.Equal(t, services.BracketStatusInsufficient, byName["Senior Female -62kg"].Status)
	assert.NotEmpty(t, byName["Senior Female -62kg"].Error)

	_, err = f.brackets.GenerateTournamentBrackets(ctx, 77)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestGetBracket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 2)

	view, err := f.brackets.GetBracket(ctx, divisionID)
	require.NoError(t, err)
	assert.Empty(t, view.Rounds, "no bracket yet")

	matches, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)
	_, err = f.matches.RecordMatchResult(ctx, matches[0].ID, *matches[0].Slot2ID)
	require.NoError(t, err)

	view, err = f.brackets.GetBracket(ctx, divisionID)
	require.NoError(t, err)
	require.Len(t, view.Rounds, 1)
	require.NotNil(t, view.ChampionID)
	assert.Equal(t, *matches[0].Slot2ID, *view.ChampionID)
	assert.Equal(t, divisionID, view.Division.ID)

	_, err = f.brackets.GetBracket(ctx, 999)
	assert.ErrorIs(t, err, services.ErrDivisionNotFound)
}

func TestRecordMatchResult_PlaysToChampion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 4)
	_, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)

	r1m1 := f.match(t, divisionID, 1, 1)
	up, err := f.matches.RecordMatchResult(ctx, r1m1.ID, *r1m1.Slot1ID)
	require.NoError(t, err)
	assert.True(t, up.Changed)
	require.Len(t, up.Advanced, 1)
	assert.Equal(t, "R2M1", up.Advanced[0].UID())
	assert.Equal(t, *r1m1.Slot1ID, *up.Advanced[0].Slot1ID)
	assert.Nil(t, up.ChampionID)

	r1m2 := f.match(t, divisionID, 1, 2)
	_, err = f.matches.RecordMatchResult(ctx, r1m2.ID, *r1m2.Slot2ID)
	require.NoError(t, err)

	final := f.match(t, divisionID, 2, 1)
	assert.Equal(t, *r1m2.Slot2ID, *final.Slot2ID)
	up, err = f.matches.RecordMatchResult(ctx, final.ID, *final.Slot2ID)
	require.NoError(t, err)
	require.NotNil(t, up.ChampionID)
	assert.Equal(t, *r1m2.Slot2ID, *up.ChampionID)
	assert.Empty(t, up.Advanced)

	rooms := f.events.rooms(realtime.MessageMatchUpdated)
	assert.Len(t, rooms, 6, "each result goes to the division and tournament rooms")
}

func TestRecordMatchResult_GuardsAndIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 4)
	_, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)

	r1m1 := f.match(t, divisionID, 1, 1)
	final := f.match(t, divisionID, 2, 1)

	_, err = f.matches.RecordMatchResult(ctx, final.ID, 1)
	assert.ErrorIs(t, err, services.ErrPreconditionViolation, "final has undecided slots")

	_, err = f.matches.RecordMatchResult(ctx, r1m1.ID, 12345)
	assert.ErrorIs(t, err, services.ErrPreconditionViolation, "winner must play in the match")
	assert.Equal(t, r1m1, f.match(t, divisionID, 1, 1))

	first, err := f.matches.RecordMatchResult(ctx, r1m1.ID, *r1m1.Slot1ID)
	require.NoError(t, err)
	retry, err := f.matches.RecordMatchResult(ctx, r1m1.ID, *r1m1.Slot1ID)
	require.NoError(t, err)
	assert.False(t, retry.Changed)
	assert.Equal(t, first.Match.WinnerID, retry.Match.WinnerID)
	assert.Empty(t, retry.Advanced)

	_, err = f.matches.RecordMatchResult(ctx, r1m1.ID, *r1m1.Slot2ID)
	assert.ErrorIs(t, err, services.ErrResultConflict)
	assert.Equal(t, *r1m1.Slot1ID, *f.match(t, divisionID, 1, 1).WinnerID)

	_, err = f.matches.RecordMatchResult(ctx, 98765, 1)
	assert.ErrorIs(t, err, services.ErrMatchNotFound)
	_, err = f.matches.RecordMatchResult(ctx, 0, 1)
	assert.ErrorIs(t, err, services.ErrValidationFailed)
}

func TestRecordMatchResult_ConcurrentRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 8)
	_, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)
	target := f.match(t, divisionID, 1, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	changed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up, err := f.matches.RecordMatchResult(ctx, target.ID, *target.Slot2ID)
			if !assert.NoError(t, err) {
				return
			}
			if up.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changed)
	assert.Equal(t, *target.Slot2ID, *f.match(t, divisionID, 2, 2).Slot1ID)
}

func TestRecordMatchResult_StructuralByeCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 6)
	_, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)

	r1m3 := f.match(t, divisionID, 1, 3)
	up, err := f.matches.RecordMatchResult(ctx, r1m3.ID, *r1m3.Slot1ID)
	require.NoError(t, err)
	require.Len(t, up.Advanced, 2)

	r2m2 := f.match(t, divisionID, 2, 2)
	assert.True(t, r2m2.IsBye)
	assert.True(t, r2m2.Completed())
	assert.Equal(t, *r1m3.Slot1ID, *f.match(t, divisionID, 3, 1).Slot2ID)
}

func TestStartMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	divisionID := f.divisionWith(t, 1, 4)
	_, err := f.brackets.GenerateBracket(ctx, divisionID)
	require.NoError(t, err)

	r1m1 := f.match(t, divisionID, 1, 1)
	m, err := f.matches.StartMatch(ctx, r1m1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, m.Status)
	assert.Equal(t, models.MatchStatusInProgress, f.match(t, divisionID, 1, 1).Status)

	_, err = f.matches.StartMatch(ctx, f.match(t, divisionID, 2, 1).ID)
	assert.ErrorIs(t, err, services.ErrPreconditionViolation)

	_, err = f.matches.RecordMatchResult(ctx, r1m1.ID, *r1m1.Slot1ID)
	require.NoError(t, err)
	_, err = f.matches.StartMatch(ctx, r1m1.ID)
	assert.ErrorIs(t, err, services.ErrPreconditionViolation)
}
