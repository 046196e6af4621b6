package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/repositories"
	"github.com/Dosada05/tournament-divisions/storage"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore implements the repositories and the transactor in memory. A
// transaction holds txMu for its whole duration and restores the previous
// state when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextDivisionID int
	nextMatchID    int
	divisions      map[int]models.Division
	matches        map[int]models.Match
	tournamentLock []int

	// failMatchCreateAfter makes the n-th and later match inserts fail when > 0.
	failMatchCreateAfter int
	matchCreates         int
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{divisions: map[int]models.Division{}, matches: map[int]models.Match{}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	savedDivisions := make(map[int]models.Division, len(s.divisions))
	for id, d := range s.divisions {
		savedDivisions[id] = copyDivision(d)
	}
	savedMatches := make(map[int]models.Match, len(s.matches))
	for id, m := range s.matches {
		savedMatches[id] = *m.Clone()
	}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.divisions, s.matches = savedDivisions, savedMatches
		s.mu.Unlock()
		return err
	}
	return nil
}

func copyDivision(d models.Division) models.Division {
	d.Participants = append([]models.Participant(nil), d.Participants...)
	if d.BracketToken != nil {
		token := *d.BracketToken
		d.BracketToken = &token
	}
	return d
}

// divisions

func (s *memStore) LockTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournamentLock = append(s.tournamentLock, tournamentID)
	return nil
}

func (s *memStore) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, d := range s.divisions {
		if d.TournamentID != tournamentID {
			continue
		}
		delete(s.divisions, id)
		for mid, m := range s.matches {
			if m.DivisionID == id {
				delete(s.matches, mid)
			}
		}
		n++
	}
	return n, nil
}

func (s *memStore) Create(_ context.Context, _ repositories.SQLExecutor, d *models.Division) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.divisions {
		if existing.TournamentID == d.TournamentID && existing.Name == d.Name {
			return repositories.ErrDivisionNameConflict
		}
	}
	s.nextDivisionID++
	d.ID = s.nextDivisionID
	d.CreatedAt = time.Now()
	s.divisions[d.ID] = copyDivision(*d)
	return nil
}

func (s *memStore) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Division, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.divisions[id]
	if !ok {
		return nil, repositories.ErrDivisionNotFound
	}
	out := copyDivision(d)
	out.RefreshReady()
	return &out, nil
}

func (s *memStore) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Division, error) {
	return s.GetByID(ctx, exec, id)
}

func (s *memStore) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Division, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Division, 0)
	for _, d := range s.divisions {
		if d.TournamentID == tournamentID {
			c := copyDivision(d)
			c.RefreshReady()
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) SetBracketToken(_ context.Context, _ repositories.SQLExecutor, id int, token uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.divisions[id]
	if !ok {
		return repositories.ErrDivisionNotFound
	}
	d.BracketToken = &token
	s.divisions[id] = d
	return nil
}

// matches, exposed through matchRepo because method names overlap.

type matchRepo struct{ s *memStore }

func (r matchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchCreates++
	if s.failMatchCreateAfter > 0 && s.matchCreates >= s.failMatchCreateAfter {
		return errInjected
	}
	if _, ok := s.divisions[m.DivisionID]; !ok {
		return repositories.ErrMatchDivisionInvalid
	}
	for _, existing := range s.matches {
		if existing.DivisionID == m.DivisionID && existing.Round == m.Round && existing.MatchNumber == m.MatchNumber {
			return repositories.ErrMatchPositionConflict
		}
	}
	s.nextMatchID++
	m.ID = s.nextMatchID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.matches[m.ID] = *m.Clone()
	return nil
}

func (r matchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r matchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r matchRepo) GetByPositionForUpdate(_ context.Context, _ repositories.SQLExecutor, divisionID, round, number int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.matches {
		if m.DivisionID == divisionID && m.Round == round && m.MatchNumber == number {
			return m.Clone(), nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r matchRepo) ListByDivision(_ context.Context, _ repositories.SQLExecutor, divisionID int) ([]models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Match, 0)
	for _, m := range r.s.matches {
		if m.DivisionID == divisionID {
			out = append(out, *m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (r matchRepo) Update(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	m.UpdatedAt = time.Now()
	r.s.matches[m.ID] = *m.Clone()
	return nil
}

func (r matchRepo) DeleteByDivision(_ context.Context, _ repositories.SQLExecutor, divisionID int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.matches {
		if m.DivisionID == divisionID {
			delete(r.s.matches, id)
			n++
		}
	}
	return n, nil
}

type publishedMessage struct {
	room string
	msg  realtime.Message
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingPublisher) BroadcastToRoom(room string, message interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{room: room, msg: message.(realtime.Message)})
}

func (p *recordingPublisher) rooms(msgType string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		if m.msg.Type == msgType {
			out = append(out, m.room)
		}
	}
	return out
}

type recordingSnapshots struct {
	mu        sync.Mutex
	divisions []int
	brackets  []uuid.UUID
	err       error
}

func (r *recordingSnapshots) SaveDivisions(_ context.Context, tournamentID int, _ interface{}) (*storage.UploadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.divisions = append(r.divisions, tournamentID)
	return &storage.UploadResult{Key: "divisions"}, nil
}

func (r *recordingSnapshots) SaveBracket(_ context.Context, _ int, token uuid.UUID, _ interface{}) (*storage.UploadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.brackets = append(r.brackets, token)
	return &storage.UploadResult{Key: storage.BracketSnapshotKey(0, token)}, nil
}
