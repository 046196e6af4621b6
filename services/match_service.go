package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-divisions/brackets"
	"github.com/Dosada05/tournament-divisions/metrics"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/repositories"
)

type MatchUpdate struct {
	Match      models.Match   `json:"match"`
	Advanced   []models.Match `json:"advanced"`
	ChampionID *int           `json:"champion_id,omitempty"`
	// Changed is false when the call repeated an already recorded result.
	Changed bool `json:"changed"`
}

type MatchService interface {
	RecordMatchResult(ctx context.Context, matchID, winnerID int) (*MatchUpdate, error)
	StartMatch(ctx context.Context, matchID int) (*models.Match, error)
}

type matchService struct {
	tx           repositories.Transactor
	divisionRepo repositories.DivisionRepository
	matchRepo    repositories.MatchRepository
	events       EventPublisher
	logger       *slog.Logger
}

func NewMatchService(
	tx repositories.Transactor,
	divisionRepo repositories.DivisionRepository,
	matchRepo repositories.MatchRepository,
	events EventPublisher,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:           tx,
		divisionRepo: divisionRepo,
		matchRepo:    matchRepo,
		events:       publisherOrNoop(events),
		logger:       logger,
	}
}

// RecordMatchResult completes a match and advances its winner. The match row
// is locked first and destination rows after it, always in ascending round
// order, so concurrent results for one match are serialized and results for
// different matches cannot deadlock.
func (s *matchService) RecordMatchResult(ctx context.Context, matchID, winnerID int) (*MatchUpdate, error) {
	if matchID <= 0 || winnerID <= 0 {
		return nil, fmt.Errorf("%w: match and winner ids must be positive", ErrValidationFailed)
	}

	update := &MatchUpdate{Advanced: []models.Match{}}
	var divisionTournament int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		changed, err := brackets.RecordResult(m, winnerID)
		if err != nil {
			return err
		}
		update.Match = *m
		if !changed {
			return nil
		}
		update.Changed = true

		d, err := s.divisionRepo.GetByID(ctx, exec, m.DivisionID)
		if err != nil {
			return fmt.Errorf("load division of match %d: %w", m.ID, err)
		}
		divisionTournament = d.TournamentID

		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return err
		}

		layout := brackets.NewLayout(d.ParticipantCount())
		lookup := func(round, number int) (*models.Match, error) {
			return s.matchRepo.GetByPositionForUpdate(ctx, exec, m.DivisionID, round, number)
		}
		advanced, err := brackets.Advance(layout, m, lookup)
		if err != nil {
			return fmt.Errorf("advance winner of match %d: %w", m.ID, err)
		}
		for _, next := range advanced {
			if err := s.matchRepo.Update(ctx, exec, next); err != nil {
				return err
			}
			update.Advanced = append(update.Advanced, *next)
		}

		update.Match = *m
		if final := lastOf(update.Match, update.Advanced); layout.IsFinal(final.Round) && final.Completed() {
			update.ChampionID = models.IntPtr(*final.WinnerID)
		}
		return nil
	})
	if err != nil {
		metrics.MatchResults.WithLabelValues(resultOutcome(err)).Inc()
		return nil, fmt.Errorf("record result of match %d: %w", matchID, err)
	}

	if !update.Changed {
		metrics.MatchResults.WithLabelValues(metrics.OutcomeNoop).Inc()
		return update, nil
	}
	metrics.MatchResults.WithLabelValues(metrics.OutcomeRecorded).Inc()

	attrs := []any{
		slog.Int("match_id", update.Match.ID),
		slog.Int("division_id", update.Match.DivisionID),
		slog.String("match", update.Match.UID()),
		slog.Int("winner_id", winnerID),
		slog.Int("advanced", len(update.Advanced)),
	}
	if update.ChampionID != nil {
		attrs = append(attrs, slog.Int("champion_id", *update.ChampionID))
	}
	s.logger.InfoContext(ctx, "Match result recorded", attrs...)

	s.publish(update.Match.DivisionID, divisionTournament, update)
	return update, nil
}

// lastOf returns the furthest match touched by a result.
func lastOf(m models.Match, advanced []models.Match) models.Match {
	if len(advanced) == 0 {
		return m
	}
	return advanced[len(advanced)-1]
}

func resultOutcome(err error) string {
	switch {
	case errors.Is(err, ErrResultConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrPreconditionViolation):
		return metrics.OutcomePrecondition
	default:
		return metrics.OutcomeError
	}
}

func (s *matchService) StartMatch(ctx context.Context, matchID int) (*models.Match, error) {
	var started models.Match
	var changed bool
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if changed, err = brackets.Start(m); err != nil {
			return err
		}
		if changed {
			if err := s.matchRepo.Update(ctx, exec, m); err != nil {
				return err
			}
		}
		started = *m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start match %d: %w", matchID, err)
	}

	if changed {
		s.publish(started.DivisionID, 0, &MatchUpdate{Match: started, Advanced: []models.Match{}, Changed: true})
	}
	return &started, nil
}

func (s *matchService) publish(divisionID, tournamentID int, update *MatchUpdate) {
	rooms := []string{realtime.DivisionRoom(divisionID)}
	if tournamentID > 0 {
		rooms = append(rooms, realtime.TournamentRoom(tournamentID))
	}
	for _, room := range rooms {
		s.events.BroadcastToRoom(room, realtime.Message{
			Type:    realtime.MessageMatchUpdated,
			Payload: update,
			RoomID:  room,
		})
	}
}
