package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-divisions/brackets"
	"github.com/Dosada05/tournament-divisions/metrics"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxParallelGenerations bounds concurrent bracket generations of one
// tournament; each holds a transaction.
const maxParallelGenerations = 4

const (
	BracketStatusGenerated    = "generated"
	BracketStatusInsufficient = "insufficient_participants"
)

type DivisionBracketResult struct {
	DivisionID   int        `json:"division_id"`
	DivisionName string     `json:"division_name"`
	Status       string     `json:"status"`
	Matches      int        `json:"matches"`
	BracketToken *uuid.UUID `json:"bracket_token,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type TournamentBracketsResult struct {
	TournamentID int                     `json:"tournament_id"`
	Divisions    []DivisionBracketResult `json:"divisions"`
}

type BracketView struct {
	Division   *models.Division `json:"division"`
	Rounds     []brackets.Round `json:"rounds"`
	ChampionID *int             `json:"champion_id,omitempty"`
}

type BracketService interface {
	GenerateBracket(ctx context.Context, divisionID int) ([]models.Match, error)
	GenerateTournamentBrackets(ctx context.Context, tournamentID int) (*TournamentBracketsResult, error)
	GetBracket(ctx context.Context, divisionID int) (*BracketView, error)
}

type bracketService struct {
	tx           repositories.Transactor
	divisionRepo repositories.DivisionRepository
	matchRepo    repositories.MatchRepository
	generator    brackets.BracketGenerator
	events       EventPublisher
	snapshots    SnapshotStore
	logger       *slog.Logger
}

func NewBracketService(
	tx repositories.Transactor,
	divisionRepo repositories.DivisionRepository,
	matchRepo repositories.MatchRepository,
	events EventPublisher,
	snapshots SnapshotStore,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:           tx,
		divisionRepo: divisionRepo,
		matchRepo:    matchRepo,
		generator:    brackets.NewSingleEliminationGenerator(),
		events:       publisherOrNoop(events),
		snapshots:    snapshots,
		logger:       logger,
	}
}

type bracketSnapshot struct {
	Division    *models.Division `json:"division"`
	Token       uuid.UUID        `json:"bracket_token"`
	Generator   string           `json:"generator"`
	GeneratedAt time.Time        `json:"generated_at"`
	Matches     []models.Match   `json:"matches"`
}

type bracketPayload struct {
	DivisionID   int            `json:"division_id"`
	TournamentID int            `json:"tournament_id"`
	BracketToken uuid.UUID      `json:"bracket_token"`
	Matches      []models.Match `json:"matches"`
}

// GenerateBracket replaces the division's bracket. The division row stays
// locked for the whole replacement, so generations of one division never
// interleave.
func (s *bracketService) GenerateBracket(ctx context.Context, divisionID int) ([]models.Match, error) {
	_, matches, err := s.generate(ctx, divisionID)
	return matches, err
}

func (s *bracketService) generate(ctx context.Context, divisionID int) (*models.Division, []models.Match, error) {
	started := time.Now()

	var (
		division *models.Division
		matches  []models.Match
		token    uuid.UUID
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		d, err := s.divisionRepo.GetByIDForUpdate(ctx, exec, divisionID)
		if err != nil {
			return err
		}

		generated, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			DivisionID:   d.ID,
			Participants: d.Participants,
		})
		if err != nil {
			return fmt.Errorf("division %d (%s): %w", d.ID, d.Name, err)
		}

		if _, err := s.matchRepo.DeleteByDivision(ctx, exec, d.ID); err != nil {
			return err
		}
		for i := range generated {
			if err := s.matchRepo.Create(ctx, exec, &generated[i]); err != nil {
				return err
			}
		}

		token = uuid.New()
		if err := s.divisionRepo.SetBracketToken(ctx, exec, d.ID, token); err != nil {
			return err
		}
		d.BracketToken = &token

		division, matches = d, generated
		return nil
	})
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrInsufficientParticipants) {
			outcome = metrics.OutcomeInsufficient
		}
		metrics.BracketsGenerated.WithLabelValues(outcome).Inc()
		return nil, nil, fmt.Errorf("generate bracket: %w", err)
	}

	metrics.BracketsGenerated.WithLabelValues(metrics.OutcomeGenerated).Inc()
	metrics.BracketGenerationDuration.Observe(time.Since(started).Seconds())
	s.logger.InfoContext(ctx, "Bracket generated",
		slog.Int("division_id", division.ID),
		slog.String("division", division.Name),
		slog.Int("participants", division.ParticipantCount()),
		slog.Int("matches", len(matches)),
		slog.String("bracket_token", token.String()),
	)

	msg := realtime.Message{
		Type: realtime.MessageBracketGenerated,
		Payload: bracketPayload{
			DivisionID:   division.ID,
			TournamentID: division.TournamentID,
			BracketToken: token,
			Matches:      matches,
		},
	}
	for _, room := range []string{realtime.DivisionRoom(division.ID), realtime.TournamentRoom(division.TournamentID)} {
		msg.RoomID = room
		s.events.BroadcastToRoom(room, msg)
	}

	if s.snapshots != nil {
		snap := bracketSnapshot{
			Division:    division,
			Token:       token,
			Generator:   s.generator.GetName(),
			GeneratedAt: time.Now().UTC(),
			Matches:     matches,
		}
		if _, err := s.snapshots.SaveBracket(ctx, division.ID, token, snap); err != nil {
			s.logger.WarnContext(ctx, "Failed to archive bracket snapshot", slog.Int("division_id", division.ID), slog.Any("error", err))
		}
	}

	return division, matches, nil
}

// GenerateTournamentBrackets generates every division bracket of a
// tournament concurrently. Divisions with fewer than two participants are
// reported in the result and do not stop the others; any other failure
// cancels the run.
func (s *bracketService) GenerateTournamentBrackets(ctx context.Context, tournamentID int) (*TournamentBracketsResult, error) {
	list, err := s.divisionRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list divisions of tournament %d: %w", tournamentID, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: tournament %d has no divisions", ErrNotFound, tournamentID)
	}

	results := make([]DivisionBracketResult, len(list))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGenerations)

	for i, d := range list {
		i, d := i, d
		g.Go(func() error {
			res := DivisionBracketResult{DivisionID: d.ID, DivisionName: d.Name}
			generated, matches, err := s.generate(gCtx, d.ID)
			switch {
			case err == nil:
				res.Status = BracketStatusGenerated
				res.Matches = len(matches)
				res.BracketToken = generated.BracketToken
			case errors.Is(err, ErrInsufficientParticipants):
				res.Status = BracketStatusInsufficient
				res.Error = err.Error()
			default:
				return fmt.Errorf("division %d: %w", d.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TournamentBracketsResult{TournamentID: tournamentID, Divisions: results}, nil
}

// GetBracket loads a division and its matches grouped by round.
func (s *bracketService) GetBracket(ctx context.Context, divisionID int) (*BracketView, error) {
	var (
		division *models.Division
		matches  []models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.divisionRepo.GetByID(gCtx, nil, divisionID)
		if err != nil {
			return err
		}
		division = d
		return nil
	})
	g.Go(func() error {
		ms, err := s.matchRepo.ListByDivision(gCtx, nil, divisionID)
		if err != nil {
			return err
		}
		matches = ms
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get bracket of division %d: %w", divisionID, err)
	}

	view := &BracketView{Division: division, Rounds: brackets.GroupByRound(matches)}
	if champion, ok := brackets.Champion(matches); ok {
		view.ChampionID = models.IntPtr(champion)
	}
	return view, nil
}
