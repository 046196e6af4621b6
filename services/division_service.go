package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-divisions/divisions"
	"github.com/Dosada05/tournament-divisions/metrics"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/repositories"
)

type DivisionsResult struct {
	TournamentID int               `json:"tournament_id"`
	Divisions    []models.Division `json:"divisions"`
	Skipped      []int             `json:"skipped"`
	SkipReasons  []divisions.Skip  `json:"skip_reasons"`
}

type DivisionService interface {
	// GenerateDivisions classifies the roster and replaces every division of
	// the tournament (and, by cascade, their matches) with the result.
	GenerateDivisions(ctx context.Context, tournamentID int, competitors []models.Competitor, table models.RuleTable) (*DivisionsResult, error)
	ListDivisions(ctx context.Context, tournamentID int) ([]*models.Division, error)
	GetDivision(ctx context.Context, divisionID int) (*models.Division, error)
}

type divisionService struct {
	tx           repositories.Transactor
	divisionRepo repositories.DivisionRepository
	events       EventPublisher
	snapshots    SnapshotStore
	logger       *slog.Logger
}

func NewDivisionService(
	tx repositories.Transactor,
	divisionRepo repositories.DivisionRepository,
	events EventPublisher,
	snapshots SnapshotStore,
	logger *slog.Logger,
) DivisionService {
	return &divisionService{
		tx:           tx,
		divisionRepo: divisionRepo,
		events:       publisherOrNoop(events),
		snapshots:    snapshots,
		logger:       logger,
	}
}

type divisionSnapshot struct {
	TournamentID int                 `json:"tournament_id"`
	GeneratedAt  time.Time           `json:"generated_at"`
	RuleTable    models.RuleTable    `json:"rule_table"`
	Competitors  []models.Competitor `json:"competitors"`
	Divisions    []models.Division   `json:"divisions"`
	Skipped      []divisions.Skip    `json:"skipped"`
}

func (s *divisionService) GenerateDivisions(ctx context.Context, tournamentID int, competitors []models.Competitor, table models.RuleTable) (*DivisionsResult, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}

	classified, err := divisions.ClassifyWithReasons(competitors, table)
	if err != nil {
		return nil, fmt.Errorf("classify tournament %d: %w", tournamentID, err)
	}
	for i := range classified.Divisions {
		classified.Divisions[i].TournamentID = tournamentID
	}

	var replaced int64
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.divisionRepo.LockTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		n, err := s.divisionRepo.DeleteByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		replaced = n
		for i := range classified.Divisions {
			if err := s.divisionRepo.Create(ctx, exec, &classified.Divisions[i]); err != nil {
				return fmt.Errorf("failed to save division %q: %w", classified.Divisions[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store divisions of tournament %d: %w", tournamentID, err)
	}

	metrics.DivisionsGenerated.Add(float64(len(classified.Divisions)))
	for _, skip := range classified.Skipped {
		metrics.CompetitorsSkipped.WithLabelValues(string(skip.Reason)).Inc()
	}
	s.logger.InfoContext(ctx, "Divisions generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("divisions", len(classified.Divisions)),
		slog.Int("skipped", len(classified.Skipped)),
		slog.Int64("replaced", replaced),
	)

	result := &DivisionsResult{
		TournamentID: tournamentID,
		Divisions:    classified.Divisions,
		Skipped:      classified.SkippedIDs(),
		SkipReasons:  classified.Skipped,
	}

	s.events.BroadcastToRoom(realtime.TournamentRoom(tournamentID), realtime.Message{
		Type:    realtime.MessageDivisionsGenerated,
		Payload: result,
		RoomID:  realtime.TournamentRoom(tournamentID),
	})

	if s.snapshots != nil {
		snap := divisionSnapshot{
			TournamentID: tournamentID,
			GeneratedAt:  time.Now().UTC(),
			RuleTable:    table,
			Competitors:  competitors,
			Divisions:    classified.Divisions,
			Skipped:      classified.Skipped,
		}
		if res, err := s.snapshots.SaveDivisions(ctx, tournamentID, snap); err != nil {
			s.logger.WarnContext(ctx, "Failed to archive division snapshot", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		} else {
			s.logger.DebugContext(ctx, "Division snapshot archived", slog.String("key", res.Key))
		}
	}

	return result, nil
}

func (s *divisionService) ListDivisions(ctx context.Context, tournamentID int) ([]*models.Division, error) {
	list, err := s.divisionRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list divisions of tournament %d: %w", tournamentID, err)
	}
	if list == nil {
		return []*models.Division{}, nil
	}
	return list, nil
}

func (s *divisionService) GetDivision(ctx context.Context, divisionID int) (*models.Division, error) {
	d, err := s.divisionRepo.GetByID(ctx, nil, divisionID)
	if err != nil {
		return nil, fmt.Errorf("get division %d: %w", divisionID, err)
	}
	return d, nil
}
