package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-divisions/models"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchPositionConflict = errors.New("match position already taken in division")
	ErrMatchDivisionInvalid  = errors.New("match division conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate and GetByPositionForUpdate lock the row until the
	// transaction ends; exec must be a transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByPositionForUpdate(ctx context.Context, exec SQLExecutor, divisionID, round, number int) (*models.Match, error)
	ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]models.Match, error)
	// Update writes slots, winner, status and the bye flag.
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	DeleteByDivision(ctx context.Context, exec SQLExecutor, divisionID int) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, division_id, round, match_number, slot1_id, slot2_id, winner_id,
	status, is_bye, created_at, updated_at`

var matchConstraints = map[string]error{
	"matches_position_key":     ErrMatchPositionConflict,
	"matches_division_id_fkey": ErrMatchDivisionInvalid,
}

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(division_id, round, match_number, slot1_id, slot2_id, winner_id, status, is_bye)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		match.DivisionID,
		match.Round,
		match.MatchNumber,
		match.Slot1ID,
		match.Slot2ID,
		match.WinnerID,
		match.Status,
		match.IsBye,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match %s of division %d: %w",
			match.UID(), match.DivisionID, constraintError(err, matchConstraints))
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getOne(ctx, exec, `WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getOne(ctx, exec, `WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) GetByPositionForUpdate(ctx context.Context, exec SQLExecutor, divisionID, round, number int) (*models.Match, error) {
	return r.getOne(ctx, exec, `WHERE division_id = $1 AND round = $2 AND match_number = $3 FOR UPDATE`, divisionID, round, number)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, exec SQLExecutor, where string, args ...interface{}) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches ` + where

	m, err := scanMatch(r.executor(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %v: %w", args, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE division_id = $1 ORDER BY round ASC, match_number ASC`

	rows, err := r.executor(exec).QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE matches
		SET slot1_id = $1, slot2_id = $2, winner_id = $3, status = $4, is_bye = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		match.Slot1ID,
		match.Slot2ID,
		match.WinnerID,
		match.Status,
		match.IsBye,
		match.ID,
	).Scan(&match.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteByDivision(ctx context.Context, exec SQLExecutor, divisionID int) (int64, error) {
	result, err := r.executor(exec).ExecContext(ctx, `DELETE FROM matches WHERE division_id = $1`, divisionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches of division %d: %w", divisionID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID,
		&m.DivisionID,
		&m.Round,
		&m.MatchNumber,
		&m.Slot1ID,
		&m.Slot2ID,
		&m.WinnerID,
		&m.Status,
		&m.IsBye,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
