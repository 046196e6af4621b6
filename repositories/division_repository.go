package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-divisions/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrDivisionNotFound       = errors.New("division not found")
	ErrDivisionNameConflict   = errors.New("division name already exists in tournament")
	ErrParticipantConflict    = errors.New("competitor listed twice in a division")
	ErrDivisionInvalidPayload = errors.New("division payload violates a table constraint")
)

type DivisionRepository interface {
	// LockTournament serializes division generation for one tournament until
	// the surrounding transaction ends.
	LockTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error)
	Create(ctx context.Context, exec SQLExecutor, division *models.Division) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Division, error)
	SetBracketToken(ctx context.Context, exec SQLExecutor, id int, token uuid.UUID) error
}

type postgresDivisionRepository struct {
	db *sql.DB
}

func NewPostgresDivisionRepository(db *sql.DB) DivisionRepository {
	return &postgresDivisionRepository{db: db}
}

const divisionColumns = `id, tournament_id, name, category, gender, min_age, max_age, criterion,
	range_min, range_max, band_index, position, bracket_token, created_at`

var divisionConstraints = map[string]error{
	"divisions_tournament_name_key": ErrDivisionNameConflict,
	"division_participants_pkey":    ErrParticipantConflict,
	"divisions_gender_check":        ErrDivisionInvalidPayload,
	"divisions_criterion_check":     ErrDivisionInvalidPayload,
}

func (r *postgresDivisionRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresDivisionRepository) LockTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	// Two-key form keeps this lock space apart from other advisory lock users.
	_, err := r.executor(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('divisions'), $1)`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to lock tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresDivisionRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error) {
	result, err := r.executor(exec).ExecContext(ctx, `DELETE FROM divisions WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete divisions of tournament %d: %w", tournamentID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresDivisionRepository) Create(ctx context.Context, exec SQLExecutor, d *models.Division) error {
	exec = r.executor(exec)
	query := `
		INSERT INTO divisions
			(tournament_id, name, category, gender, min_age, max_age, criterion,
			 range_min, range_max, band_index, position, bracket_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		d.TournamentID,
		d.Name,
		d.Category,
		d.Gender,
		d.MinAge,
		d.MaxAge,
		d.Criterion,
		d.RangeMin,
		d.RangeMax,
		d.BandIndex,
		d.Position,
		nullUUID(d.BracketToken),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return constraintError(err, divisionConstraints)
	}

	if len(d.Participants) == 0 {
		return nil
	}
	competitorIDs := make([]int64, len(d.Participants))
	teamIDs := make([]int64, len(d.Participants))
	names := make([]string, len(d.Participants))
	for i, p := range d.Participants {
		competitorIDs[i] = int64(p.CompetitorID)
		teamIDs[i] = int64(p.TeamID)
		names[i] = p.Name
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO division_participants (division_id, competitor_id, team_id, name, seq)
		SELECT $1, p.competitor_id, p.team_id, p.name, p.seq
		FROM unnest($2::int[], $3::int[], $4::text[]) WITH ORDINALITY AS p(competitor_id, team_id, name, seq)`,
		d.ID, pq.Array(competitorIDs), pq.Array(teamIDs), pq.Array(names),
	)
	if err != nil {
		return fmt.Errorf("failed to insert participants of division %d: %w", d.ID, constraintError(err, divisionConstraints))
	}
	return nil
}

func (r *postgresDivisionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error) {
	return r.getByID(ctx, r.executor(exec), id, "")
}

// GetByIDForUpdate locks the division row until the transaction ends; exec
// must be a transaction.
func (r *postgresDivisionRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error) {
	return r.getByID(ctx, r.executor(exec), id, " FOR UPDATE")
}

func (r *postgresDivisionRepository) getByID(ctx context.Context, exec SQLExecutor, id int, lock string) (*models.Division, error) {
	query := `SELECT ` + divisionColumns + ` FROM divisions WHERE id = $1` + lock

	d, err := scanDivision(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to scan division by id %d: %w", id, err)
	}

	byDivision, err := r.participants(ctx, exec, []int64{int64(d.ID)})
	if err != nil {
		return nil, err
	}
	d.Participants = byDivision[d.ID]
	d.RefreshReady()
	return d, nil
}

func (r *postgresDivisionRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Division, error) {
	exec = r.executor(exec)
	query := `SELECT ` + divisionColumns + ` FROM divisions WHERE tournament_id = $1 ORDER BY position ASC, id ASC`

	rows, err := exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query divisions for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	divisions := make([]*models.Division, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		d, scanErr := scanDivision(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan division row: %w", scanErr)
		}
		divisions = append(divisions, d)
		ids = append(ids, int64(d.ID))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during division rows iteration: %w", err)
	}
	if len(divisions) == 0 {
		return divisions, nil
	}

	byDivision, err := r.participants(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range divisions {
		d.Participants = byDivision[d.ID]
		d.RefreshReady()
	}
	return divisions, nil
}

func (r *postgresDivisionRepository) SetBracketToken(ctx context.Context, exec SQLExecutor, id int, token uuid.UUID) error {
	result, err := r.executor(exec).ExecContext(ctx, `UPDATE divisions SET bracket_token = $1 WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("failed to set bracket token of division %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}

func (r *postgresDivisionRepository) participants(ctx context.Context, exec SQLExecutor, divisionIDs []int64) (map[int][]models.Participant, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT division_id, competitor_id, team_id, name
		FROM division_participants
		WHERE division_id = ANY($1)
		ORDER BY division_id ASC, seq ASC`, pq.Array(divisionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query division participants: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]models.Participant, len(divisionIDs))
	for rows.Next() {
		var divisionID int
		var p models.Participant
		if err := rows.Scan(&divisionID, &p.CompetitorID, &p.TeamID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan division participant row: %w", err)
		}
		out[divisionID] = append(out[divisionID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during division participant rows iteration: %w", err)
	}
	return out, nil
}

func scanDivision(row rowScanner) (*models.Division, error) {
	var d models.Division
	var token uuid.NullUUID
	err := row.Scan(
		&d.ID,
		&d.TournamentID,
		&d.Name,
		&d.Category,
		&d.Gender,
		&d.MinAge,
		&d.MaxAge,
		&d.Criterion,
		&d.RangeMin,
		&d.RangeMax,
		&d.BandIndex,
		&d.Position,
		&token,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		d.BracketToken = &token.UUID
	}
	return &d, nil
}

func nullUUID(u *uuid.UUID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *u, Valid: true}
}
