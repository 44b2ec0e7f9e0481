package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/pkg/apperrors"
)

// IActivityRepository defines the read-side interface for activities.
// Activity ownership (CRUD) lives elsewhere; this core only resolves an
// activity to its program and organization.
type IActivityRepository interface {
	GetWithProgram(ctx context.Context, id int64) (*models.Activity, error)
}

// ActivityRepository handles activity read operations
type ActivityRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetWithProgram retrieves an activity along with its program and the
// program's organization id.
func (r *ActivityRepository) GetWithProgram(ctx context.Context, id int64) (*models.Activity, error) {
	sql, args, err := r.sb.Select(
		"a.id", "a.program_id", "a.title", "a.status", "a.ends_at", "a.created_at",
		"p.id", "p.organization_id", "p.name", "p.created_at",
	).
		From("activities a").
		Join("programs p ON p.id = a.program_id").
		Where(squirrel.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get activity query: %w", err)
	}

	var activity models.Activity
	var program models.Program
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&activity.ID,
		&activity.ProgramID,
		&activity.Title,
		&activity.Status,
		&activity.EndsAt,
		&activity.CreatedAt,
		&program.ID,
		&program.OrganizationID,
		&program.Name,
		&program.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrActivityNotFound
		}
		return nil, fmt.Errorf("error scanning activity row: %w", err)
	}

	activity.Program = &program
	return &activity, nil
}
