package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IResponseRepository exposes the completion predicate owned by the response
// subsystem: whether a completed response exists for (activity, participant).
type IResponseRepository interface {
	HasCompletedResponse(ctx context.Context, activityID, participantID int64) (bool, error)
}

// ResponseRepository handles response existence checks
type ResponseRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewResponseRepository creates a new ResponseRepository
func NewResponseRepository(db *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// HasCompletedResponse reports whether a completed response exists for the
// given (activity, participant) pair. In-progress responses do not count.
func (r *ResponseRepository) HasCompletedResponse(ctx context.Context, activityID, participantID int64) (bool, error) {
	subquery := r.sb.Select("1").
		From("responses").
		Where(squirrel.Eq{"activity_id": activityID, "participant_id": participantID}).
		Where("completed_at IS NOT NULL")

	sql, args, err := subquery.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build completed response query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking completed response: %w", err)
	}

	return exists, nil
}
