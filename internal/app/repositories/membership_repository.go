package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/selin/pulseform/internal/pkg/logger"
)

// IMembershipRepository defines the interface for program/activity membership operations
type IMembershipRepository interface {
	EnsureMemberships(ctx context.Context, programID, activityID, participantID int64) error
	GetActivityIDsByParticipant(ctx context.Context, participantID int64) ([]int64, error)
	GetProgramIDsByParticipant(ctx context.Context, participantID int64) ([]int64, error)
}

// MembershipRepository handles the program_participants and activity_participants
// join tables. Inserts are idempotent upserts; memberships are never removed
// through this repository.
type MembershipRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureMemberships links a participant to an activity's program and to the
// activity itself in one transaction, so a participant is never observed
// linked to an activity without its program. Existing links are left as-is.
func (r *MembershipRepository) EnsureMemberships(ctx context.Context, programID, activityID, participantID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin membership transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()

	programSQL, programArgs, err := r.sb.Insert("program_participants").
		Columns("program_id", "participant_id", "joined_at").
		Values(programID, participantID, now).
		Suffix("ON CONFLICT (program_id, participant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build program membership query: %w", err)
	}
	if _, err := tx.Exec(ctx, programSQL, programArgs...); err != nil {
		logger.Error().Err(err).Int64("programID", programID).Int64("participantID", participantID).Msg("Error linking participant to program")
		return fmt.Errorf("error linking participant to program: %w", err)
	}

	activitySQL, activityArgs, err := r.sb.Insert("activity_participants").
		Columns("activity_id", "participant_id", "joined_at").
		Values(activityID, participantID, now).
		Suffix("ON CONFLICT (activity_id, participant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build activity membership query: %w", err)
	}
	if _, err := tx.Exec(ctx, activitySQL, activityArgs...); err != nil {
		logger.Error().Err(err).Int64("activityID", activityID).Int64("participantID", participantID).Msg("Error linking participant to activity")
		return fmt.Errorf("error linking participant to activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit membership transaction: %w", err)
	}

	return nil
}

// GetActivityIDsByParticipant retrieves all activities a participant is linked to
func (r *MembershipRepository) GetActivityIDsByParticipant(ctx context.Context, participantID int64) ([]int64, error) {
	sql, args, err := r.sb.Select("activity_id").
		From("activity_participants").
		Where(squirrel.Eq{"participant_id": participantID}).
		OrderBy("joined_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity memberships query: %w", err)
	}

	return r.queryIDs(ctx, sql, args)
}

// GetProgramIDsByParticipant retrieves all programs a participant is linked to
func (r *MembershipRepository) GetProgramIDsByParticipant(ctx context.Context, participantID int64) ([]int64, error) {
	sql, args, err := r.sb.Select("program_id").
		From("program_participants").
		Where(squirrel.Eq{"participant_id": participantID}).
		OrderBy("joined_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build program memberships query: %w", err)
	}

	return r.queryIDs(ctx, sql, args)
}

func (r *MembershipRepository) queryIDs(ctx context.Context, sql string, args []interface{}) ([]int64, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
