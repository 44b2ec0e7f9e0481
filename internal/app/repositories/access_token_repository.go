package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/pkg/apperrors"
	"github.com/selin/pulseform/internal/pkg/logger"
)

// IAccessTokenRepository defines the interface for access token database operations
type IAccessTokenRepository interface {
	Replace(ctx context.Context, token *models.AccessToken) error
	GetByValue(ctx context.Context, value string) (*models.AccessToken, error)
	MarkUsed(ctx context.Context, tokenID int64) error
}

// AccessTokenRepository handles access token database operations
type AccessTokenRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAccessTokenRepository creates a new AccessTokenRepository
func NewAccessTokenRepository(db *pgxpool.Pool) *AccessTokenRepository {
	return &AccessTokenRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Replace atomically discards any unused token for the (activity, participant)
// pair and inserts the new one. Running both statements in one transaction
// keeps the single-active-token invariant observable at every instant: a
// concurrent reader never sees two unused tokens for the pair.
func (r *AccessTokenRepository) Replace(ctx context.Context, token *models.AccessToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin token transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleteSQL, deleteArgs, err := r.sb.Delete("access_tokens").
		Where(squirrel.Eq{
			"activity_id":    token.ActivityID,
			"participant_id": token.ParticipantID,
		}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete token query: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, deleteSQL, deleteArgs...)
	if err != nil {
		logger.Error().Err(err).Int64("activityID", token.ActivityID).Int64("participantID", token.ParticipantID).Msg("Error discarding prior unused token")
		return fmt.Errorf("error discarding prior token: %w", err)
	}
	if cmdTag.RowsAffected() > 0 {
		logger.Debug().Int64("activityID", token.ActivityID).Int64("participantID", token.ParticipantID).Msg("Discarded prior unused access token")
	}

	now := time.Now()
	insertSQL, insertArgs, err := r.sb.Insert("access_tokens").
		Columns("activity_id", "participant_id", "token", "expires_at", "created_at").
		Values(token.ActivityID, token.ParticipantID, token.Token, token.ExpiresAt, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create token query: %w", err)
	}

	if err := tx.QueryRow(ctx, insertSQL, insertArgs...).Scan(&token.ID); err != nil {
		logger.Error().Err(err).Int64("activityID", token.ActivityID).Int64("participantID", token.ParticipantID).Msg("Error executing create token query")
		return fmt.Errorf("error creating token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit token transaction: %w", err)
	}

	token.CreatedAt = now
	return nil
}

// GetByValue retrieves a token by its bearer value, eagerly resolving the
// linked activity (with program) and participant in a single query.
func (r *AccessTokenRepository) GetByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	sql, args, err := r.sb.Select(
		"t.id", "t.activity_id", "t.participant_id", "t.token", "t.expires_at", "t.used_at", "t.created_at",
		"a.id", "a.program_id", "a.title", "a.status", "a.ends_at", "a.created_at",
		"pr.id", "pr.organization_id", "pr.name", "pr.created_at",
		"p.id", "p.organization_id", "p.name", "p.email", "p.status", "p.kind", "p.guest_code", "p.additional_data", "p.created_at", "p.updated_at",
	).
		From("access_tokens t").
		Join("activities a ON a.id = t.activity_id").
		Join("programs pr ON pr.id = a.program_id").
		Join("participants p ON p.id = t.participant_id").
		Where(squirrel.Eq{"t.token": value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get token query: %w", err)
	}

	var token models.AccessToken
	var activity models.Activity
	var program models.Program
	var participant models.Participant
	var additionalData []byte

	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&token.ID, &token.ActivityID, &token.ParticipantID, &token.Token, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
		&activity.ID, &activity.ProgramID, &activity.Title, &activity.Status, &activity.EndsAt, &activity.CreatedAt,
		&program.ID, &program.OrganizationID, &program.Name, &program.CreatedAt,
		&participant.ID, &participant.OrganizationID, &participant.Name, &participant.Email, &participant.Status,
		&participant.Kind, &participant.GuestCode, &additionalData, &participant.CreatedAt, &participant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error scanning token row: %w", err)
	}

	if len(additionalData) > 0 {
		if err := json.Unmarshal(additionalData, &participant.AdditionalData); err != nil {
			return nil, fmt.Errorf("error decoding participant additional data: %w", err)
		}
	}

	activity.Program = &program
	token.Activity = &activity
	token.Participant = &participant
	return &token, nil
}

// MarkUsed stamps used_at exactly once; the first call wins and later calls
// leave the original timestamp in place.
func (r *AccessTokenRepository) MarkUsed(ctx context.Context, tokenID int64) error {
	sql, args, err := r.sb.Update("access_tokens").
		Set("used_at", time.Now()).
		Where(squirrel.Eq{"id": tokenID}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark used query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("tokenID", tokenID).Msg("Error executing mark used query")
		return fmt.Errorf("error marking token used: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Either already used (idempotent, fine) or missing entirely.
		existsSQL, existsArgs, err := r.sb.Select("1").
			From("access_tokens").
			Where(squirrel.Eq{"id": tokenID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build token exists query: %w", err)
		}
		var exists int
		if err := r.db.QueryRow(ctx, existsSQL, existsArgs...).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrTokenNotFound
			}
			return fmt.Errorf("error checking token existence: %w", err)
		}
	}

	return nil
}
