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
	"github.com/selin/pulseform/internal/pkg/dberrors"
	"github.com/selin/pulseform/internal/pkg/logger"
)

// ParticipantOrgEmailKindConstraint is the unique constraint serializing
// concurrent first-contact creation for the same (organization, email, kind).
const ParticipantOrgEmailKindConstraint = "participants_org_email_kind_key"

// IParticipantRepository defines the interface for participant database operations
type IParticipantRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Participant, error)
	GetByEmailAndKind(ctx context.Context, organizationID int64, email string, kind models.ParticipantKind) (*models.Participant, error)
	Create(ctx context.Context, participant *models.Participant) (int64, error)
	UpdateContact(ctx context.Context, id int64, name string, additionalData map[string]interface{}) error
}

// ParticipantRepository handles participant database operations
type ParticipantRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const participantColumns = "id, organization_id, name, email, status, kind, guest_code, additional_data, created_at, updated_at"

// GetByID retrieves a participant by id
func (r *ParticipantRepository) GetByID(ctx context.Context, id int64) (*models.Participant, error) {
	sql, args, err := r.sb.Select(participantColumns).
		From("participants").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get participant query: %w", err)
	}

	return r.scanParticipant(r.db.QueryRow(ctx, sql, args...))
}

// GetByEmailAndKind retrieves a participant by exact email within an organization,
// restricted to the given kind. Emails are stored normalized so this is an
// exact-match lookup.
func (r *ParticipantRepository) GetByEmailAndKind(ctx context.Context, organizationID int64, email string, kind models.ParticipantKind) (*models.Participant, error) {
	sql, args, err := r.sb.Select(participantColumns).
		From("participants").
		Where(squirrel.Eq{"organization_id": organizationID, "email": email, "kind": kind}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get participant by email query: %w", err)
	}

	return r.scanParticipant(r.db.QueryRow(ctx, sql, args...))
}

// Create inserts a new participant row. A unique violation on
// (organization_id, email, kind) is reported as apperrors.ErrParticipantExists
// so the caller can recover by re-querying the winner of the race.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) (int64, error) {
	additionalData, err := marshalAdditionalData(participant.AdditionalData)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	sql, args, err := r.sb.Insert("participants").
		Columns("organization_id", "name", "email", "status", "kind", "guest_code", "additional_data", "created_at", "updated_at").
		Values(participant.OrganizationID, participant.Name, participant.Email, participant.Status,
			participant.Kind, participant.GuestCode, additionalData, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create participant query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, ParticipantOrgEmailKindConstraint) {
			logger.Debug().
				Int64("organizationID", participant.OrganizationID).
				Str("kind", string(participant.Kind)).
				Msg("Lost participant creation race, caller will re-query")
			return 0, apperrors.ErrParticipantExists
		}
		logger.Error().Err(err).Int64("organizationID", participant.OrganizationID).Msg("Error executing create participant query")
		return 0, fmt.Errorf("error creating participant: %w", err)
	}

	participant.ID = id
	participant.CreatedAt = now
	participant.UpdatedAt = now
	return id, nil
}

// UpdateContact updates name and auxiliary data on repeat contact. The update
// is non-destructive: an empty name leaves the stored name untouched, and
// additional data keys are merged over the existing bag, never replacing it
// wholesale.
func (r *ParticipantRepository) UpdateContact(ctx context.Context, id int64, name string, additionalData map[string]interface{}) error {
	update := r.sb.Update("participants").
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id})

	if name != "" {
		update = update.Set("name", name)
	}
	if len(additionalData) > 0 {
		payload, err := marshalAdditionalData(additionalData)
		if err != nil {
			return err
		}
		update = update.Set("additional_data", squirrel.Expr("COALESCE(additional_data, '{}'::jsonb) || ?::jsonb", payload))
	}

	sql, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update participant query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("participantID", id).Msg("Error executing update participant query")
		return fmt.Errorf("error updating participant: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}

	return nil
}

func (r *ParticipantRepository) scanParticipant(row pgx.Row) (*models.Participant, error) {
	var participant models.Participant
	var additionalData []byte

	err := row.Scan(
		&participant.ID,
		&participant.OrganizationID,
		&participant.Name,
		&participant.Email,
		&participant.Status,
		&participant.Kind,
		&participant.GuestCode,
		&additionalData,
		&participant.CreatedAt,
		&participant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("error scanning participant row: %w", err)
	}

	if len(additionalData) > 0 {
		if err := json.Unmarshal(additionalData, &participant.AdditionalData); err != nil {
			return nil, fmt.Errorf("error decoding participant additional data: %w", err)
		}
	}

	return &participant, nil
}

func marshalAdditionalData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error encoding additional data: %w", err)
	}
	return payload, nil
}
