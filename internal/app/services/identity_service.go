package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/app/repositories"
	"github.com/selin/pulseform/internal/pkg/apperrors"
	"github.com/selin/pulseform/internal/pkg/auth"
	"github.com/selin/pulseform/internal/pkg/validation"
)

// ResolveInput carries the contact details of one access request.
type ResolveInput struct {
	Name           string
	Email          string
	ActivityID     int64
	AdditionalData map[string]interface{}
}

// IdentityService maps a (name, email, activity) triple to exactly one
// canonical participant identity, creating and linking records as needed.
type IdentityService struct {
	participantRepo repositories.IParticipantRepository
	membershipRepo  repositories.IMembershipRepository
	activityRepo    repositories.IActivityRepository
	logger          zerolog.Logger
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(
	participantRepo repositories.IParticipantRepository,
	membershipRepo repositories.IMembershipRepository,
	activityRepo repositories.IActivityRepository,
	logger zerolog.Logger,
) *IdentityService {
	return &IdentityService{
		participantRepo: participantRepo,
		membershipRepo:  membershipRepo,
		activityRepo:    activityRepo,
		logger:          logger,
	}
}

// ResolveOrCreate returns the single participant identity for the given email
// within the organization owning the activity. Matching is ordered: an
// authenticated participant with this email wins, then an existing guest with
// this email, then a new identity is created (guest when the additional data
// signals anonymous intent, authenticated otherwise). In every branch the
// participant ends up linked to the activity's program and to the activity.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, input ResolveInput) (*models.Participant, error) {
	email := validation.NormalizeEmail(input.Email)
	if !validation.IsValidEmail(email) {
		return nil, apperrors.ErrInvalidEmail
	}

	activity, err := s.activityRepo.GetWithProgram(ctx, input.ActivityID)
	if err != nil {
		return nil, err
	}
	organizationID := activity.Program.OrganizationID

	// Authenticated identities take precedence over guests for the same email.
	for _, kind := range []models.ParticipantKind{models.KindAuthenticated, models.KindGuest} {
		participant, err := s.participantRepo.GetByEmailAndKind(ctx, organizationID, email, kind)
		if err == nil {
			return s.touchExisting(ctx, participant, activity, input)
		}
		if !errors.Is(err, apperrors.ErrParticipantNotFound) {
			return nil, fmt.Errorf("error looking up participant: %w", err)
		}
	}

	kind := models.KindAuthenticated
	if isAnonymousIntent(input.AdditionalData) {
		kind = models.KindGuest
	}

	return s.createAndLink(ctx, organizationID, email, kind, activity, input)
}

// CreateGuest resolves or creates a guest identity directly, skipping the
// authenticated lookup. Anonymous-link flows use this entry point when guest
// intent is already known.
func (s *IdentityService) CreateGuest(ctx context.Context, input ResolveInput) (*models.Participant, error) {
	email := validation.NormalizeEmail(input.Email)
	if !validation.IsValidEmail(email) {
		return nil, apperrors.ErrInvalidEmail
	}

	activity, err := s.activityRepo.GetWithProgram(ctx, input.ActivityID)
	if err != nil {
		return nil, err
	}
	organizationID := activity.Program.OrganizationID

	guest, err := s.participantRepo.GetByEmailAndKind(ctx, organizationID, email, models.KindGuest)
	if err == nil {
		return s.touchExisting(ctx, guest, activity, input)
	}
	if !errors.Is(err, apperrors.ErrParticipantNotFound) {
		return nil, fmt.Errorf("error looking up guest participant: %w", err)
	}

	return s.createAndLink(ctx, organizationID, email, models.KindGuest, activity, input)
}

// touchExisting applies the repeat-contact update (non-destructive) and makes
// sure the program/activity links exist, then returns the identity unchanged.
func (s *IdentityService) touchExisting(ctx context.Context, participant *models.Participant, activity *models.Activity, input ResolveInput) (*models.Participant, error) {
	if input.Name != "" || len(input.AdditionalData) > 0 {
		if err := s.participantRepo.UpdateContact(ctx, participant.ID, input.Name, input.AdditionalData); err != nil {
			return nil, fmt.Errorf("error updating participant contact: %w", err)
		}
		if input.Name != "" {
			participant.Name = input.Name
		}
	}

	if err := s.membershipRepo.EnsureMemberships(ctx, activity.ProgramID, activity.ID, participant.ID); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int64("participantID", participant.ID).
		Int64("activityID", activity.ID).
		Str("kind", string(participant.Kind)).
		Msg("Reused existing participant identity")

	return participant, nil
}

// createAndLink inserts a fresh identity and links it to the activity's
// program and the activity. Losing the creation race to a concurrent request
// is recovered by re-querying and returning the winner.
func (s *IdentityService) createAndLink(ctx context.Context, organizationID int64, email string, kind models.ParticipantKind, activity *models.Activity, input ResolveInput) (*models.Participant, error) {
	participant := &models.Participant{
		OrganizationID: organizationID,
		Name:           input.Name,
		Email:          email,
		Status:         models.ParticipantActive,
		Kind:           kind,
		AdditionalData: input.AdditionalData,
	}
	if kind == models.KindGuest {
		code := auth.GenerateGuestCode()
		participant.GuestCode = &code
	}

	_, err := s.participantRepo.Create(ctx, participant)
	if err != nil {
		if errors.Is(err, apperrors.ErrParticipantExists) {
			// A concurrent request created the row first; the winner is the identity.
			winner, lookupErr := s.participantRepo.GetByEmailAndKind(ctx, organizationID, email, kind)
			if lookupErr != nil {
				return nil, fmt.Errorf("error resolving creation race winner: %w", lookupErr)
			}
			return s.touchExisting(ctx, winner, activity, input)
		}
		return nil, err
	}

	if err := s.membershipRepo.EnsureMemberships(ctx, activity.ProgramID, activity.ID, participant.ID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("participantID", participant.ID).
		Int64("organizationID", organizationID).
		Int64("activityID", activity.ID).
		Str("kind", string(kind)).
		Msg("Created new participant identity")

	return participant, nil
}

func isAnonymousIntent(additionalData map[string]interface{}) bool {
	v, ok := additionalData["participant_type"].(string)
	return ok && v == models.ParticipantTypeAnonymous
}
