package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/app/repositories"
	"github.com/selin/pulseform/internal/pkg/apperrors"
	"github.com/selin/pulseform/internal/pkg/auth"
)

// DefaultTokenTTLDays is the issue deadline applied when the caller does not
// choose one.
const DefaultTokenTTLDays = 30

// Invalidity reasons returned by Validate. These are internal; the HTTP layer
// collapses most of them into one generic user-facing message.
const (
	ReasonTokenNotFound    = "token not found"
	ReasonExpired          = "expired"
	ReasonActivityNotLive  = "activity not active"
	ReasonAlreadyCompleted = "already completed"
)

// AccessDecision is the outcome of validating a presented token. Expected
// failures are reported through Valid/Reason, not as errors.
type AccessDecision struct {
	Valid            bool
	Reason           string
	AlreadyCompleted bool
	TokenID          int64
	Activity         *models.Activity
	Participant      *models.Participant
}

// AccessTokenService manages the lifecycle of activity access tokens: issuing
// with the single-active-token guarantee, validating presented tokens, and
// honoring the mark-used contract of the submission flow.
type AccessTokenService struct {
	tokenRepo    repositories.IAccessTokenRepository
	responseRepo repositories.IResponseRepository
	logger       zerolog.Logger
}

// NewAccessTokenService creates a new AccessTokenService
func NewAccessTokenService(
	tokenRepo repositories.IAccessTokenRepository,
	responseRepo repositories.IResponseRepository,
	logger zerolog.Logger,
) *AccessTokenService {
	return &AccessTokenService{
		tokenRepo:    tokenRepo,
		responseRepo: responseRepo,
		logger:       logger,
	}
}

// Issue mints a new token for the pair, expiring ttlDays from now. Any prior
// unused token for the pair is discarded in the same atomic unit.
func (s *AccessTokenService) Issue(ctx context.Context, activityID, participantID int64, ttlDays int) (*models.AccessToken, error) {
	if ttlDays < 0 {
		return nil, apperrors.ErrInvalidTTL
	}
	expiresAt := time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour)
	return s.issue(ctx, activityID, participantID, &expiresAt)
}

// IssueNonExpiring mints a token with no deadline, for links that never expire.
func (s *AccessTokenService) IssueNonExpiring(ctx context.Context, activityID, participantID int64) (*models.AccessToken, error) {
	return s.issue(ctx, activityID, participantID, nil)
}

func (s *AccessTokenService) issue(ctx context.Context, activityID, participantID int64, expiresAt *time.Time) (*models.AccessToken, error) {
	value, err := auth.GenerateAccessToken()
	if err != nil {
		return nil, fmt.Errorf("error generating token value: %w", err)
	}

	token := &models.AccessToken{
		ActivityID:    activityID,
		ParticipantID: participantID,
		Token:         value,
		ExpiresAt:     expiresAt,
	}

	if err := s.tokenRepo.Replace(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("tokenID", token.ID).
		Int64("activityID", activityID).
		Int64("participantID", participantID).
		Bool("expiring", expiresAt != nil).
		Msg("Issued access token")

	return token, nil
}

// Validate checks a presented bearer value against expiry, the activity's
// lifecycle state and prior completion. A used token does not block access by
// itself: a participant resuming an in-progress activity presents a used
// token legitimately, and only a completed response locks them out.
func (s *AccessTokenService) Validate(ctx context.Context, tokenValue string) (*AccessDecision, error) {
	token, err := s.tokenRepo.GetByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			s.logger.Debug().Msg("Presented access token not found")
			return &AccessDecision{Valid: false, Reason: ReasonTokenNotFound}, nil
		}
		return nil, err
	}

	decision := &AccessDecision{
		TokenID:     token.ID,
		Activity:    token.Activity,
		Participant: token.Participant,
	}

	if token.IsExpired(time.Now()) {
		s.logger.Debug().Int64("tokenID", token.ID).Time("expiresAt", *token.ExpiresAt).Msg("Presented access token expired")
		decision.Reason = ReasonExpired
		return decision, nil
	}

	// Checked independently of expiry: an unexpired token is still blocked
	// when the activity was paused, closed or archived after issuance.
	if !token.Activity.IsLive() {
		s.logger.Debug().Int64("tokenID", token.ID).Str("status", string(token.Activity.Status)).Msg("Access token presented for non-live activity")
		decision.Reason = ReasonActivityNotLive
		return decision, nil
	}

	if token.IsUsed() {
		completed, err := s.responseRepo.HasCompletedResponse(ctx, token.ActivityID, token.ParticipantID)
		if err != nil {
			return nil, fmt.Errorf("error checking completed response: %w", err)
		}
		if completed {
			decision.Reason = ReasonAlreadyCompleted
			decision.AlreadyCompleted = true
			return decision, nil
		}
		// Used but not completed: resuming an in-progress activity.
	}

	decision.Valid = true
	return decision, nil
}

// MarkUsed records that the holder's submission was accepted. Idempotent: the
// timestamp is written once and later calls do not overwrite it.
func (s *AccessTokenService) MarkUsed(ctx context.Context, tokenID int64) error {
	if err := s.tokenRepo.MarkUsed(ctx, tokenID); err != nil {
		return err
	}
	s.logger.Debug().Int64("tokenID", tokenID).Msg("Access token marked used")
	return nil
}
