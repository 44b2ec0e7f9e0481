// Package controllers handles HTTP request handling
package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/app/models/dto"
	"github.com/selin/pulseform/internal/app/repositories"
	"github.com/selin/pulseform/internal/app/services"
	"github.com/selin/pulseform/internal/middleware"
	"github.com/selin/pulseform/internal/pkg/auth"
)

// resolveFn is either ResolveOrCreate or CreateGuest; both grant flows differ
// only in how the identity is resolved.
type resolveFn func(ctx context.Context, input services.ResolveInput) (*models.Participant, error)

// AccessController handles activity access: resolving the participant identity
// and issuing/validating bearer access tokens.
type AccessController struct {
	identityService *services.IdentityService
	tokenService    *services.AccessTokenService
	activityRepo    repositories.IActivityRepository
	jwtService      *auth.JWTService
	defaultTTLDays  int
	logger          zerolog.Logger
}

// NewAccessController creates a new AccessController
func NewAccessController(
	identityService *services.IdentityService,
	tokenService *services.AccessTokenService,
	activityRepo repositories.IActivityRepository,
	jwtService *auth.JWTService,
	defaultTTLDays int,
	logger zerolog.Logger,
) *AccessController {
	return &AccessController{
		identityService: identityService,
		tokenService:    tokenService,
		activityRepo:    activityRepo,
		jwtService:      jwtService,
		defaultTTLDays:  defaultTTLDays,
		logger:          logger,
	}
}

// RequestAccess handles a registration-flow access request
// @Summary Request access to an activity
// @Description Resolves the participant identity for (email, activity) and issues a bearer access token. Identity resolution completes before the token is issued.
// @Tags access
// @Accept json
// @Produce json
// @Param id path int true "Activity ID"
// @Param request body dto.RequestAccessRequest true "Contact details"
// @Success 201 {object} dto.APIResponse{data=dto.AccessGrantResponse} "Access granted"
// @Failure 400 {object} dto.ErrorResponse "Invalid email or request format"
// @Failure 404 {object} dto.ErrorResponse "Activity not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /activities/{id}/access [post]
func (c *AccessController) RequestAccess(ctx *gin.Context) {
	c.grantAccess(ctx, c.identityService.ResolveOrCreate)
}

// RequestGuestAccess handles an anonymous-link access request
// @Summary Request guest access to an activity
// @Description Resolves or creates a guest identity for (email, activity) and issues a bearer access token. The authenticated-identity lookup is skipped by design.
// @Tags access
// @Accept json
// @Produce json
// @Param id path int true "Activity ID"
// @Param request body dto.RequestAccessRequest true "Contact details"
// @Success 201 {object} dto.APIResponse{data=dto.AccessGrantResponse} "Access granted"
// @Failure 400 {object} dto.ErrorResponse "Invalid email or request format"
// @Failure 404 {object} dto.ErrorResponse "Activity not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /activities/{id}/guest-access [post]
func (c *AccessController) RequestGuestAccess(ctx *gin.Context) {
	c.grantAccess(ctx, c.identityService.CreateGuest)
}

func (c *AccessController) grantAccess(ctx *gin.Context, resolve resolveFn) {
	activityID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Activity id must be numeric").WithField("id")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	var req dto.RequestAccessRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid access request payload")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	activity, err := c.activityRepo.GetWithProgram(ctx.Request.Context(), activityID)
	if err != nil {
		c.logger.Warn().Err(err).Int64("activityID", activityID).Msg("Access requested for unknown activity")
		middleware.HandleAPIError(ctx, err)
		return
	}

	// Identity resolution must be durably complete before token issuance reads
	// the participant id, so the two calls are strictly sequenced.
	participant, err := resolve(ctx.Request.Context(), services.ResolveInput{
		Name:           req.Name,
		Email:          req.Email,
		ActivityID:     activityID,
		AdditionalData: req.AdditionalData,
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("activityID", activityID).Msg("Failed to resolve participant identity")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ttlDays := c.defaultTTLDays
	if req.TTLDays != nil {
		ttlDays = *req.TTLDays
	}

	token, err := c.tokenService.Issue(ctx.Request.Context(), activityID, participant.ID, ttlDays)
	if err != nil {
		c.logger.Error().Err(err).Int64("activityID", activityID).Int64("participantID", participant.ID).Msg("Failed to issue access token")
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Int64("activityID", activityID).
		Int64("participantID", participant.ID).
		Int64("tokenID", token.ID).
		Msg("Access granted")

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.AccessGrantResponse{
		Token:       token.Token,
		ExpiresAt:   token.ExpiresAt,
		Participant: participantData(participant),
		Activity: dto.ActivityData{
			ID:     activity.ID,
			Title:  activity.Title,
			Status: string(activity.Status),
		},
	}, "Access granted"))
}

// ValidateAccess handles token presentation
// @Summary Validate an access token
// @Description Validates a presented bearer token and, when valid, mints a short-lived session token for the submission flow.
// @Tags access
// @Produce json
// @Param token path string true "Access token value"
// @Success 200 {object} dto.APIResponse{data=dto.ValidateAccessResponse} "Token valid"
// @Failure 404 {object} dto.ErrorResponse "Invalid or expired link"
// @Failure 409 {object} dto.ErrorResponse "Activity already completed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /access/{token} [get]
func (c *AccessController) ValidateAccess(ctx *gin.Context) {
	tokenValue := ctx.Param("token")

	decision, err := c.tokenService.Validate(ctx.Request.Context(), tokenValue)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to validate access token")
		middleware.HandleAPIError(ctx, err)
		return
	}

	if !decision.Valid {
		if decision.AlreadyCompleted {
			// Distinct terminal state: the caller renders a completion notice,
			// not an invalid-link error.
			ctx.JSON(http.StatusConflict, dto.NewErrorResponse(
				dto.NewErrorDetail(dto.ErrorCodeAlreadyCompleted, "You have already completed this activity"),
			))
			return
		}
		c.logger.Info().Str("reason", decision.Reason).Msg("Access token rejected")
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInvalidLink, middleware.InvalidLinkMessage),
		))
		return
	}

	sessionToken, expiresIn, err := c.jwtService.GenerateSessionToken(decision.Participant, decision.Activity.ID)
	if err != nil {
		c.logger.Error().Err(err).Int64("participantID", decision.Participant.ID).Msg("Failed to mint session token")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.ValidateAccessResponse{
		SessionToken:     sessionToken,
		SessionExpiresIn: expiresIn,
		TokenID:          decision.TokenID,
		Participant:      participantData(decision.Participant),
		Activity: dto.ActivityData{
			ID:     decision.Activity.ID,
			Title:  decision.Activity.Title,
			Status: string(decision.Activity.Status),
		},
	}, "Token valid"))
}

// MarkTokenUsed records submission acceptance for a token
// @Summary Mark an access token used
// @Description Called by the submission flow when a submission is accepted. Idempotent: the first call wins.
// @Tags access
// @Produce json
// @Security BearerAuth
// @Param id path int true "Token ID"
// @Success 200 {object} dto.APIResponse "Token marked used"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid session"
// @Failure 404 {object} dto.ErrorResponse "Token not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /access/tokens/{id}/used [post]
func (c *AccessController) MarkTokenUsed(ctx *gin.Context) {
	tokenID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Token id must be numeric").WithField("id")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.tokenService.MarkUsed(ctx.Request.Context(), tokenID); err != nil {
		c.logger.Warn().Err(err).Int64("tokenID", tokenID).Msg("Failed to mark token used")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(nil, "Token marked used"))
}

func participantData(p *models.Participant) dto.ParticipantData {
	data := dto.ParticipantData{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Kind:  string(p.Kind),
	}
	if p.GuestCode != nil {
		data.GuestCode = *p.GuestCode
	}
	return data
}
