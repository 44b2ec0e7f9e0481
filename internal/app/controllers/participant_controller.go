package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/selin/pulseform/internal/app/models/dto"
	"github.com/selin/pulseform/internal/app/repositories"
	"github.com/selin/pulseform/internal/middleware"
)

// ParticipantController serves the session-holder's own participant record
type ParticipantController struct {
	participantRepo repositories.IParticipantRepository
	membershipRepo  repositories.IMembershipRepository
	logger          zerolog.Logger
}

// NewParticipantController creates a new ParticipantController
func NewParticipantController(
	participantRepo repositories.IParticipantRepository,
	membershipRepo repositories.IMembershipRepository,
	logger zerolog.Logger,
) *ParticipantController {
	return &ParticipantController{
		participantRepo: participantRepo,
		membershipRepo:  membershipRepo,
		logger:          logger,
	}
}

// MembershipsResponse lists the session participant's program and activity links
type MembershipsResponse struct {
	Participant dto.ParticipantData `json:"participant"`
	ProgramIDs  []int64             `json:"programIds"`
	ActivityIDs []int64             `json:"activityIds"`
}

// GetMyMemberships returns the program and activity links of the session participant
// @Summary List own memberships
// @Description Returns the program and activity links of the participant carried by the session token.
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=MembershipsResponse} "Memberships"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid session"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /participants/me/memberships [get]
func (c *ParticipantController) GetMyMemberships(ctx *gin.Context) {
	participantID, ok := ctx.Get(middleware.ContextParticipantID)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return
	}
	id, ok := participantID.(int64)
	if !ok {
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error"),
		))
		return
	}

	participant, err := c.participantRepo.GetByID(ctx.Request.Context(), id)
	if err != nil {
		c.logger.Error().Err(err).Int64("participantID", id).Msg("Failed to load session participant")
		middleware.HandleAPIError(ctx, err)
		return
	}

	programIDs, err := c.membershipRepo.GetProgramIDsByParticipant(ctx.Request.Context(), id)
	if err != nil {
		c.logger.Error().Err(err).Int64("participantID", id).Msg("Failed to load program memberships")
		middleware.HandleAPIError(ctx, err)
		return
	}

	activityIDs, err := c.membershipRepo.GetActivityIDsByParticipant(ctx.Request.Context(), id)
	if err != nil {
		c.logger.Error().Err(err).Int64("participantID", id).Msg("Failed to load activity memberships")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(MembershipsResponse{
		Participant: participantData(participant),
		ProgramIDs:  programIDs,
		ActivityIDs: activityIDs,
	}, "Memberships"))
}
