package models

import (
	"time"
)

// Participant defines the participant model based on the 'participants' table.
// Kind is derived at creation time: guests come in through anonymous links and
// carry a guest code, authenticated participants come in through registration.
// At most one authenticated participant exists per (organization, email).
type Participant struct {
	ID             int64                  `json:"id" db:"id" example:"1"`
	OrganizationID int64                  `json:"organizationId" db:"organization_id" example:"1"`
	Name           string                 `json:"name" db:"name" example:"Jordan Reyes"`
	Email          string                 `json:"email" db:"email" example:"jordan@example.com"`
	Status         ParticipantStatus      `json:"status" db:"status" example:"active"`
	Kind           ParticipantKind        `json:"kind" db:"kind" example:"guest"`
	GuestCode      *string                `json:"guestCode,omitempty" db:"guest_code"` // Present only for guest kind
	AdditionalData map[string]interface{} `json:"additionalData,omitempty" db:"additional_data"`
	CreatedAt      time.Time              `json:"createdAt" db:"created_at" example:"2026-01-01T10:00:00Z"`
	UpdatedAt      time.Time              `json:"updatedAt" db:"updated_at" example:"2026-01-02T15:30:00Z"`
}

// IsGuest reports whether the participant was created through an anonymous link.
func (p *Participant) IsGuest() bool {
	return p.Kind == KindGuest
}

// ProgramMembership defines a participant's link to a program based on the
// 'program_participants' table
type ProgramMembership struct {
	ID            int64     `json:"id" db:"id"`
	ProgramID     int64     `json:"programId" db:"program_id"`
	ParticipantID int64     `json:"participantId" db:"participant_id"`
	JoinedAt      time.Time `json:"joinedAt" db:"joined_at"`
}

// ActivityMembership defines a participant's link to an activity based on the
// 'activity_participants' table
type ActivityMembership struct {
	ID            int64     `json:"id" db:"id"`
	ActivityID    int64     `json:"activityId" db:"activity_id"`
	ParticipantID int64     `json:"participantId" db:"participant_id"`
	JoinedAt      time.Time `json:"joinedAt" db:"joined_at"`
}
