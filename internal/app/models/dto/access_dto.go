package dto

import "time"

// RequestAccessRequest is the payload for opening an activity as a participant.
// Email is the matching key; Name is optional on repeat contact. AdditionalData
// is an opaque bag; the resolver recognizes participant_type=anonymous as guest
// intent.
type RequestAccessRequest struct {
	Email          string                 `json:"email" binding:"required,email" example:"jordan@example.com"`
	Name           string                 `json:"name,omitempty" binding:"omitempty,max=150" example:"Jordan Reyes"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
	TTLDays        *int                   `json:"ttlDays,omitempty" binding:"omitempty,min=0" example:"30"`
}

// ParticipantData represents participant information in responses
type ParticipantData struct {
	ID        int64  `json:"id" example:"1"`
	Name      string `json:"name" example:"Jordan Reyes"`
	Email     string `json:"email" example:"jordan@example.com"`
	Kind      string `json:"kind" example:"guest" enums:"guest,authenticated"`
	GuestCode string `json:"guestCode,omitempty"`
}

// ActivityData represents activity information in responses
type ActivityData struct {
	ID     int64  `json:"id" example:"1"`
	Title  string `json:"title" example:"Q3 Engagement Pulse"`
	Status string `json:"status" example:"live"`
}

// AccessGrantResponse is returned after resolve + issue succeeds
type AccessGrantResponse struct {
	Token       string          `json:"token"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	Participant ParticipantData `json:"participant"`
	Activity    ActivityData    `json:"activity"`
}

// ValidateAccessResponse is returned when a presented token validates.
// SessionToken is a short-lived JWT the submission flow authenticates with.
type ValidateAccessResponse struct {
	SessionToken     string          `json:"sessionToken"`
	SessionExpiresIn int             `json:"sessionExpiresIn" example:"3600"`
	TokenID          int64           `json:"tokenId" example:"42"`
	Participant      ParticipantData `json:"participant"`
	Activity         ActivityData    `json:"activity"`
}
