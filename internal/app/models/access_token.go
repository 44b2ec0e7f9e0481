package models

import (
	"time"
)

// AccessToken defines a bearer credential binding one participant to one
// activity, based on the 'access_tokens' table. For a given (activity,
// participant) pair at most one unused token exists at a time: issuing a new
// one discards the prior unused row.
type AccessToken struct {
	ID            int64      `json:"id" db:"id"`
	ActivityID    int64      `json:"activityId" db:"activity_id"`
	ParticipantID int64      `json:"participantId" db:"participant_id"`
	Token         string     `json:"-" db:"token"` // Bearer value, excluded from JSON
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" db:"expires_at"` // nil = never expires
	UsedAt        *time.Time `json:"usedAt,omitempty" db:"used_at"`       // nil = unused
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`

	Activity    *Activity    `json:"activity,omitempty"`    // Relation, no db tag
	Participant *Participant `json:"participant,omitempty"` // Relation, no db tag
}

// IsExpired reports whether the token's deadline has passed at the given
// instant. The comparison is strictly after: a token whose expiry equals the
// instant is not yet expired.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// IsUsed reports whether the token has been consumed by a submission.
func (t *AccessToken) IsUsed() bool {
	return t.UsedAt != nil
}
