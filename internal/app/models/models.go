package models

// ParticipantKind defines how a participant identity was created
type ParticipantKind string

const (
	KindGuest         ParticipantKind = "guest"
	KindAuthenticated ParticipantKind = "authenticated"
)

// ParticipantStatus defines the participant lifecycle state
type ParticipantStatus string

const (
	ParticipantActive   ParticipantStatus = "active"
	ParticipantInactive ParticipantStatus = "inactive"
)

// ActivityStatus defines the activity lifecycle state
type ActivityStatus string

const (
	ActivityDraft    ActivityStatus = "draft"
	ActivityLive     ActivityStatus = "live"
	ActivityPaused   ActivityStatus = "paused"
	ActivityClosed   ActivityStatus = "closed"
	ActivityArchived ActivityStatus = "archived"
)

// ParticipantTypeAnonymous is the additional-data value that signals guest intent
// on a resolve request (recognized key: "participant_type").
const ParticipantTypeAnonymous = "anonymous"
