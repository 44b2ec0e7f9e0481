package models

import (
	"time"
)

// Activity defines a single survey/poll/assessment instance based on the
// 'activities' table. Owned by the program/questionnaire CRUD elsewhere;
// this core only reads status, program and end date.
type Activity struct {
	ID        int64          `json:"id" db:"id" example:"1"`
	ProgramID int64          `json:"programId" db:"program_id" example:"1"`
	Title     string         `json:"title" db:"title" example:"Q3 Engagement Pulse"`
	Status    ActivityStatus `json:"status" db:"status" example:"live"`
	EndsAt    *time.Time     `json:"endsAt,omitempty" db:"ends_at"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`

	Program *Program `json:"program,omitempty"` // Relation, no db tag
}

// IsLive reports whether the activity currently accepts participants.
func (a *Activity) IsLive() bool {
	return a.Status == ActivityLive
}
