package models

import (
	"time"
)

// Organization defines the tenant model based on the 'organizations' table
type Organization struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Program defines a program grouping activities based on the 'programs' table
type Program struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organizationId" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`

	Organization *Organization `json:"organization,omitempty"` // Relation, no db tag
}
