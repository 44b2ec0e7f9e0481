package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	ParticipantRepository *ParticipantRepository
	MembershipRepository  *MembershipRepository
	ActivityRepository    *ActivityRepository
	AccessTokenRepository *AccessTokenRepository
	ResponseRepository    *ResponseRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		ParticipantRepository: NewParticipantRepository(db),
		MembershipRepository:  NewMembershipRepository(db),
		ActivityRepository:    NewActivityRepository(db),
		AccessTokenRepository: NewAccessTokenRepository(db),
		ResponseRepository:    NewResponseRepository(db),
	}
}
