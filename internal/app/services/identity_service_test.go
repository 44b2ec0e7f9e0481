package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/pkg/apperrors"
)

// fakeParticipantRepo is an in-memory IParticipantRepository that enforces the
// same (organization, email, kind) uniqueness as the database constraint.
type fakeParticipantRepo struct {
	mu           sync.Mutex
	nextID       int64
	participants map[int64]*models.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: make(map[int64]*models.Participant)}
}

func (r *fakeParticipantRepo) GetByID(_ context.Context, id int64) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, apperrors.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeParticipantRepo) GetByEmailAndKind(_ context.Context, organizationID int64, email string, kind models.ParticipantKind) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.OrganizationID == organizationID && p.Email == email && p.Kind == kind {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) Create(_ context.Context, participant *models.Participant) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.OrganizationID == participant.OrganizationID && p.Email == participant.Email && p.Kind == participant.Kind {
			return 0, apperrors.ErrParticipantExists
		}
	}
	r.nextID++
	participant.ID = r.nextID
	participant.CreatedAt = time.Now()
	participant.UpdatedAt = participant.CreatedAt
	cp := *participant
	r.participants[participant.ID] = &cp
	return participant.ID, nil
}

func (r *fakeParticipantRepo) UpdateContact(_ context.Context, id int64, name string, additionalData map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return apperrors.ErrParticipantNotFound
	}
	if name != "" {
		p.Name = name
	}
	if len(additionalData) > 0 {
		if p.AdditionalData == nil {
			p.AdditionalData = make(map[string]interface{})
		}
		for k, v := range additionalData {
			p.AdditionalData[k] = v
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakeParticipantRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

type membershipKey struct {
	scopeID       int64
	participantID int64
}

// fakeMembershipRepo records idempotent program and activity links.
type fakeMembershipRepo struct {
	mu       sync.Mutex
	programs map[membershipKey]int
	acts     map[membershipKey]int
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		programs: make(map[membershipKey]int),
		acts:     make(map[membershipKey]int),
	}
}

func (r *fakeMembershipRepo) EnsureMemberships(_ context.Context, programID, activityID, participantID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[membershipKey{programID, participantID}]++
	r.acts[membershipKey{activityID, participantID}]++
	return nil
}

func (r *fakeMembershipRepo) GetActivityIDsByParticipant(_ context.Context, participantID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for k := range r.acts {
		if k.participantID == participantID {
			ids = append(ids, k.scopeID)
		}
	}
	return ids, nil
}

func (r *fakeMembershipRepo) GetProgramIDsByParticipant(_ context.Context, participantID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for k := range r.programs {
		if k.participantID == participantID {
			ids = append(ids, k.scopeID)
		}
	}
	return ids, nil
}

type fakeActivityRepo struct {
	mu         sync.Mutex
	activities map[int64]*models.Activity
}

func newFakeActivityRepo(activities ...*models.Activity) *fakeActivityRepo {
	r := &fakeActivityRepo{activities: make(map[int64]*models.Activity)}
	for _, a := range activities {
		r.activities[a.ID] = a
	}
	return r
}

func (r *fakeActivityRepo) GetWithProgram(_ context.Context, id int64) (*models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, apperrors.ErrActivityNotFound
	}
	return a, nil
}

func liveActivity(id, programID, orgID int64) *models.Activity {
	return &models.Activity{
		ID:        id,
		ProgramID: programID,
		Title:     "Quarterly Survey",
		Status:    models.ActivityLive,
		Program:   &models.Program{ID: programID, OrganizationID: orgID},
	}
}

func newTestIdentityService(pr *fakeParticipantRepo, mr *fakeMembershipRepo, ar *fakeActivityRepo) *IdentityService {
	return NewIdentityService(pr, mr, ar, zerolog.Nop())
}

func TestResolveOrCreate_CreatesAuthenticatedParticipant(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	p, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Name:       "Ada Lovelace",
		Email:      "Ada@Example.COM",
		ActivityID: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", p.Email, "email should be normalized")
	assert.Equal(t, models.KindAuthenticated, p.Kind)
	assert.Equal(t, models.ParticipantActive, p.Status)
	assert.Nil(t, p.GuestCode)
	assert.Equal(t, 1, pr.count())
	assert.Equal(t, 1, mr.programs[membershipKey{5, p.ID}])
	assert.Equal(t, 1, mr.acts[membershipKey{10, p.ID}])
}

func TestResolveOrCreate_AnonymousIntentCreatesGuest(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	p, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email:          "anon@example.com",
		ActivityID:     10,
		AdditionalData: map[string]interface{}{"participant_type": "anonymous"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindGuest, p.Kind)
	require.NotNil(t, p.GuestCode)
	assert.NotEmpty(t, *p.GuestCode)
}

func TestResolveOrCreate_AuthenticatedWinsOverGuest(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	code := "g-existing"
	_, err := pr.Create(context.Background(), &models.Participant{
		OrganizationID: 1, Email: "dual@example.com", Kind: models.KindGuest,
		Status: models.ParticipantActive, GuestCode: &code,
	})
	require.NoError(t, err)
	authID, err := pr.Create(context.Background(), &models.Participant{
		OrganizationID: 1, Email: "dual@example.com", Kind: models.KindAuthenticated,
		Status: models.ParticipantActive,
	})
	require.NoError(t, err)

	p, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email:      "dual@example.com",
		ActivityID: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, authID, p.ID)
	assert.Equal(t, models.KindAuthenticated, p.Kind)
}

func TestResolveOrCreate_RepeatContactUpdatesNonDestructively(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	first, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		ActivityID:     10,
		AdditionalData: map[string]interface{}{"team": "research"},
	})
	require.NoError(t, err)

	// Repeat with a new name and extra data: name updates, prior data survives.
	second, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Name:           "Ada L.",
		Email:          "ada@example.com",
		ActivityID:     10,
		AdditionalData: map[string]interface{}{"cohort": "2026"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, pr.count())

	stored, err := pr.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", stored.Name)
	assert.Equal(t, "research", stored.AdditionalData["team"])
	assert.Equal(t, "2026", stored.AdditionalData["cohort"])
}

func TestResolveOrCreate_BlankNameDoesNotErasePrior(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Name: "Ada Lovelace", Email: "ada@example.com", ActivityID: 10,
	})
	require.NoError(t, err)

	p, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email: "ada@example.com", ActivityID: 10,
	})
	require.NoError(t, err)

	stored, err := pr.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.Name)
}

func TestResolveOrCreate_GuestReusedAcrossActivities(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1), liveActivity(11, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	anon := map[string]interface{}{"participant_type": "anonymous"}

	first, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email: "guest@example.com", ActivityID: 10, AdditionalData: anon,
	})
	require.NoError(t, err)

	second, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email: "guest@example.com", ActivityID: 11, AdditionalData: anon,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same guest identity across activities")
	assert.Equal(t, 1, pr.count())
	assert.Equal(t, 1, mr.acts[membershipKey{10, first.ID}])
	assert.Equal(t, 1, mr.acts[membershipKey{11, first.ID}])
}

func TestResolveOrCreate_RegistrationReusesExistingGuest(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1), liveActivity(11, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	guest, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Email:          "a@x.com",
		ActivityID:     10,
		AdditionalData: map[string]interface{}{"participant_type": "anonymous"},
	})
	require.NoError(t, err)
	require.Equal(t, models.KindGuest, guest.Kind)

	// A later registration-flow request for the same email finds the guest
	// instead of creating a second, authenticated identity.
	registered, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		Name:       "Alex Xu",
		Email:      "a@x.com",
		ActivityID: 11,
	})
	require.NoError(t, err)

	assert.Equal(t, guest.ID, registered.ID)
	assert.Equal(t, models.KindGuest, registered.Kind)
	assert.Equal(t, 1, pr.count())
	assert.Equal(t, 1, mr.acts[membershipKey{11, guest.ID}])
}

func TestResolveOrCreate_ConcurrentRequestsProduceOneIdentity(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
				Name:       fmt.Sprintf("Worker %d", i),
				Email:      "race@example.com",
				ActivityID: 10,
			})
			errs[i] = err
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "request %d", i)
		assert.Equal(t, ids[0], ids[i], "all requests must resolve to one identity")
	}
	assert.Equal(t, 1, pr.count())
}

func TestResolveOrCreate_InvalidEmail(t *testing.T) {
	svc := newTestIdentityService(newFakeParticipantRepo(), newFakeMembershipRepo(), newFakeActivityRepo(liveActivity(10, 5, 1)))

	for _, email := range []string{"", "not-an-email", "missing@tld", "@example.com"} {
		_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{Email: email, ActivityID: 10})
		assert.ErrorIs(t, err, apperrors.ErrInvalidEmail, "email %q", email)
	}
}

func TestResolveOrCreate_UnknownActivity(t *testing.T) {
	svc := newTestIdentityService(newFakeParticipantRepo(), newFakeMembershipRepo(), newFakeActivityRepo())

	_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{Email: "ada@example.com", ActivityID: 404})
	assert.ErrorIs(t, err, apperrors.ErrActivityNotFound)
}

func TestCreateGuest_SkipsAuthenticatedIdentity(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	authID, err := pr.Create(context.Background(), &models.Participant{
		OrganizationID: 1, Email: "dual@example.com", Kind: models.KindAuthenticated,
		Status: models.ParticipantActive,
	})
	require.NoError(t, err)

	guest, err := svc.CreateGuest(context.Background(), ResolveInput{
		Email:      "dual@example.com",
		ActivityID: 10,
	})
	require.NoError(t, err)

	assert.NotEqual(t, authID, guest.ID, "guest flow must not reuse the authenticated identity")
	assert.Equal(t, models.KindGuest, guest.Kind)
	require.NotNil(t, guest.GuestCode)
}

func TestCreateGuest_ReusesExistingGuest(t *testing.T) {
	pr := newFakeParticipantRepo()
	mr := newFakeMembershipRepo()
	ar := newFakeActivityRepo(liveActivity(10, 5, 1))
	svc := newTestIdentityService(pr, mr, ar)

	first, err := svc.CreateGuest(context.Background(), ResolveInput{Email: "guest@example.com", ActivityID: 10})
	require.NoError(t, err)
	second, err := svc.CreateGuest(context.Background(), ResolveInput{Email: "guest@example.com", ActivityID: 10})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, pr.count())
}
