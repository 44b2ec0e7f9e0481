package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/pkg/apperrors"
)

// fakeAccessTokenRepo mirrors the database semantics: Replace atomically
// discards the pair's unused token before inserting, MarkUsed writes used_at
// only once.
type fakeAccessTokenRepo struct {
	mu          sync.Mutex
	nextID      int64
	tokens      map[int64]*models.AccessToken
	activity    *models.Activity
	participant *models.Participant
}

func newFakeAccessTokenRepo(activity *models.Activity, participant *models.Participant) *fakeAccessTokenRepo {
	return &fakeAccessTokenRepo{
		tokens:      make(map[int64]*models.AccessToken),
		activity:    activity,
		participant: participant,
	}
}

func (r *fakeAccessTokenRepo) Replace(_ context.Context, token *models.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.ActivityID == token.ActivityID && t.ParticipantID == token.ParticipantID && t.UsedAt == nil {
			delete(r.tokens, id)
		}
	}
	r.nextID++
	token.ID = r.nextID
	token.CreatedAt = time.Now()
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *fakeAccessTokenRepo) GetByValue(_ context.Context, value string) (*models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == value {
			cp := *t
			cp.Activity = r.activity
			cp.Participant = r.participant
			return &cp, nil
		}
	}
	return nil, apperrors.ErrTokenNotFound
}

func (r *fakeAccessTokenRepo) MarkUsed(_ context.Context, tokenID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return apperrors.ErrTokenNotFound
	}
	if t.UsedAt == nil {
		now := time.Now()
		t.UsedAt = &now
	}
	return nil
}

func (r *fakeAccessTokenRepo) unusedCount(activityID, participantID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.ActivityID == activityID && t.ParticipantID == participantID && t.UsedAt == nil {
			n++
		}
	}
	return n
}

func (r *fakeAccessTokenRepo) usedAt(tokenID int64) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return nil
	}
	return t.UsedAt
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	completed map[membershipKey]bool
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{completed: make(map[membershipKey]bool)}
}

func (r *fakeResponseRepo) HasCompletedResponse(_ context.Context, activityID, participantID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed[membershipKey{activityID, participantID}], nil
}

func (r *fakeResponseRepo) complete(activityID, participantID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed[membershipKey{activityID, participantID}] = true
}

func testParticipant(id int64) *models.Participant {
	return &models.Participant{
		ID:             id,
		OrganizationID: 1,
		Email:          "ada@example.com",
		Status:         models.ParticipantActive,
		Kind:           models.KindAuthenticated,
	}
}

func newTestTokenService(tr *fakeAccessTokenRepo, rr *fakeResponseRepo) *AccessTokenService {
	return NewAccessTokenService(tr, rr, zerolog.Nop())
}

func TestIssue_SingleActiveTokenPerPair(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	var last *models.AccessToken
	for i := 0; i < 5; i++ {
		tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
		require.NoError(t, err)
		last = tok
	}

	assert.Equal(t, 1, tr.unusedCount(10, 7), "re-issuing must leave one active token")

	// Only the latest value still resolves.
	decision, err := svc.Validate(context.Background(), last.Token)
	require.NoError(t, err)
	assert.True(t, decision.Valid)
}

func TestIssue_ReissueInvalidatesPriorToken(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	first, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)

	decision, err := svc.Validate(context.Background(), first.Token)
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, ReasonTokenNotFound, decision.Reason)
}

func TestIssue_NegativeTTLRejected(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	_, err := svc.Issue(context.Background(), 10, 7, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTTL)
}

func TestIssueNonExpiring_TokenHasNoDeadline(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	tok, err := svc.IssueNonExpiring(context.Background(), 10, 7)
	require.NoError(t, err)
	assert.Nil(t, tok.ExpiresAt)

	decision, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.True(t, decision.Valid)
}

func TestValidate_UnknownToken(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	decision, err := svc.Validate(context.Background(), "no-such-token")
	require.NoError(t, err, "an unknown token is an expected outcome, not an error")
	assert.False(t, decision.Valid)
	assert.Equal(t, ReasonTokenNotFound, decision.Reason)
}

func TestValidate_ExpiredToken(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	// A deadline of "now" is already in the past by the time the token is
	// presented.
	deadline := time.Now()
	tok := &models.AccessToken{ActivityID: 10, ParticipantID: 7, Token: "expiring-token", ExpiresAt: &deadline}
	require.NoError(t, tr.Replace(context.Background(), tok))

	decision, err := svc.Validate(context.Background(), "expiring-token")
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, ReasonExpired, decision.Reason)
	assert.False(t, decision.AlreadyCompleted)
}

func TestValidate_ActivityNotLive(t *testing.T) {
	paused := liveActivity(10, 5, 1)
	paused.Status = models.ActivityPaused
	tr := newFakeAccessTokenRepo(paused, testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)

	decision, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, ReasonActivityNotLive, decision.Reason)
}

func TestValidate_UsedTokenStillValidUntilCompleted(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	rr := newFakeResponseRepo()
	svc := newTestTokenService(tr, rr)

	tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(context.Background(), tok.ID))

	// Used but no completed response: resuming in progress is allowed.
	decision, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.True(t, decision.Valid)

	// A completed response locks the pair out.
	rr.complete(10, 7)
	decision, err = svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, ReasonAlreadyCompleted, decision.Reason)
	assert.True(t, decision.AlreadyCompleted)
}

func TestValidate_DecisionCarriesContext(t *testing.T) {
	activity := liveActivity(10, 5, 1)
	participant := testParticipant(7)
	tr := newFakeAccessTokenRepo(activity, participant)
	svc := newTestTokenService(tr, newFakeResponseRepo())

	tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)

	decision, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	require.True(t, decision.Valid)
	assert.Equal(t, tok.ID, decision.TokenID)
	assert.Equal(t, activity.ID, decision.Activity.ID)
	assert.Equal(t, participant.ID, decision.Participant.ID)
}

func TestMarkUsed_Idempotent(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)

	require.NoError(t, svc.MarkUsed(context.Background(), tok.ID))
	first := tr.usedAt(tok.ID)
	require.NotNil(t, first)

	require.NoError(t, svc.MarkUsed(context.Background(), tok.ID))
	assert.Equal(t, first, tr.usedAt(tok.ID), "second call must not overwrite the timestamp")
}

func TestMarkUsed_UnknownToken(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	svc := newTestTokenService(tr, newFakeResponseRepo())

	err := svc.MarkUsed(context.Background(), 9999)
	assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
}

func TestAccessLifecycle_SubmitThenLockout(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	rr := newFakeResponseRepo()
	svc := newTestTokenService(tr, rr)

	tok, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)

	decision, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	require.True(t, decision.Valid)

	require.NoError(t, svc.MarkUsed(context.Background(), decision.TokenID))
	rr.complete(10, 7)

	decision, err = svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.True(t, decision.AlreadyCompleted)
}

func TestAccessLifecycle_ReissueAfterUseStartsFresh(t *testing.T) {
	tr := newFakeAccessTokenRepo(liveActivity(10, 5, 1), testParticipant(7))
	rr := newFakeResponseRepo()
	svc := newTestTokenService(tr, rr)

	old, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(context.Background(), old.ID))

	// Re-issue replaces only unused tokens; the used one stays as history.
	fresh, err := svc.Issue(context.Background(), 10, 7, DefaultTokenTTLDays)
	require.NoError(t, err)
	assert.NotEqual(t, old.Token, fresh.Token)
	assert.Equal(t, 1, tr.unusedCount(10, 7))

	decision, err := svc.Validate(context.Background(), fresh.Token)
	require.NoError(t, err)
	assert.True(t, decision.Valid)
}
