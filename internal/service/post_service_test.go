package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/xapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postFixture struct {
	svc      PostExecutor
	posts    *fakePostRepo
	dups     *fakeDuplicateRepo
	client   *fakeXClient
	tokens   *fakeTokens
	notifier *fakeNotifier
}

func newPostFixture(posts ...*models.Post) *postFixture {
	cfg := testConfig()
	repo := newFakePostRepo(posts...)
	dups := &fakeDuplicateRepo{}
	client := &fakeXClient{}
	tokens := &fakeTokens{
		accounts: map[string]*models.AccountToken{
			"acc-1": {ID: "acc-1", UserID: "u1", IsActive: true},
			"acc-2": {ID: "acc-2", UserID: "u2", IsActive: true},
		},
		errs: map[string]error{},
	}
	notifier := &fakeNotifier{}
	guard := NewDuplicateService(cfg, repo, dups)
	svc := NewPostService(cfg, repo, tokens, &fakeProvider{client: client}, guard, notifier)
	return &postFixture{svc: svc, posts: repo, dups: dups, client: client, tokens: tokens, notifier: notifier}
}

func scheduledPost(id, userID, accountID, content string) *models.Post {
	return &models.Post{
		ID:          id,
		UserID:      userID,
		AccountID:   accountID,
		Content:     content,
		Status:      models.PostStatusScheduled,
		ScheduledAt: time.Now().Add(-time.Minute),
	}
}

// ----------------------------------------------------------------------------
// Execute
// ----------------------------------------------------------------------------

func TestExecute_Posts(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-1", "hello world"))

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, res.Status)
	assert.Equal(t, "t-1", res.PlatformPostID)

	stored := f.posts.get("p1")
	assert.Equal(t, models.PostStatusPosted, stored.Status)
	assert.Equal(t, "t-1", stored.PlatformPostID)
	assert.Equal(t, Fingerprint("hello world"), stored.ContentHash)
	assert.NotNil(t, stored.PostedAt)
	assert.Equal(t, 1, stored.Attempts)
}

func TestExecute_SecondCallIsRejected(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-1", "hello"))

	_, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)

	_, err = f.svc.Execute(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrAlreadyPosted)
	assert.Equal(t, 1, f.client.createdCount())
}

func TestExecute_ProcessingIsRejected(t *testing.T) {
	p := scheduledPost("p1", "u1", "acc-1", "hello")
	p.Status = models.PostStatusProcessing
	f := newPostFixture(p)

	_, err := f.svc.Execute(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrPostInFlight)
	assert.Zero(t, f.client.createdCount())
}

func TestExecute_NotFound(t *testing.T) {
	f := newPostFixture()
	_, err := f.svc.Execute(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestExecute_EmptyContent(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-1", "   "))

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.FailureKindValidation, res.FailureKind)
	assert.Zero(t, f.client.createdCount())
}

func TestExecute_MissingAccount(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-9", "hello"))

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, res.Status)
	assert.Equal(t, models.FailureKindCredential, res.FailureKind)
	assert.Contains(t, res.Error, "reconnect account")
	assert.Zero(t, f.client.createdCount())
}

func TestExecute_PlatformErrorIsVerbatim(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-1", "hello"))
	f.client.create = func(string, string) (*xapi.Tweet, error) {
		return nil, &xapi.APIError{StatusCode: http.StatusForbidden, Detail: "You are not allowed to create a Tweet with duplicate content."}
	}

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.FailureKindPlatform, res.FailureKind)

	stored := f.posts.get("p1")
	assert.Equal(t, models.PostStatusFailed, stored.Status)
	assert.Equal(t, "x api error: status=403 You are not allowed to create a Tweet with duplicate content.", stored.ErrorMessage)
}

func TestExecute_StatusWriteFailureLeavesProcessing(t *testing.T) {
	f := newPostFixture(scheduledPost("p1", "u1", "acc-1", "hello"))
	f.posts.failOn = "posted"

	_, err := f.svc.Execute(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, models.PostStatusProcessing, f.posts.get("p1").Status)

	// a retrigger must not publish again
	_, err = f.svc.Execute(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrPostInFlight)
	assert.Equal(t, 1, f.client.createdCount())
}

// ----------------------------------------------------------------------------
// duplicates
// ----------------------------------------------------------------------------

func TestExecute_DuplicateIsPerUser(t *testing.T) {
	f := newPostFixture(
		scheduledPost("p1", "u1", "acc-1", "Same text"),
		scheduledPost("p2", "u1", "acc-1", "  same   TEXT "),
		scheduledPost("p3", "u2", "acc-2", "Same text"),
	)
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPosted, res.Status)

	res, err = f.svc.Execute(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, res.Status)
	assert.Equal(t, models.FailureKindDuplicate, res.FailureKind)

	res, err = f.svc.Execute(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, res.Status)

	require.Len(t, f.dups.attempts, 1)
	attempt := f.dups.attempts[0]
	assert.Equal(t, "u1", attempt.UserID)
	assert.Equal(t, Fingerprint("same text"), attempt.ContentHash)
	assert.Equal(t, "p2", *attempt.PostID)
	assert.Equal(t, 2, f.client.createdCount())
}

func TestFingerprint_Normalizes(t *testing.T) {
	assert.Equal(t, Fingerprint("Hello   World"), Fingerprint(" hello world\n"))
	assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("hello world!"))
	assert.Len(t, Fingerprint("x"), 64)
}

func TestDuplicateGuard_OutsideWindow(t *testing.T) {
	old := scheduledPost("p0", "u1", "acc-1", "again")
	old.Status = models.PostStatusPosted
	old.ContentHash = Fingerprint("again")
	old.PostedAt = timePtr(time.Now().Add(-25 * time.Hour))

	f := newPostFixture(old, scheduledPost("p1", "u1", "acc-1", "again"))

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, res.Status)
	assert.Empty(t, f.dups.attempts)
}

func TestExecute_InFlightTwinIsNotDuplicate(t *testing.T) {
	twin := scheduledPost("p0", "u1", "acc-1", "loop text")
	twin.Status = models.PostStatusProcessing
	twin.ContentHash = Fingerprint("loop text")

	retry := scheduledPost("p1", "u1", "acc-1", "loop text")
	retry.Status = models.PostStatusFailed
	retry.FailureKind = models.FailureKindPlatform
	retry.ContentHash = Fingerprint("loop text")

	f := newPostFixture(twin, retry)

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, res.Status)
	assert.Empty(t, f.dups.attempts)
}

func TestExecute_DuplicateCheckedBeforeCredentials(t *testing.T) {
	posted := scheduledPost("p0", "u1", "acc-1", "seen")
	posted.Status = models.PostStatusPosted
	posted.ContentHash = Fingerprint("seen")
	posted.PostedAt = timePtr(time.Now().Add(-time.Hour))

	f := newPostFixture(posted, scheduledPost("p1", "u1", "acc-9", "seen"))

	res, err := f.svc.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.FailureKindDuplicate, res.FailureKind)
	assert.Zero(t, f.tokens.ensureCalls())
}

// ----------------------------------------------------------------------------
// SweepDue
// ----------------------------------------------------------------------------

func TestSweepDue(t *testing.T) {
	future := scheduledPost("later", "u1", "acc-1", "not yet")
	future.ScheduledAt = time.Now().Add(time.Hour)

	retry := scheduledPost("retry", "u1", "acc-1", "retry me")
	retry.Status = models.PostStatusFailed
	retry.FailureKind = models.FailureKindPlatform
	retry.Attempts = 1

	exhausted := scheduledPost("exhausted", "u1", "acc-1", "give up")
	exhausted.Status = models.PostStatusFailed
	exhausted.FailureKind = models.FailureKindPlatform
	exhausted.Attempts = 3

	f := newPostFixture(
		scheduledPost("ok", "u1", "acc-1", "first"),
		scheduledPost("bad", "u1", "acc-1", "second"),
		scheduledPost("bad2", "u1", "acc-1", "third"),
		retry, future, exhausted,
	)
	f.client.create = func(text, _ string) (*xapi.Tweet, error) {
		if text == "second" || text == "third" {
			return nil, errors.New("boom")
		}
		return &xapi.Tweet{ID: "id-" + text}, nil
	}

	summary, err := f.svc.SweepDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Posted)
	assert.Equal(t, 2, summary.Failed)

	assert.Equal(t, models.PostStatusScheduled, f.posts.get("later").Status)
	assert.Equal(t, 2, f.posts.get("retry").Attempts)

	sent := f.notifier.byUser("u1")
	require.Len(t, sent, 1)
	assert.Equal(t, models.CategoryPost, sent[0].Category)
	assert.Equal(t, models.PriorityMedium, sent[0].Priority)
}
