package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
	"github.com/maheshrc27/xpilot/pkg/xapi"
)

const testKey = "0123456789abcdef0123456789abcdef"

func init() {
	logger.Get().SetOutput(io.Discard)
}

func testConfig() *config.Config {
	return &config.Config{
		XTokenURL:                xapi.DefaultTokenURL,
		HTTPTimeout:              5 * time.Second,
		RefreshWindow:            time.Hour,
		JobConcurrency:           5,
		LoopLockTTL:              time.Minute,
		PostSweepPageSize:        50,
		PostMaxAttempts:          3,
		PostConcurrency:          2,
		DuplicateWindow:          24 * time.Hour,
		CTAPageSize:              10,
		UnfollowBatchSize:        200,
		UnfollowSummaryThreshold: 50,
	}
}

func testCipher() *utils.Cipher {
	c, err := utils.NewCipher(testKey)
	if err != nil {
		panic(err)
	}
	return c
}

func seal(s string) string {
	out, err := testCipher().Seal(s)
	if err != nil {
		panic(err)
	}
	return out
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// ----------------------------------------------------------------------------
// tokens and app credentials
// ----------------------------------------------------------------------------

type fakeTokenRepo struct {
	mu        sync.Mutex
	tokens    map[string]*models.AccountToken
	errors    map[string]string
	refreshed map[string]int
}

func newFakeTokenRepo(toks ...*models.AccountToken) *fakeTokenRepo {
	r := &fakeTokenRepo{
		tokens:    map[string]*models.AccountToken{},
		errors:    map[string]string{},
		refreshed: map[string]int{},
	}
	for _, t := range toks {
		r.tokens[t.ID] = t
	}
	return r
}

func (r *fakeTokenRepo) copyOf(id string) *models.AccountToken {
	t, ok := r.tokens[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (r *fakeTokenRepo) GetByID(_ context.Context, id string) (*models.AccountToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyOf(id), nil
}

func (r *fakeTokenRepo) ListByIDs(_ context.Context, ids []string) ([]*models.AccountToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AccountToken
	for _, id := range ids {
		if t := r.copyOf(id); t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) ListExpiring(_ context.Context, before time.Time) ([]*models.AccountToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AccountToken
	for id, t := range r.tokens {
		if t.IsActive && t.TokenKind == models.TokenKindOAuth2 && t.ExpiresAt != nil && t.ExpiresAt.Before(before) {
			out = append(out, r.copyOf(id))
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) ListExpired(_ context.Context, now time.Time) ([]*models.AccountToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AccountToken
	for id, t := range r.tokens {
		if t.TokenKind == models.TokenKindOAuth2 && !t.IsSuspended && t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			out = append(out, r.copyOf(id))
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) SetRefreshed(_ context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return repository.ErrNoRowsAffected
	}
	t.AccessToken = accessToken
	if refreshToken != "" {
		t.RefreshToken = refreshToken
	}
	t.ExpiresAt = &expiresAt
	t.IsActive = true
	t.LastError = ""
	t.RefreshCount++
	r.refreshed[id]++
	return nil
}

func (r *fakeTokenRepo) MarkRefreshFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok {
		t.IsActive = false
		t.LastError = reason
	}
	return nil
}

func (r *fakeTokenRepo) RecordError(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[id] = reason
	if t, ok := r.tokens[id]; ok {
		t.LastError = reason
	}
	return nil
}

func (r *fakeTokenRepo) MarkSuspended(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok {
		t.IsSuspended = true
		t.SuspendedReason = reason
	}
	return nil
}

type fakeAppRepo struct {
	apps map[string]*models.AppCredential
}

func (r *fakeAppRepo) GetByID(_ context.Context, id string) (*models.AppCredential, error) {
	return r.apps[id], nil
}

// ----------------------------------------------------------------------------
// notifications
// ----------------------------------------------------------------------------

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) byUser(userID string) []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*models.Notification
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// X API
// ----------------------------------------------------------------------------

type fakeXClient struct {
	mu       sync.Mutex
	me       func() (*xapi.User, error)
	users    map[string]*xapi.User
	timeline []xapi.Tweet
	create   func(text, inReplyTo string) (*xapi.Tweet, error)
	unfollow func(source, target string) error

	created   []xapi.CreateTweetRequest
	sinceIDs  []string
	unfollows []string
}

func (c *fakeXClient) Me(context.Context) (*xapi.User, error) {
	if c.me == nil {
		return &xapi.User{ID: "me"}, nil
	}
	return c.me()
}

func (c *fakeXClient) UserByUsername(_ context.Context, username string) (*xapi.User, error) {
	if u, ok := c.users[username]; ok {
		return u, nil
	}
	return nil, &xapi.APIError{StatusCode: 404, Title: "Not Found"}
}

func (c *fakeXClient) UserTweets(_ context.Context, _, sinceID string, _ int) ([]xapi.Tweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinceIDs = append(c.sinceIDs, sinceID)
	var out []xapi.Tweet
	for _, t := range c.timeline {
		if sinceID == "" || compareTweetIDs(t.ID, sinceID) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *fakeXClient) CreateTweet(_ context.Context, text, inReplyTo string) (*xapi.Tweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := xapi.CreateTweetRequest{Text: text}
	if inReplyTo != "" {
		req.Reply = &xapi.ReplyParam{InReplyToTweetID: inReplyTo}
	}
	c.created = append(c.created, req)
	if c.create != nil {
		return c.create(text, inReplyTo)
	}
	return &xapi.Tweet{ID: fmt.Sprintf("t-%d", len(c.created)), Text: text}, nil
}

func (c *fakeXClient) Unfollow(_ context.Context, source, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unfollows = append(c.unfollows, source+"->"+target)
	if c.unfollow != nil {
		return c.unfollow(source, target)
	}
	return nil
}

func (c *fakeXClient) createdCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created)
}

type fakeProvider struct {
	client *fakeXClient
	err    error
}

func (p *fakeProvider) ClientFor(context.Context, *models.AccountToken) (XClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

// fakeTokens stands in for TokenService where only EnsureUsable matters.
type fakeTokens struct {
	TokenService
	accounts map[string]*models.AccountToken
	errs     map[string]error
	ensured  atomic.Int32
}

func (f *fakeTokens) ensureCalls() int { return int(f.ensured.Load()) }

func (f *fakeTokens) EnsureUsable(_ context.Context, accountID string) (*models.AccountToken, error) {
	f.ensured.Add(1)
	if err, ok := f.errs[accountID]; ok {
		return nil, err
	}
	if t, ok := f.accounts[accountID]; ok {
		return t, nil
	}
	return nil, ErrAccountNotFound
}

// ----------------------------------------------------------------------------
// posts and duplicates
// ----------------------------------------------------------------------------

type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[string]*models.Post
	seq    int
	now    func() time.Time
	failOn string
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: map[string]*models.Post{}, now: time.Now}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) get(id string) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *r.posts[id]
	return &p
}

func (r *fakePostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *fakePostRepo) Create(_ context.Context, post *models.Post) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c := *post
	c.ID = fmt.Sprintf("post-%d", r.seq)
	c.UpdatedAt = r.now()
	r.posts[c.ID] = &c
	return c.ID, nil
}

func (r *fakePostRepo) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		retryable := p.Status == models.PostStatusFailed && p.FailureKind == models.FailureKindPlatform && p.Attempts < maxAttempts
		if !p.ScheduledAt.After(now) && (p.Status == models.PostStatusScheduled || retryable) && len(out) < limit {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDueByLoop(_ context.Context, loopID string, now time.Time, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.LoopID != nil && *p.LoopID == loopID && p.Status == models.PostStatusScheduled && !p.ScheduledAt.After(now) && len(out) < limit {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakePostRepo) MarkProcessing(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || (p.Status != models.PostStatusScheduled && p.Status != models.PostStatusFailed) {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	p.Attempts++
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *fakePostRepo) MarkPosted(_ context.Context, id, platformPostID, contentHash string, postedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "posted" {
		return fmt.Errorf("connection reset")
	}
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusProcessing {
		return repository.ErrNoRowsAffected
	}
	p.Status = models.PostStatusPosted
	p.PlatformPostID = platformPostID
	p.ContentHash = contentHash
	p.PostedAt = &postedAt
	p.FailureKind = ""
	p.ErrorMessage = ""
	return nil
}

func (r *fakePostRepo) MarkFailed(_ context.Context, id, failureKind, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok && p.Status != models.PostStatusPosted {
		p.Status = models.PostStatusFailed
		p.FailureKind = failureKind
		p.ErrorMessage = reason
	}
	return nil
}

func (r *fakePostRepo) HasRecentFingerprint(_ context.Context, userID, contentHash, excludePostID string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == excludePostID || p.UserID != userID || p.ContentHash != contentHash {
			continue
		}
		if p.Status == models.PostStatusPosted && p.PostedAt != nil && !p.PostedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type fakeDuplicateRepo struct {
	mu       sync.Mutex
	attempts []*models.DuplicateAttempt
}

func (r *fakeDuplicateRepo) Create(_ context.Context, a *models.DuplicateAttempt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = fmt.Sprintf("dup-%d", len(r.attempts)+1)
	r.attempts = append(r.attempts, a)
	return a.ID, nil
}

func (r *fakeDuplicateRepo) ListRecent(_ context.Context, userID string, _ time.Time) ([]*models.DuplicateAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DuplicateAttempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// loops and locks
// ----------------------------------------------------------------------------

type fakeLoopRepo struct {
	mu        sync.Mutex
	loops     map[string]*models.Loop
	templates map[string][]*models.TemplateItem
	accounts  map[string][]string
	cursors   []string
	runs      map[string]time.Time
	cursorErr error
}

func newFakeLoopRepo(loops ...*models.Loop) *fakeLoopRepo {
	r := &fakeLoopRepo{
		loops:     map[string]*models.Loop{},
		templates: map[string][]*models.TemplateItem{},
		accounts:  map[string][]string{},
		runs:      map[string]time.Time{},
	}
	for _, l := range loops {
		r.loops[l.ID] = l
	}
	return r
}

func (r *fakeLoopRepo) GetByID(_ context.Context, id string) (*models.Loop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loops[id]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

func (r *fakeLoopRepo) ListDue(_ context.Context, loopTypes []string, now time.Time) ([]*models.Loop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Loop
	for _, l := range r.loops {
		for _, t := range loopTypes {
			if l.LoopType == t && l.IsActive && (l.NextRunAt == nil || !l.NextRunAt.After(now)) {
				c := *l
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

func (r *fakeLoopRepo) ListTemplates(_ context.Context, loopID string) ([]*models.TemplateItem, error) {
	return r.templates[loopID], nil
}

func (r *fakeLoopRepo) ListAccountIDs(_ context.Context, loopID string) ([]string, error) {
	return r.accounts[loopID], nil
}

func (r *fakeLoopRepo) UpdateCursor(_ context.Context, loopID, tweetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursorErr != nil {
		return r.cursorErr
	}
	r.cursors = append(r.cursors, tweetID)
	if l, ok := r.loops[loopID]; ok {
		l.LastProcessedTweetID = tweetID
	}
	return nil
}

func (r *fakeLoopRepo) MarkRun(_ context.Context, loopID string, ranAt, nextRunAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[loopID] = nextRunAt
	if l, ok := r.loops[loopID]; ok {
		l.LastRunAt = &ranAt
		l.NextRunAt = &nextRunAt
	}
	return nil
}

// fakeLockRepo mirrors the conditional upsert: a row can be taken over only once expired.
type fakeLockRepo struct {
	mu    sync.Mutex
	locks map[string]*models.LoopLock
	now   func() time.Time
}

func newFakeLockRepo(now func() time.Time) *fakeLockRepo {
	return &fakeLockRepo{locks: map[string]*models.LoopLock{}, now: now}
}

func (r *fakeLockRepo) TryAcquire(_ context.Context, loopID, holderID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if l, ok := r.locks[loopID]; ok && l.LockedUntil.After(now) {
		return false, nil
	}
	r.locks[loopID] = &models.LoopLock{LoopID: loopID, HolderID: holderID, AcquiredAt: now, LockedUntil: now.Add(ttl)}
	return true, nil
}

func (r *fakeLockRepo) Release(_ context.Context, loopID, holderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locks[loopID]; ok && l.HolderID == holderID {
		delete(r.locks, loopID)
	}
	return nil
}

func (r *fakeLockRepo) ListActive(context.Context) ([]*models.LoopLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LoopLock
	for _, l := range r.locks {
		if l.LockedUntil.After(r.now()) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLockRepo) held(loopID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locks[loopID]
	return ok
}

// ----------------------------------------------------------------------------
// follows and rate limits
// ----------------------------------------------------------------------------

type fakeFollowRepo struct {
	mu         sync.Mutex
	records    []*models.FollowRecord
	unfollowed map[string]bool
	disabled   map[string]bool
}

func newFakeFollowRepo(records ...*models.FollowRecord) *fakeFollowRepo {
	return &fakeFollowRepo{records: records, unfollowed: map[string]bool{}, disabled: map[string]bool{}}
}

func (r *fakeFollowRepo) ListDueUnfollows(_ context.Context, now time.Time, limit int) ([]*models.FollowRecord, error) {
	var out []*models.FollowRecord
	for _, f := range r.records {
		if f.Status == models.FollowStatusFollowing && f.AutoUnfollow && f.ScheduledUnfollowAt != nil &&
			!f.ScheduledUnfollowAt.After(now) && len(out) < limit {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFollowRepo) MarkUnfollowed(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unfollowed[id] = true
	return nil
}

func (r *fakeFollowRepo) DisableAutoUnfollow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[id] = true
	return nil
}

type fakeRateLimitRepo struct {
	mu      sync.Mutex
	records map[string]*models.RateLimitRecord
}

func (r *fakeRateLimitRepo) Upsert(_ context.Context, rec *models.RateLimitRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string]*models.RateLimitRecord{}
	}
	r.records[rec.Endpoint+"|"+rec.TokenScope] = rec
	return nil
}

func (r *fakeRateLimitRepo) List(context.Context) ([]*models.RateLimitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RateLimitRecord
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}
