package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ExecuteResult struct {
	PostID         string `json:"post_id"`
	AccountID      string `json:"account_id"`
	Status         string `json:"status"`
	PlatformPostID string `json:"platform_post_id,omitempty"`
	FailureKind    string `json:"failure_kind,omitempty"`
	Error          string `json:"error,omitempty"`
}

type SweepSummary struct {
	Total   int              `json:"total"`
	Posted  int              `json:"posted"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Results []*ExecuteResult `json:"results"`
}

// PostExecutor publishes scheduled posts exactly once. A failed attempt is recorded on
// the post and left for the next sweep.
type PostExecutor interface {
	Execute(ctx context.Context, postID string) (*ExecuteResult, error)
	SweepDue(ctx context.Context) (*SweepSummary, error)
}

type postService struct {
	cfg     *config.Config
	posts   repository.PostRepository
	tokens  TokenService
	clients XClientProvider
	guard   DuplicateGuard
	notify  NotificationSink
	now     func() time.Time
}

func NewPostService(
	cfg *config.Config,
	posts repository.PostRepository,
	tokens TokenService,
	clients XClientProvider,
	guard DuplicateGuard,
	notify NotificationSink) PostExecutor {
	return &postService{
		cfg:     cfg,
		posts:   posts,
		tokens:  tokens,
		clients: clients,
		guard:   guard,
		notify:  notify,
		now:     time.Now,
	}
}

// Execute returns an error only when the post could not be claimed or its final state
// could not be written. Publishing failures are reported in the result.
func (s *postService) Execute(ctx context.Context, postID string) (*ExecuteResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	switch post.Status {
	case models.PostStatusPosted:
		return nil, ErrAlreadyPosted
	case models.PostStatusProcessing:
		return nil, ErrPostInFlight
	}

	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"post_id":    post.ID,
		"account_id": post.AccountID,
	})
	res := &ExecuteResult{PostID: post.ID, AccountID: post.AccountID}

	if strings.TrimSpace(post.Content) == "" {
		return s.fail(ctx, res, models.FailureKindValidation, ErrEmptyContent.Error())
	}

	// claim before touching the network so a second trigger cannot publish again
	claimed, err := s.posts.MarkProcessing(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrPostInFlight
	}

	verdict, err := s.guard.Check(ctx, post)
	if err != nil {
		return s.fail(ctx, res, models.FailureKindPlatform, err.Error())
	}
	if verdict.Duplicate {
		return s.fail(ctx, res, models.FailureKindDuplicate, fmt.Sprintf("%s: %s", ErrDuplicateContent, verdict.Message))
	}

	tok, err := s.tokens.EnsureUsable(ctx, post.AccountID)
	if err != nil {
		return s.fail(ctx, res, models.FailureKindCredential, fmt.Sprintf("%s, reconnect account", err))
	}

	client, err := s.clients.ClientFor(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrNoAppCredential) {
			return s.fail(ctx, res, models.FailureKindCredential, err.Error())
		}
		return s.fail(ctx, res, models.FailureKindPlatform, err.Error())
	}

	tweet, err := client.CreateTweet(ctx, post.Content, post.InReplyToID)
	if err != nil {
		return s.fail(ctx, res, models.FailureKindPlatform, err.Error())
	}

	if err := s.posts.MarkPosted(ctx, post.ID, tweet.ID, verdict.Hash, s.now()); err != nil {
		// published but unrecorded; leaving it in processing keeps it out of every sweep
		log.WithError(err).WithField("platform_post_id", tweet.ID).Error("post published but status write failed")
		return nil, err
	}

	res.Status = models.PostStatusPosted
	res.PlatformPostID = tweet.ID
	telemetry.PostsExecutedTotal.WithLabelValues(models.PostStatusPosted, "").Inc()
	log.WithField("platform_post_id", tweet.ID).Info("post published")
	return res, nil
}

func (s *postService) fail(ctx context.Context, res *ExecuteResult, kind, reason string) (*ExecuteResult, error) {
	if err := s.posts.MarkFailed(ctx, res.PostID, kind, reason); err != nil {
		return nil, err
	}
	res.Status = models.PostStatusFailed
	res.FailureKind = kind
	res.Error = reason
	telemetry.PostsExecutedTotal.WithLabelValues(models.PostStatusFailed, kind).Inc()
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"post_id":      res.PostID,
		"failure_kind": kind,
	}).Warn(reason)
	return res, nil
}

func (s *postService) SweepDue(ctx context.Context) (*SweepSummary, error) {
	due, err := s.posts.ListDue(ctx, s.now(), s.cfg.PostMaxAttempts, s.cfg.PostSweepPageSize)
	if err != nil {
		return nil, err
	}

	results := make([]*ExecuteResult, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.PostConcurrency, 1))
	for i, post := range due {
		g.Go(func() error {
			res, err := s.Execute(gctx, post.ID)
			if err != nil {
				res = &ExecuteResult{PostID: post.ID, AccountID: post.AccountID, Status: StatusSkipped, Error: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	summary := &SweepSummary{Total: len(results), Results: results}
	var failed []*ExecuteResult
	for _, r := range results {
		switch r.Status {
		case models.PostStatusPosted:
			summary.Posted++
		case models.PostStatusFailed:
			summary.Failed++
			failed = append(failed, r)
		default:
			summary.Skipped++
		}
	}

	owners := make(map[string]string, len(due))
	for _, p := range due {
		owners[p.ID] = p.UserID
	}
	byUser, order := groupByUser(failed, func(r *ExecuteResult) string { return owners[r.PostID] })
	for _, userID := range order {
		group := byUser[userID]
		ids := make([]string, 0, len(group))
		for _, r := range group {
			ids = append(ids, r.PostID)
		}
		_ = s.notify.Notify(ctx, &models.Notification{
			UserID:   userID,
			Title:    "Scheduled posts failed",
			Message:  fmt.Sprintf("%d scheduled post(s) could not be published. First error: %s", len(group), group[0].Error),
			Type:     models.NotificationError,
			Priority: models.PriorityMedium,
			Category: models.CategoryPost,
			Metadata: map[string]any{"post_ids": ids, "trace_id": logger.TraceID(ctx)},
		})
	}
	return summary, nil
}
