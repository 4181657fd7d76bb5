package service

import (
	"context"
	"fmt"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/xapi"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	UnfollowDone   = "unfollowed"
	UnfollowFailed = "failed"
)

type UnfollowResult struct {
	FollowID       string `json:"follow_id"`
	UserID         string `json:"user_id"`
	AccountID      string `json:"account_id"`
	TargetUsername string `json:"target_username"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
}

type UnfollowSummary struct {
	Total      int               `json:"total"`
	Unfollowed int               `json:"unfollowed"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Results    []*UnfollowResult `json:"results"`
}

// UnfollowScheduler executes due auto-unfollows, one account at a time.
type UnfollowScheduler interface {
	Run(ctx context.Context) (*UnfollowSummary, error)
}

type unfollowService struct {
	cfg     *config.Config
	follows repository.FollowRepository
	tokens  TokenService
	clients XClientProvider
	notify  NotificationSink
	now     func() time.Time
}

func NewUnfollowService(
	cfg *config.Config,
	follows repository.FollowRepository,
	tokens TokenService,
	clients XClientProvider,
	notify NotificationSink) UnfollowScheduler {
	return &unfollowService{
		cfg:     cfg,
		follows: follows,
		tokens:  tokens,
		clients: clients,
		notify:  notify,
		now:     time.Now,
	}
}

func (s *unfollowService) Run(ctx context.Context) (*UnfollowSummary, error) {
	due, err := s.follows.ListDueUnfollows(ctx, s.now(), s.cfg.UnfollowBatchSize)
	if err != nil {
		return nil, err
	}

	summary := &UnfollowSummary{Total: len(due)}
	byAccount, order := groupByUser(due, func(f *models.FollowRecord) string { return f.AccountID })

	accountPacer := rate.NewLimiter(rate.Every(s.cfg.UnfollowAccountDelay), 1)
	var runErr error
	for _, accountID := range order {
		if runErr = accountPacer.Wait(ctx); runErr != nil {
			break
		}
		if runErr = s.runAccount(ctx, byAccount[accountID], summary); runErr != nil {
			break
		}
	}

	for _, r := range summary.Results {
		switch r.Outcome {
		case UnfollowDone:
			summary.Unfollowed++
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	s.notifyUsers(context.WithoutCancel(ctx), summary.Results)
	return summary, runErr
}

// runAccount only returns an error when ctx ends; per-record failures land in the summary.
func (s *unfollowService) runAccount(ctx context.Context, records []*models.FollowRecord, summary *UnfollowSummary) error {
	accountID := records[0].AccountID
	log := logger.FromContext(ctx).WithField("account_id", accountID)

	skipAll := func(reason string) {
		log.WithField("reason", reason).Warn("skipping unfollows for account")
		for _, rec := range records {
			summary.Results = append(summary.Results, newUnfollowResult(rec, StatusSkipped, reason))
			telemetry.UnfollowsTotal.WithLabelValues(StatusSkipped).Inc()
		}
	}

	tok, err := s.tokens.EnsureUsable(ctx, accountID)
	if err != nil {
		skipAll(err.Error())
		return nil
	}
	client, err := s.clients.ClientFor(ctx, tok)
	if err != nil {
		skipAll(err.Error())
		return nil
	}

	pacer := rate.NewLimiter(rate.Every(s.cfg.UnfollowDelay), 1)
	for _, rec := range records {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}

		res := s.unfollowOne(ctx, client, tok, rec)
		telemetry.UnfollowsTotal.WithLabelValues(res.Outcome).Inc()
		if res.Outcome != UnfollowDone {
			log.WithFields(logrus.Fields{
				"follow_id": rec.ID,
				"outcome":   res.Outcome,
			}).Warn(res.Error)
		}
		summary.Results = append(summary.Results, res)
	}
	return nil
}

func (s *unfollowService) unfollowOne(ctx context.Context, client XClient, tok *models.AccountToken, rec *models.FollowRecord) *UnfollowResult {
	if err := client.Unfollow(ctx, tok.PlatformUserID, rec.TargetUserID); err != nil {
		if xapi.IsForbidden(err) {
			// not following anymore or the target is gone; stop scheduling it
			if dErr := s.follows.DisableAutoUnfollow(ctx, rec.ID); dErr != nil {
				logger.FromContext(ctx).WithError(dErr).WithField("follow_id", rec.ID).Warn("failed to disable auto unfollow")
			}
			return newUnfollowResult(rec, StatusSkipped, err.Error())
		}
		return newUnfollowResult(rec, UnfollowFailed, err.Error())
	}

	if err := s.follows.MarkUnfollowed(ctx, rec.ID, s.now()); err != nil {
		return newUnfollowResult(rec, UnfollowFailed, fmt.Sprintf("unfollowed but not recorded: %s", err))
	}
	return newUnfollowResult(rec, UnfollowDone, "")
}

func newUnfollowResult(rec *models.FollowRecord, outcome, reason string) *UnfollowResult {
	return &UnfollowResult{
		FollowID:       rec.ID,
		UserID:         rec.UserID,
		AccountID:      rec.AccountID,
		TargetUsername: rec.TargetUsername,
		Outcome:        outcome,
		Error:          reason,
	}
}

// notifyUsers sends at most one failure notification per user, plus one summary when a
// user's successful unfollows reach the threshold.
func (s *unfollowService) notifyUsers(ctx context.Context, results []*UnfollowResult) {
	byUser, order := groupByUser(results, func(r *UnfollowResult) string { return r.UserID })
	for _, userID := range order {
		var done, failed int
		var firstErr string
		for _, r := range byUser[userID] {
			switch r.Outcome {
			case UnfollowDone:
				done++
			case UnfollowFailed:
				failed++
				if firstErr == "" {
					firstErr = r.Error
				}
			}
		}

		if failed > 0 {
			_ = s.notify.Notify(ctx, &models.Notification{
				UserID:   userID,
				Title:    "Scheduled unfollows failed",
				Message:  fmt.Sprintf("%d unfollow(s) failed. First error: %s", failed, firstErr),
				Type:     models.NotificationError,
				Priority: models.PriorityHigh,
				Category: models.CategoryUnfollow,
				Metadata: map[string]any{"failed": failed, "trace_id": logger.TraceID(ctx)},
			})
		}
		if done >= s.cfg.UnfollowSummaryThreshold {
			_ = s.notify.Notify(ctx, &models.Notification{
				UserID:   userID,
				Title:    "Unfollows completed",
				Message:  fmt.Sprintf("%d accounts were unfollowed on schedule", done),
				Type:     models.NotificationSuccess,
				Priority: models.PriorityLow,
				Category: models.CategoryUnfollow,
				Metadata: map[string]any{"unfollowed": done, "trace_id": logger.TraceID(ctx)},
			})
		}
	}
}
