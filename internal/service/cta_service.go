package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
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

type CTAReply struct {
	TweetID string `json:"tweet_id"`
	ReplyID string `json:"reply_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CTAResult struct {
	LoopID  string      `json:"loop_id"`
	Handle  string      `json:"handle"`
	Fetched int         `json:"fetched"`
	Replied int         `json:"replied"`
	Failed  int         `json:"failed"`
	Cursor  string      `json:"cursor"`
	Replies []*CTAReply `json:"replies"`
}

// CTAWatcher replies to new tweets from a monitored handle.
type CTAWatcher interface {
	Watch(ctx context.Context, loop *models.Loop) (*CTAResult, error)
}

type ctaService struct {
	cfg     *config.Config
	loops   repository.LoopRepository
	posts   repository.PostRepository
	tokens  TokenService
	clients XClientProvider
	notify  NotificationSink
	draw    func() float64
	now     func() time.Time
}

func NewCTAService(
	cfg *config.Config,
	loops repository.LoopRepository,
	posts repository.PostRepository,
	tokens TokenService,
	clients XClientProvider,
	notify NotificationSink) CTAWatcher {
	return &ctaService{
		cfg:     cfg,
		loops:   loops,
		posts:   posts,
		tokens:  tokens,
		clients: clients,
		notify:  notify,
		draw:    rand.Float64,
		now:     time.Now,
	}
}

// Watch handles every tweet newer than the loop cursor, oldest first. The cursor is stored
// after each tweet whether or not the reply succeeded, so a failed reply is never retried.
// A cursor write failure stops the batch.
func (s *ctaService) Watch(ctx context.Context, loop *models.Loop) (*CTAResult, error) {
	if loop.MonitoredHandle == "" || loop.ExecutorAccountID == "" {
		return nil, ErrCTAIncomplete
	}
	res := &CTAResult{LoopID: loop.ID, Handle: loop.MonitoredHandle, Cursor: loop.LastProcessedTweetID}

	templates, err := s.loops.ListTemplates(ctx, loop.ID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	tok, err := s.tokens.EnsureUsable(ctx, loop.ExecutorAccountID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.ClientFor(ctx, tok)
	if err != nil {
		return nil, err
	}

	target, err := client.UserByUsername(ctx, loop.MonitoredHandle)
	if err != nil {
		return nil, err
	}
	tweets, err := client.UserTweets(ctx, target.ID, loop.LastProcessedTweetID, s.cfg.CTAPageSize)
	if err != nil {
		return nil, err
	}

	fresh := make([]xapi.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if loop.LastProcessedTweetID == "" || compareTweetIDs(t.ID, loop.LastProcessedTweetID) > 0 {
			fresh = append(fresh, t)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return compareTweetIDs(fresh[i].ID, fresh[j].ID) < 0 })
	res.Fetched = len(fresh)

	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"loop_id": loop.ID,
		"handle":  loop.MonitoredHandle,
	})

	pacer := rate.NewLimiter(rate.Every(s.cfg.CTAReplyDelay), 1)
	var runErr error
	for _, t := range fresh {
		if runErr = pacer.Wait(ctx); runErr != nil {
			break
		}

		tpl := PickWeighted(templates, s.draw())
		reply := &CTAReply{TweetID: t.ID}
		created, err := client.CreateTweet(ctx, tpl.Content, t.ID)
		if err != nil {
			reply.Error = err.Error()
			res.Failed++
			telemetry.CTARepliesTotal.WithLabelValues("failed").Inc()
			log.WithError(err).WithField("tweet_id", t.ID).Warn("cta reply failed")
		} else {
			reply.ReplyID = created.ID
			res.Replied++
			telemetry.CTARepliesTotal.WithLabelValues("replied").Inc()
			s.recordReply(ctx, loop, tok, tpl, t.ID, created.ID)
		}
		res.Replies = append(res.Replies, reply)

		// committed per tweet so a crash never replays replies already sent
		if runErr = s.loops.UpdateCursor(context.WithoutCancel(ctx), loop.ID, t.ID); runErr != nil {
			log.WithError(runErr).WithField("tweet_id", t.ID).Error("failed to advance cta cursor")
			break
		}
		res.Cursor = t.ID
		loop.LastProcessedTweetID = t.ID
	}

	if res.Failed > 0 {
		_ = s.notify.Notify(ctx, &models.Notification{
			UserID:   loop.UserID,
			Title:    "CTA replies failed",
			Message:  fmt.Sprintf("%d of %d replies to @%s failed in loop %q", res.Failed, res.Failed+res.Replied, loop.MonitoredHandle, loop.Name),
			Type:     models.NotificationWarning,
			Priority: models.PriorityMedium,
			Category: models.CategoryCTA,
			Metadata: map[string]any{"loop_id": loop.ID, "trace_id": logger.TraceID(ctx)},
		})
	}
	return res, runErr
}

func (s *ctaService) recordReply(ctx context.Context, loop *models.Loop, tok *models.AccountToken, tpl *models.TemplateItem, inReplyTo, replyID string) {
	now := s.now()
	loopID := loop.ID
	_, err := s.posts.Create(ctx, &models.Post{
		UserID:         loop.UserID,
		AccountID:      tok.ID,
		LoopID:         &loopID,
		LoopName:       loop.Name,
		Content:        tpl.Content,
		ContentHash:    Fingerprint(tpl.Content),
		InReplyToID:    inReplyTo,
		Status:         models.PostStatusPosted,
		ScheduledAt:    now,
		PostedAt:       &now,
		PlatformPostID: replyID,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("reply_id", replyID).Error("failed to record cta reply")
	}
}
