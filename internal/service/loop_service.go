package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	LoopCompleted = "completed"
	LoopFailed    = "failed"
)

const minLoopInterval = time.Minute

type LoopRunResult struct {
	LoopID   string           `json:"loop_id"`
	LoopName string           `json:"loop_name"`
	LoopType string           `json:"loop_type"`
	Status   string           `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Posts    []*ExecuteResult `json:"posts,omitempty"`
	CTA      *CTAResult       `json:"cta,omitempty"`
}

// LoopRunner executes user loops under the loop lock.
type LoopRunner interface {
	RunLoop(ctx context.Context, loopID string) (*LoopRunResult, error)
	RunDueLoops(ctx context.Context, loopTypes []string) ([]*LoopRunResult, error)
}

type randSource struct {
	float64 func() float64
	intN    func(n int) int
	shuffle func(n int, swap func(i, j int))
}

type loopService struct {
	cfg      *config.Config
	loops    repository.LoopRepository
	posts    repository.PostRepository
	locks    LoopLockManager
	executor PostExecutor
	cta      CTAWatcher
	rnd      randSource
	now      func() time.Time
}

func NewLoopService(
	cfg *config.Config,
	loops repository.LoopRepository,
	posts repository.PostRepository,
	locks LoopLockManager,
	executor PostExecutor,
	cta CTAWatcher) LoopRunner {
	return &loopService{
		cfg:      cfg,
		loops:    loops,
		posts:    posts,
		locks:    locks,
		executor: executor,
		cta:      cta,
		rnd:      randSource{float64: rand.Float64, intN: rand.IntN, shuffle: rand.Shuffle},
		now:      time.Now,
	}
}

// PickWeighted draws one template with probability proportional to its weight. draw is
// uniform in [0, 1). Items with a non-positive weight are never picked unless they are the
// last item and the draw falls through.
func PickWeighted(items []*models.TemplateItem, draw float64) *models.TemplateItem {
	if len(items) == 0 {
		return nil
	}
	total := 0
	for _, it := range items {
		if it.Weight > 0 {
			total += it.Weight
		}
	}
	if total == 0 {
		return items[len(items)-1]
	}

	r := draw * float64(total)
	for _, it := range items {
		if it.Weight <= 0 {
			continue
		}
		r -= float64(it.Weight)
		if r <= 0 {
			return it
		}
	}
	return items[len(items)-1]
}

func (s *loopService) RunLoop(ctx context.Context, loopID string) (*LoopRunResult, error) {
	loop, err := s.loops.GetByID(ctx, loopID)
	if err != nil {
		return nil, err
	}
	if loop == nil {
		return nil, ErrLoopNotFound
	}
	return s.run(ctx, loop)
}

func (s *loopService) RunDueLoops(ctx context.Context, loopTypes []string) ([]*LoopRunResult, error) {
	due, err := s.loops.ListDue(ctx, loopTypes, s.now())
	if err != nil {
		return nil, err
	}

	results := make([]*LoopRunResult, 0, len(due))
	for _, loop := range due {
		res, err := s.run(ctx, loop)
		if err != nil {
			res = &LoopRunResult{LoopID: loop.ID, LoopName: loop.Name, LoopType: loop.LoopType, Status: LoopFailed, Reason: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *loopService) run(ctx context.Context, loop *models.Loop) (*LoopRunResult, error) {
	res := &LoopRunResult{LoopID: loop.ID, LoopName: loop.Name, LoopType: loop.LoopType}
	if !loop.IsActive {
		return nil, ErrLoopInactive
	}

	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"loop_id":   loop.ID,
		"loop_type": loop.LoopType,
	})

	var runErr error
	acquired, err := s.locks.WithLock(ctx, loop.ID, s.cfg.LoopLockTTL, func(ctx context.Context) error {
		switch loop.LoopType {
		case models.LoopTypePost:
			res.Posts, runErr = s.runPostLoop(ctx, loop)
		case models.LoopTypeReply:
			res.Posts, runErr = s.runReplyLoop(ctx, loop)
		case models.LoopTypeCTA:
			res.CTA, runErr = s.cta.Watch(ctx, loop)
		default:
			runErr = errors.New("unknown loop type " + loop.LoopType)
		}

		ranAt := s.now()
		next := ranAt.Add(max(loop.Interval(), minLoopInterval))
		return s.loops.MarkRun(ctx, loop.ID, ranAt, next)
	})
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Info("loop already running, skipped")
		res.Status = StatusSkipped
		res.Reason = "loop already running"
		return res, nil
	}

	if runErr != nil {
		log.WithError(runErr).Warn("loop run failed")
		res.Status = LoopFailed
		res.Reason = runErr.Error()
		return res, nil
	}
	res.Status = LoopCompleted
	return res, nil
}

// runPostLoop picks between MinAccounts and MaxAccounts accounts at random, gives each a
// weighted template and publishes immediately.
func (s *loopService) runPostLoop(ctx context.Context, loop *models.Loop) ([]*ExecuteResult, error) {
	templates, err := s.loops.ListTemplates(ctx, loop.ID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	accounts, err := s.loops.ListAccountIDs(ctx, loop.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	n := s.accountCount(loop, len(accounts))
	picked := append([]string(nil), accounts...)
	s.rnd.shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	picked = picked[:n]

	loopID := loop.ID
	results := make([]*ExecuteResult, 0, n)
	for _, accountID := range picked {
		tpl := PickWeighted(templates, s.rnd.float64())
		post := &models.Post{
			UserID:      loop.UserID,
			AccountID:   accountID,
			LoopID:      &loopID,
			LoopName:    loop.Name,
			Content:     tpl.Content,
			ContentHash: Fingerprint(tpl.Content),
			Status:      models.PostStatusScheduled,
			ScheduledAt: s.now(),
		}
		id, err := s.posts.Create(ctx, post)
		if err != nil {
			return results, err
		}

		res, err := s.executor.Execute(ctx, id)
		if err != nil {
			res = &ExecuteResult{PostID: id, AccountID: accountID, Status: StatusSkipped, Error: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *loopService) accountCount(loop *models.Loop, available int) int {
	lo := max(loop.MinAccounts, 1)
	hi := max(loop.MaxAccounts, lo)
	n := lo
	if hi > lo {
		n += s.rnd.intN(hi - lo + 1)
	}
	return min(n, available)
}

// runReplyLoop publishes the loop's queued replies that are due.
func (s *loopService) runReplyLoop(ctx context.Context, loop *models.Loop) ([]*ExecuteResult, error) {
	due, err := s.posts.ListDueByLoop(ctx, loop.ID, s.now(), s.cfg.PostSweepPageSize)
	if err != nil {
		return nil, err
	}

	results := make([]*ExecuteResult, 0, len(due))
	for _, post := range due {
		res, err := s.executor.Execute(ctx, post.ID)
		if err != nil {
			res = &ExecuteResult{PostID: post.ID, AccountID: post.AccountID, Status: StatusSkipped, Error: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}
