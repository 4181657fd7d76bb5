package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/xpilot/internal/jobs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/queue"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/internal/transfer"
)

type JobHandler struct {
	ts    service.TokenService
	pe    service.PostExecutor
	lr    service.LoopRunner
	us    service.UnfollowScheduler
	rl    service.RateLimitTracker
	locks service.LoopLockManager
	dups  service.DuplicateGuard
	enq   queue.Enqueuer
}

func NewJobHandler(
	ts service.TokenService,
	pe service.PostExecutor,
	lr service.LoopRunner,
	us service.UnfollowScheduler,
	rl service.RateLimitTracker,
	locks service.LoopLockManager,
	dups service.DuplicateGuard,
	enq queue.Enqueuer) *JobHandler {
	return &JobHandler{
		ts:    ts,
		pe:    pe,
		lr:    lr,
		us:    us,
		rl:    rl,
		locks: locks,
		dups:  dups,
		enq:   enq,
	}
}

// Register mounts the job routes on r.
func (h *JobHandler) Register(r fiber.Router) {
	r.Post("/tokens/refresh", h.RefreshTokens)
	r.Post("/tokens/catch-up", h.CatchUpTokens)
	r.Post("/tokens/validate", h.ValidateTokens)
	r.Post("/posts/sweep", h.SweepPosts)
	r.Post("/posts/:id/execute", h.ExecutePost)
	r.Post("/posts/:id/enqueue", h.EnqueuePost)
	r.Post("/loops/run", h.RunLoops)
	r.Post("/loops/:id/enqueue", h.EnqueueLoop)
	r.Post("/cta/run", h.RunCTA)
	r.Post("/unfollows/run", h.RunUnfollows)
	r.Get("/rate-limits", h.RateLimits)
	r.Get("/locks", h.Locks)
	r.Get("/duplicates", h.Duplicates)
}

func refreshCounts(s *service.RefreshSummary) map[string]int {
	return map[string]int{"total": s.Total, "success": s.Success, "skipped": s.Skipped, "failed": s.Failed}
}

func (h *JobHandler) RefreshTokens(c *fiber.Ctx) error {
	var summary *service.RefreshSummary
	err := job.Track(c.UserContext(), job.NameTokenRefresh, func(ctx context.Context) (err error) {
		summary, err = h.ts.RefreshExpiring(ctx)
		return err
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, refreshCounts(summary), summary.Results)
}

func (h *JobHandler) CatchUpTokens(c *fiber.Ctx) error {
	var summary *service.RefreshSummary
	err := job.Track(c.UserContext(), job.NameTokenCatchUp, func(ctx context.Context) (err error) {
		summary, err = h.ts.CatchUpExpired(ctx)
		return err
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, refreshCounts(summary), summary.Results)
}

func (h *JobHandler) ValidateTokens(c *fiber.Ctx) error {
	var req transfer.ValidateTokensRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, fiber.StatusBadRequest, err)
	}

	var results []*service.ValidationResult
	err := job.Track(c.UserContext(), job.NameTokenCheck, func(ctx context.Context) (err error) {
		results, err = h.ts.ValidateAccounts(ctx, req.AccountIDs, req.ShouldRefresh())
		return err
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}

	counts := map[string]int{"total": len(results)}
	for _, r := range results {
		counts[r.Status]++
	}
	return respond(c, counts, results)
}

func (h *JobHandler) SweepPosts(c *fiber.Ctx) error {
	var summary *service.SweepSummary
	err := job.Track(c.UserContext(), job.NamePostSweep, func(ctx context.Context) (err error) {
		summary, err = h.pe.SweepDue(ctx)
		return err
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, map[string]int{
		"total":   summary.Total,
		"posted":  summary.Posted,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
	}, summary.Results)
}

func (h *JobHandler) ExecutePost(c *fiber.Ctx) error {
	var res *service.ExecuteResult
	err := job.Track(c.UserContext(), job.NamePostExecute, func(ctx context.Context) (err error) {
		res, err = h.pe.Execute(ctx, c.Params("id"))
		return err
	})
	if err != nil {
		return respondError(c, statusFor(err), err)
	}

	counts := map[string]int{"posted": 0, "failed": 0}
	counts[res.Status]++
	return respond(c, counts, []*service.ExecuteResult{res})
}

func (h *JobHandler) EnqueuePost(c *fiber.Ctx) error {
	var req transfer.EnqueueRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, err)
		}
	}
	if err := req.Validate(); err != nil {
		return respondError(c, fiber.StatusBadRequest, err)
	}

	info, err := queue.EnqueuePost(c.UserContext(), h.enq, queue.ExecutePostPayload{PostID: c.Params("id")},
		time.Duration(req.DelaySeconds)*time.Second)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, map[string]int{"enqueued": 1}, []transfer.EnqueueResponse{{TaskID: info.ID, Queue: info.Queue}})
}

func loopCounts(results []*service.LoopRunResult) map[string]int {
	counts := map[string]int{"total": len(results), service.LoopCompleted: 0, service.LoopFailed: 0, service.StatusSkipped: 0}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

func (h *JobHandler) RunLoops(c *fiber.Ctx) error {
	var req transfer.RunLoopsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, err)
		}
	}

	var results []*service.LoopRunResult
	err := job.Track(c.UserContext(), job.NameLoops, func(ctx context.Context) error {
		if req.LoopID != "" {
			res, err := h.lr.RunLoop(ctx, req.LoopID)
			if err != nil {
				return err
			}
			results = []*service.LoopRunResult{res}
			return nil
		}
		var err error
		results, err = h.lr.RunDueLoops(ctx, []string{models.LoopTypePost, models.LoopTypeReply})
		return err
	})
	if err != nil {
		return respondError(c, statusFor(err), err)
	}
	return respond(c, loopCounts(results), results)
}

func (h *JobHandler) EnqueueLoop(c *fiber.Ctx) error {
	var req transfer.EnqueueRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, err)
		}
	}
	if err := req.Validate(); err != nil {
		return respondError(c, fiber.StatusBadRequest, err)
	}

	info, err := queue.EnqueueLoopRun(c.UserContext(), h.enq, queue.RunLoopPayload{LoopID: c.Params("id")},
		time.Duration(req.DelaySeconds)*time.Second)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, map[string]int{"enqueued": 1}, []transfer.EnqueueResponse{{TaskID: info.ID, Queue: info.Queue}})
}

func (h *JobHandler) RunCTA(c *fiber.Ctx) error {
	var results []*service.LoopRunResult
	err := job.Track(c.UserContext(), job.NameCTA, func(ctx context.Context) (err error) {
		results, err = h.lr.RunDueLoops(ctx, []string{models.LoopTypeCTA})
		return err
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}

	counts := loopCounts(results)
	for _, r := range results {
		if r.CTA != nil {
			counts["replied"] += r.CTA.Replied
			counts["reply_failed"] += r.CTA.Failed
		}
	}
	return respond(c, counts, results)
}

func (h *JobHandler) RunUnfollows(c *fiber.Ctx) error {
	var summary *service.UnfollowSummary
	err := job.Track(c.UserContext(), job.NameUnfollow, func(ctx context.Context) (err error) {
		summary, err = h.us.Run(ctx)
		return err
	})
	if summary == nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	counts := map[string]int{
		"total":      summary.Total,
		"unfollowed": summary.Unfollowed,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}
	if err != nil {
		// partial run; report what was done
		return c.Status(fiber.StatusInternalServerError).JSON(transfer.JobResponse{
			Success: false,
			Counts:  counts,
			Results: summary.Results,
			Error:   err.Error(),
			TraceID: GetTraceID(c),
		})
	}
	return respond(c, counts, summary.Results)
}

func (h *JobHandler) RateLimits(c *fiber.Ctx) error {
	statuses, err := h.rl.Snapshot(c.UserContext())
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}

	counts := map[string]int{"total": len(statuses), models.RateLimitCritical: 0, models.RateLimitWarning: 0}
	for _, s := range statuses {
		if s.Severity != models.RateLimitOK {
			counts[s.Severity]++
		}
	}
	return respond(c, counts, statuses)
}

func (h *JobHandler) Locks(c *fiber.Ctx) error {
	locks, err := h.locks.ListActive(c.UserContext())
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, map[string]int{"total": len(locks)}, locks)
}

func (h *JobHandler) Duplicates(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return respondError(c, fiber.StatusBadRequest, errMissingUserID)
	}

	attempts, err := h.dups.ListRecent(c.UserContext(), userID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err)
	}
	return respond(c, map[string]int{"total": len(attempts)}, attempts)
}
