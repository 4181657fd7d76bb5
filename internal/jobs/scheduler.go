package job

import (
	"fmt"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/robfig/cron"
)

// Jobs groups every scheduled entry point.
type Jobs struct {
	Tokens   *TokenRefreshJob
	Posts    *PostSweepJob
	Loops    *LoopJob
	Unfollow *UnfollowJob
}

// Schedule registers each job on c. An empty spec disables that job.
func Schedule(c *cron.Cron, s config.Schedules, jobs Jobs) error {
	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{NameTokenRefresh, s.TokenRefresh, jobs.Tokens.RefreshTokens},
		{NameTokenCatchUp, s.TokenCatchUp, jobs.Tokens.CatchUpTokens},
		{NamePostSweep, s.PostSweep, jobs.Posts.SweepPosts},
		{NameLoops, s.Loops, jobs.Loops.RunLoops},
		{NameCTA, s.CTA, jobs.Loops.RunCTALoops},
		{NameUnfollow, s.Unfollow, jobs.Unfollow.RunUnfollows},
	}

	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		if err := c.AddFunc(e.spec, e.fn); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", e.name, e.spec, err)
		}
	}
	return nil
}
