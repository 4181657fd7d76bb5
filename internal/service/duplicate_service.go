package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

type DuplicateVerdict struct {
	Hash      string
	Duplicate bool
	AttemptID string
	Message   string
}

// DuplicateGuard rejects content a user already posted inside the duplicate window.
type DuplicateGuard interface {
	Check(ctx context.Context, post *models.Post) (*DuplicateVerdict, error)
	ListRecent(ctx context.Context, userID string) ([]*models.DuplicateAttempt, error)
}

type duplicateService struct {
	cfg      *config.Config
	posts    repository.PostRepository
	attempts repository.DuplicateAttemptRepository
	now      func() time.Time
}

func NewDuplicateService(
	cfg *config.Config,
	posts repository.PostRepository,
	attempts repository.DuplicateAttemptRepository) DuplicateGuard {
	return &duplicateService{
		cfg:      cfg,
		posts:    posts,
		attempts: attempts,
		now:      time.Now,
	}
}

// Fingerprint hashes content after case folding and whitespace collapsing.
func Fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (s *duplicateService) Check(ctx context.Context, post *models.Post) (*DuplicateVerdict, error) {
	verdict := &DuplicateVerdict{Hash: Fingerprint(post.Content)}

	since := s.now().Add(-s.cfg.DuplicateWindow)
	dup, err := s.posts.HasRecentFingerprint(ctx, post.UserID, verdict.Hash, post.ID, since)
	if err != nil {
		return nil, err
	}
	if !dup {
		return verdict, nil
	}

	verdict.Duplicate = true
	verdict.Message = "identical content was already posted in the last " + s.cfg.DuplicateWindow.String()

	attempt := &models.DuplicateAttempt{
		UserID:       post.UserID,
		AccountID:    post.AccountID,
		Content:      post.Content,
		ContentHash:  verdict.Hash,
		ErrorMessage: verdict.Message,
	}
	if post.ID != "" {
		attempt.PostID = &post.ID
	}
	id, err := s.attempts.Create(ctx, attempt)
	if err != nil {
		// the rejection still stands without the audit row
		logger.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"post_id": post.ID,
			"user_id": post.UserID,
		}).Warn("failed to record duplicate attempt")
	}
	verdict.AttemptID = id
	telemetry.DuplicateRejectionsTotal.Inc()
	return verdict, nil
}

func (s *duplicateService) ListRecent(ctx context.Context, userID string) ([]*models.DuplicateAttempt, error) {
	return s.attempts.ListRecent(ctx, userID, s.now().Add(-s.cfg.DuplicateWindow))
}
