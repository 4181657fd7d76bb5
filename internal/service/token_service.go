package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
	"github.com/maheshrc27/xpilot/pkg/xapi"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	RefreshSuccess = "success"
	RefreshSkipped = "skipped"
	RefreshFailed  = "failed"
)

const (
	ValidationValid     = "valid"
	ValidationSuspended = "suspended"
	ValidationExpired   = "expired"
	ValidationFailed    = "failed"
	ValidationRefreshed = "refreshed"
)

type RefreshResult struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

type RefreshSummary struct {
	Total   int              `json:"total"`
	Success int              `json:"success"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Results []*RefreshResult `json:"results"`
}

type ValidationResult struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username,omitempty"`
	Status    string `json:"status"`
	Refreshed bool   `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

// TokenService keeps connected accounts usable: proactive refresh, catch-up of expired
// tokens and on-demand validation.
type TokenService interface {
	RefreshIfNeeded(ctx context.Context, tok *models.AccountToken) *RefreshResult
	RefreshExpiring(ctx context.Context) (*RefreshSummary, error)
	CatchUpExpired(ctx context.Context) (*RefreshSummary, error)
	ValidateAccounts(ctx context.Context, accountIDs []string, autoRefresh bool) ([]*ValidationResult, error)
	EnsureUsable(ctx context.Context, accountID string) (*models.AccountToken, error)
}

type tokenService struct {
	cfg     *config.Config
	tokens  repository.AccountTokenRepository
	apps    repository.AppCredentialRepository
	cipher  *utils.Cipher
	clients XClientProvider
	notify  NotificationSink
	now     func() time.Time
}

func NewTokenService(
	cfg *config.Config,
	tokens repository.AccountTokenRepository,
	apps repository.AppCredentialRepository,
	cipher *utils.Cipher,
	clients XClientProvider,
	notify NotificationSink) TokenService {
	return &tokenService{
		cfg:     cfg,
		tokens:  tokens,
		apps:    apps,
		cipher:  cipher,
		clients: clients,
		notify:  notify,
		now:     time.Now,
	}
}

// RefreshIfNeeded exchanges the refresh token using the owner's own app credential.
// On success tok is updated in place.
func (s *tokenService) RefreshIfNeeded(ctx context.Context, tok *models.AccountToken) *RefreshResult {
	res := &RefreshResult{AccountID: tok.ID, UserID: tok.UserID, Username: tok.Username}
	log := logger.FromContext(ctx).WithFields(logrus.Fields{"account_id": tok.ID, "user_id": tok.UserID})

	if !tok.IsRefreshCandidate() {
		res.Outcome = RefreshSkipped
		telemetry.TokenRefreshTotal.WithLabelValues(RefreshSkipped).Inc()
		return res
	}

	fail := func(reason string) *RefreshResult {
		res.Outcome = RefreshFailed
		res.Error = reason
		telemetry.TokenRefreshTotal.WithLabelValues(RefreshFailed).Inc()
		log.WithField("reason", reason).Warn("token refresh failed")
		return res
	}

	app, err := ownedAppCredential(ctx, s.apps, tok)
	if err == nil && app.ClientID == "" {
		err = ErrNoAppCredential
	}
	if err != nil {
		if errors.Is(err, ErrNoAppCredential) {
			_ = s.tokens.RecordError(ctx, tok.ID, ErrNoAppCredential.Error())
		}
		return fail(err.Error())
	}

	clientSecret, err := s.cipher.Open(app.ClientSecret)
	if err != nil {
		return fail(err.Error())
	}
	refreshToken, err := s.cipher.Open(tok.RefreshToken)
	if err != nil {
		return fail(err.Error())
	}

	conf := &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.cfg.XTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: s.cfg.HTTPTimeout})
	newToken, err := conf.TokenSource(httpCtx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       s.now().Add(-time.Minute),
	}).Token()
	if err != nil {
		reason := err.Error()
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			reason = fmt.Sprintf("%d: %s", rErr.Response.StatusCode, strings.TrimSpace(string(rErr.Body)))
		}
		if mErr := s.tokens.MarkRefreshFailed(ctx, tok.ID, reason); mErr != nil {
			log.WithError(mErr).Error("failed to persist refresh failure")
		}
		tok.IsActive = false
		tok.LastError = reason
		return fail(reason)
	}

	sealedAccess, err := s.cipher.Seal(newToken.AccessToken)
	if err != nil {
		return fail(err.Error())
	}
	sealedRefresh, err := s.cipher.Seal(newToken.RefreshToken)
	if err != nil {
		return fail(err.Error())
	}

	expiresAt := newToken.Expiry
	if expiresAt.IsZero() {
		expiresAt = GetExpiresAt(s.now(), defaultExpiresIn)
	}

	if err := s.tokens.SetRefreshed(ctx, tok.ID, sealedAccess, sealedRefresh, expiresAt); err != nil {
		return fail(err.Error())
	}

	now := s.now()
	tok.AccessToken = sealedAccess
	if sealedRefresh != "" {
		tok.RefreshToken = sealedRefresh
	}
	tok.ExpiresAt = &expiresAt
	tok.IsActive = true
	tok.LastError = ""
	tok.LastRefreshedAt = &now
	tok.RefreshCount++

	res.Outcome = RefreshSuccess
	telemetry.TokenRefreshTotal.WithLabelValues(RefreshSuccess).Inc()
	log.WithField("expires_at", expiresAt).Info("token refreshed")
	return res
}

func (s *tokenService) RefreshExpiring(ctx context.Context) (*RefreshSummary, error) {
	toks, err := s.tokens.ListExpiring(ctx, s.now().Add(s.cfg.RefreshWindow))
	if err != nil {
		return nil, err
	}
	summary := s.refreshBatch(ctx, toks)
	s.notifyFailures(ctx, summary.Results, models.PriorityHigh, "Token refresh failed")
	return summary, nil
}

// CatchUpExpired retries tokens that already lapsed. Accounts in this state are
// unusable so every failure is urgent.
func (s *tokenService) CatchUpExpired(ctx context.Context) (*RefreshSummary, error) {
	toks, err := s.tokens.ListExpired(ctx, s.now())
	if err != nil {
		return nil, err
	}
	summary := s.refreshBatch(ctx, toks)
	s.notifyFailures(ctx, summary.Results, models.PriorityUrgent, "Expired token could not be refreshed")
	return summary, nil
}

func (s *tokenService) refreshBatch(ctx context.Context, toks []*models.AccountToken) *RefreshSummary {
	results := make([]*RefreshResult, len(toks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.JobConcurrency, 1))
	for i, tok := range toks {
		g.Go(func() error {
			results[i] = s.RefreshIfNeeded(gctx, tok)
			return nil
		})
	}
	_ = g.Wait()

	summary := &RefreshSummary{Total: len(results), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case RefreshSuccess:
			summary.Success++
		case RefreshSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	return summary
}

// notifyFailures sends one notification per user per distinct failure reason.
func (s *tokenService) notifyFailures(ctx context.Context, results []*RefreshResult, priority, title string) {
	var failed []*RefreshResult
	for _, r := range results {
		if r.Outcome == RefreshFailed {
			failed = append(failed, r)
		}
	}
	byUser, order := groupByUser(failed, func(r *RefreshResult) string { return r.UserID })

	for _, userID := range order {
		byReason, reasons := groupByUser(byUser[userID], func(r *RefreshResult) string { return r.Error })
		for _, reason := range reasons {
			group := byReason[reason]
			names := make([]string, 0, len(group))
			for _, r := range group {
				names = append(names, "@"+r.Username)
			}
			sort.Strings(names)

			_ = s.notify.Notify(ctx, &models.Notification{
				UserID:   userID,
				Title:    title,
				Message:  fmt.Sprintf("%d account(s) need attention (%s): %s", len(group), strings.Join(names, ", "), reason),
				Type:     models.NotificationError,
				Priority: priority,
				Category: models.CategoryTokenRefresh,
				Metadata: map[string]any{
					"accounts": names,
					"reason":   reason,
					"trace_id": logger.TraceID(ctx),
				},
			})
		}
	}
}

func (s *tokenService) ValidateAccounts(ctx context.Context, accountIDs []string, autoRefresh bool) ([]*ValidationResult, error) {
	toks, err := s.tokens.ListByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.AccountToken, len(toks))
	for _, t := range toks {
		byID[t.ID] = t
	}

	results := make([]*ValidationResult, len(accountIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.JobConcurrency, 1))
	for i, id := range accountIDs {
		g.Go(func() error {
			results[i] = s.validateOne(gctx, id, byID[id], autoRefresh)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Status != ValidationSuspended {
			continue
		}
		if tok := byID[r.AccountID]; tok != nil {
			_ = s.notify.Notify(ctx, &models.Notification{
				UserID:   tok.UserID,
				Title:    "Account suspended",
				Message:  fmt.Sprintf("@%s was rejected by X: %s", tok.Username, r.Error),
				Type:     models.NotificationError,
				Priority: models.PriorityHigh,
				Category: models.CategoryTokenValidation,
				Metadata: map[string]any{"account_id": tok.ID, "trace_id": logger.TraceID(ctx)},
			})
		}
	}
	return results, nil
}

func (s *tokenService) validateOne(ctx context.Context, id string, tok *models.AccountToken, autoRefresh bool) *ValidationResult {
	res := &ValidationResult{AccountID: id}
	if tok == nil {
		res.Status = ValidationFailed
		res.Error = ErrAccountNotFound.Error()
		return res
	}
	res.Username = tok.Username

	if tok.IsSuspended {
		res.Status = ValidationSuspended
		res.Error = tok.SuspendedReason
		return res
	}

	if tok.IsExpired(s.now()) {
		if !autoRefresh {
			res.Status = ValidationExpired
			res.Error = ErrTokenExpired.Error()
			return res
		}
		if r := s.RefreshIfNeeded(ctx, tok); r.Outcome != RefreshSuccess {
			res.Status = ValidationExpired
			res.Error = r.Error
			return res
		}
		res.Refreshed = true
	}

	client, err := s.clients.ClientFor(ctx, tok)
	if err != nil {
		res.Status = ValidationFailed
		res.Error = err.Error()
		return res
	}

	if _, err := client.Me(ctx); err != nil {
		if xapi.IsForbidden(err) {
			reason := err.Error()
			if mErr := s.tokens.MarkSuspended(ctx, tok.ID, reason); mErr != nil {
				logger.FromContext(ctx).WithError(mErr).WithField("account_id", tok.ID).Error("failed to persist suspension")
			}
			telemetry.TokenSuspensionsTotal.Inc()
			tok.IsSuspended = true
			tok.SuspendedReason = reason
			res.Status = ValidationSuspended
			res.Error = reason
			return res
		}
		res.Status = ValidationFailed
		res.Error = err.Error()
		return res
	}

	res.Status = ValidationValid
	if res.Refreshed {
		res.Status = ValidationRefreshed
	}
	return res
}

// EnsureUsable loads an account and refreshes it if it has lapsed. The returned token
// is safe to hand to XClientProvider.
func (s *tokenService) EnsureUsable(ctx context.Context, accountID string) (*models.AccountToken, error) {
	tok, err := s.tokens.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrAccountNotFound
	}
	if tok.IsSuspended {
		return nil, ErrAccountSuspended
	}
	if tok.IsExpired(s.now()) {
		if r := s.RefreshIfNeeded(ctx, tok); r.Outcome != RefreshSuccess {
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, r.Error)
		}
	}
	if !tok.IsActive {
		return nil, ErrAccountInactive
	}
	return tok, nil
}
