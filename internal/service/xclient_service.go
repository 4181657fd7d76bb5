package service

import (
	"context"
	"fmt"
	"net/http"

	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/pkg/utils"
	"github.com/maheshrc27/xpilot/pkg/xapi"
	"github.com/sirupsen/logrus"
)

// XClient is the part of the X API the jobs use.
type XClient interface {
	Me(ctx context.Context) (*xapi.User, error)
	UserByUsername(ctx context.Context, username string) (*xapi.User, error)
	UserTweets(ctx context.Context, userID, sinceID string, max int) ([]xapi.Tweet, error)
	CreateTweet(ctx context.Context, text, inReplyTo string) (*xapi.Tweet, error)
	Unfollow(ctx context.Context, sourceUserID, targetUserID string) error
}

// XClientProvider builds an authenticated client for one account.
type XClientProvider interface {
	ClientFor(ctx context.Context, tok *models.AccountToken) (XClient, error)
}

type xClientProvider struct {
	cfg      *config.Config
	logger   *logrus.Logger
	apps     repository.AppCredentialRepository
	cipher   *utils.Cipher
	observer xapi.RateLimitObserver
}

func NewXClientProvider(
	cfg *config.Config,
	logger *logrus.Logger,
	apps repository.AppCredentialRepository,
	cipher *utils.Cipher,
	observer xapi.RateLimitObserver) XClientProvider {
	return &xClientProvider{
		cfg:      cfg,
		logger:   logger,
		apps:     apps,
		cipher:   cipher,
		observer: observer,
	}
}

func (p *xClientProvider) ClientFor(ctx context.Context, tok *models.AccountToken) (XClient, error) {
	accessToken, err := p.cipher.Open(tok.AccessToken)
	if err != nil {
		return nil, err
	}

	var httpClient *http.Client
	switch tok.TokenKind {
	case models.TokenKindOAuth2:
		httpClient = xapi.NewOAuth2HTTPClient(ctx, accessToken, p.cfg.HTTPTimeout)

	case models.TokenKindOAuth1a:
		app, err := ownedAppCredential(ctx, p.apps, tok)
		if err != nil {
			return nil, err
		}
		consumerSecret, err := p.cipher.Open(app.ConsumerSecret)
		if err != nil {
			return nil, err
		}
		accessSecret, err := p.cipher.Open(tok.AccessTokenSecret)
		if err != nil {
			return nil, err
		}
		httpClient, err = xapi.NewOAuth1HTTPClient(app.ConsumerKey, consumerSecret, accessToken, accessSecret, p.cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported token kind %q", tok.TokenKind)
	}

	return xapi.NewClient(&xapi.Config{
		BaseURL: p.cfg.XAPIBaseURL,
		Timeout: p.cfg.HTTPTimeout,
		Logger:  p.logger,
	}, httpClient, xapi.WithRateLimitObserver(p.observer, tok.ID))
}

// ownedAppCredential resolves the token's app credential and insists it belongs to the
// token's owner. There is no shared fallback credential.
func ownedAppCredential(ctx context.Context, apps repository.AppCredentialRepository, tok *models.AccountToken) (*models.AppCredential, error) {
	if tok.AppCredentialID == nil || *tok.AppCredentialID == "" {
		return nil, ErrNoAppCredential
	}
	app, err := apps.GetByID(ctx, *tok.AppCredentialID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.UserID != tok.UserID {
		return nil, ErrNoAppCredential
	}
	return app, nil
}
