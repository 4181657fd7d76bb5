package models

import "time"

const (
	TokenKindOAuth2  = "oauth2"
	TokenKindOAuth1a = "oauth1a"
)

// AccountToken is one X account connected by a user. Secrets are stored encrypted.
type AccountToken struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	Username          string     `db:"username" json:"username"`
	PlatformUserID    string     `db:"platform_user_id" json:"platform_user_id"`
	TokenKind         string     `db:"token_kind" json:"token_kind"`
	AccessToken       string     `db:"access_token" json:"-"`
	AccessTokenSecret string     `db:"access_token_secret" json:"-"`
	RefreshToken      string     `db:"refresh_token" json:"-"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	IsSuspended       bool       `db:"is_suspended" json:"is_suspended"`
	SuspendedReason   string     `db:"suspended_reason" json:"suspended_reason,omitempty"`
	RefreshCount      int        `db:"refresh_count" json:"refresh_count"`
	LastRefreshedAt   *time.Time `db:"last_refreshed_at" json:"last_refreshed_at,omitempty"`
	LastError         string     `db:"last_error" json:"last_error,omitempty"`
	AppCredentialID   *string    `db:"app_credential_id" json:"app_credential_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsRefreshCandidate reports whether the token can be exchanged at the token endpoint.
// OAuth1a tokens never expire.
func (t *AccountToken) IsRefreshCandidate() bool {
	return t.TokenKind == TokenKindOAuth2 && t.RefreshToken != ""
}

func (t *AccountToken) IsExpired(now time.Time) bool {
	if t.TokenKind != TokenKindOAuth2 || t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now)
}

// AppCredential is a user's registered X application.
type AppCredential struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	ClientID       string    `db:"client_id" json:"client_id"`
	ClientSecret   string    `db:"client_secret" json:"-"`
	ConsumerKey    string    `db:"consumer_key" json:"consumer_key"`
	ConsumerSecret string    `db:"consumer_secret" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
