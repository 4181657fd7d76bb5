package xapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mrjones/oauth"
	"golang.org/x/oauth2"
)

// NewOAuth2HTTPClient returns a client that sends accessToken as a bearer token.
func NewOAuth2HTTPClient(ctx context.Context, accessToken string, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout
	return client
}

// NewOAuth1HTTPClient returns a client that signs every request with OAuth 1.0a user context.
func NewOAuth1HTTPClient(consumerKey, consumerSecret, accessToken, accessTokenSecret string, timeout time.Duration) (*http.Client, error) {
	if consumerKey == "" || consumerSecret == "" {
		return nil, fmt.Errorf("consumer key and secret are required for oauth1a")
	}

	consumer := oauth.NewConsumer(consumerKey, consumerSecret, oauth.ServiceProvider{
		RequestTokenUrl:   requestTokenURL,
		AuthorizeTokenUrl: authorizeTokenURL,
		AccessTokenUrl:    accessTokenURL,
	})
	consumer.HttpClient = &http.Client{
		Timeout: timeout,
	}

	client, err := consumer.MakeHttpClient(&oauth.AccessToken{
		Token:  accessToken,
		Secret: accessTokenSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth client: %w", err)
	}
	client.Timeout = timeout
	return client, nil
}
