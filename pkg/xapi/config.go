package xapi

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "https://api.x.com/2"
	DefaultTokenURL = "https://api.x.com/2/oauth2/token"

	requestTokenURL   = "https://api.x.com/oauth/request_token"
	authorizeTokenURL = "https://api.x.com/oauth/authorize"
	accessTokenURL    = "https://api.x.com/oauth/access_token"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
