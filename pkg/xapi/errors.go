package xapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the X API.
type APIError struct {
	StatusCode int
	Code       int
	Title      string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("x api error: status=%d %s", e.StatusCode, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("x api error: status=%d %s", e.StatusCode, e.Title)
	default:
		return fmt.Sprintf("x api error: status=%d body=%s", e.StatusCode, e.Body)
	}
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

func IsForbidden(err error) bool {
	return IsStatus(err, http.StatusForbidden)
}

func IsRateLimited(err error) bool {
	return IsStatus(err, http.StatusTooManyRequests)
}
