package service

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountSuspended = errors.New("account suspended")
	ErrAccountInactive  = errors.New("account inactive")
	ErrTokenExpired     = errors.New("token expired")
	ErrNoAppCredential  = errors.New("no app credential")

	ErrDuplicateContent = errors.New("duplicate content")
	ErrPostNotFound     = errors.New("post not found")
	ErrAlreadyPosted    = errors.New("post already posted")
	ErrPostInFlight     = errors.New("post already processing")
	ErrEmptyContent     = errors.New("post content is empty")

	ErrLoopNotFound  = errors.New("loop not found")
	ErrNoTemplates   = errors.New("loop has no templates")
	ErrNoAccounts    = errors.New("loop has no accounts")
	ErrLoopInactive  = errors.New("loop is not active")
	ErrCTAIncomplete = errors.New("cta loop needs a monitored handle and an executor account")
)
