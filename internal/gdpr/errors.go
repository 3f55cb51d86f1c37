package gdpr

import "errors"

var (
	ErrRequestNotFound    = errors.New("request not found")
	ErrAlreadyProcessed   = errors.New("request already processed")
	ErrNotVerified        = errors.New("request not verified")
	ErrInvalidRight       = errors.New("invalid gdpr right")
	ErrInvalidMethod      = errors.New("invalid verification method")
	ErrVerificationFailed = errors.New("verification failed")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrChallengeExpired   = errors.New("verification challenge expired")
)
