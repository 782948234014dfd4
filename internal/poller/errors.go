package poller

import "errors"

// Ошибки poller.
var (
	// ErrRetryExhausted — исчерпан лимит ошибок poll подряд.
	ErrRetryExhausted = errors.New("poll retry budget exhausted")

	// ErrNoSource — в Config не задан StatusSource.
	ErrNoSource = errors.New("status source is required")
)
