package ai

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnavailable = errors.New("ai provider unavailable")

// RateLimitError marks a provider rejection that is worth retrying later.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

func wrapStatusError(provider string, statusCode int, err error) error {
	if statusCode == http.StatusTooManyRequests {
		return &RateLimitError{Provider: provider, StatusCode: statusCode, Err: err}
	}
	return err
}
