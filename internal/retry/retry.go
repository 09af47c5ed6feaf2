// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config defines retry behavior with jittered exponential backoff.
// MaxAttempts <= 0 retries until success or context cancellation.
type Config struct {
	MaxAttempts          int           // Maximum number of attempts, 0 for unbounded
	InitialBackoff       time.Duration // Delay before the first retry
	MaxBackoff           time.Duration // Upper bound for any single delay
	Multiplier           float64       // Growth factor applied to the previous delay
	Jitter               time.Duration // Upper bound of the uniform random addend
	RetryableStatusCodes []int         // HTTP status codes that should trigger retry

	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultConfig retries forever on gateway timeouts and network errors,
// starting at one second and growing by 1.5x plus up to one second of jitter,
// capped at one minute.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    0,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     1.5,
		Jitter:         1 * time.Second,
		RetryableStatusCodes: []int{
			http.StatusGatewayTimeout, // 504
		},
	}
}

// Unbounded reports whether the config never gives up on its own
func (c Config) Unbounded() bool {
	return c.MaxAttempts <= 0
}

// Backoff produces the delay sequence for one retry loop
type Backoff struct {
	cfg  Config
	next time.Duration
}

// NewBackoff starts a delay sequence at cfg.InitialBackoff
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{cfg: cfg, next: capDelay(cfg.InitialBackoff, cfg.MaxBackoff)}
}

// Next returns the delay to wait now and advances the sequence:
// next = min(max, prev*multiplier + U(0, jitter)).
func (b *Backoff) Next() time.Duration {
	current := b.next

	grown := float64(current) * b.cfg.Multiplier
	if b.cfg.Jitter > 0 {
		r := rand.Float64
		if b.cfg.Rand != nil {
			r = b.cfg.Rand
		}
		grown += r() * float64(b.cfg.Jitter)
	}
	b.next = capDelay(time.Duration(grown), b.cfg.MaxBackoff)

	return current
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	if d < 0 {
		return 0
	}
	return d
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempt cap is reached, or ctx is done. fn receives the 1-based attempt.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := NewBackoff(cfg)
	var lastErr error

	for attempt := 1; cfg.Unbounded() || attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempts", attempt).
					Msg("Retry succeeded")
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		}

		if !shouldRetry(ctx, err, cfg) {
			log.Debug().
				Err(err).
				Msg("Error is not retryable")
			return err
		}

		// Don't sleep after the last attempt
		if !cfg.Unbounded() && attempt >= cfg.MaxAttempts {
			break
		}

		delay := backoff.Next()
		log.Warn().
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("backoff", delay).
			Err(err).
			Msg("Retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(ctx.Err(), lastErr))
		}
	}

	log.Warn().
		Int("attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Max retry attempts exceeded")

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Last: lastErr}
}

// ExhaustedError is returned when a bounded retry loop gives up
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// shouldRetry determines if an error is retryable
func shouldRetry(ctx context.Context, err error, cfg Config) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}

	// Status-carrying errors retry only on configured codes
	var sc StatusCoder
	if errors.As(err, &sc) {
		statusCode := sc.GetStatusCode()
		for _, code := range cfg.RetryableStatusCodes {
			if statusCode == code {
				return true
			}
		}
		return false
	}

	// The caller's own cancellation is final
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Everything else is a transport failure: timeouts, resets, DNS
	return true
}

// IsRetryableStatus reports whether code is in cfg's retry set
func IsRetryableStatus(cfg Config, code int) bool {
	for _, c := range cfg.RetryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
}

// StatusCoder is an interface for errors that provide an HTTP status code
type StatusCoder interface {
	GetStatusCode() int
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

func (e HTTPError) GetStatusCode() int {
	return e.StatusCode
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, status string, message string) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Message:    message,
	}
}
