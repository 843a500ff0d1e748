// Package ai holds the contract shared by the text generation providers and
// the retry policy they apply to transient failures.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/cv-screener/internal/utils"
)

const (
	// MaxAttempts bounds a single generation: the first call plus one retry.
	MaxAttempts = 2

	defaultBackoff = 2 * time.Second
)

// Generator sends one system instruction and one user message to a model and
// returns its textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// TransientError marks a failure that may succeed when repeated.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient reports whether err, or anything it wraps, is a TransientError.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	return errors.As(err, &te)
}

// ClampAttempts keeps a configured attempt count within [1, MaxAttempts].
func ClampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxAttempts {
		return MaxAttempts
	}
	return n
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	// Wait blocks between attempts. Defaults to utils.WaitFor.
	Wait func(ctx context.Context, d time.Duration) error
}

// Retry runs call until it succeeds, fails with a non-transient error, or the
// clamped attempt budget is spent.
func Retry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, call func(context.Context) (string, error)) (string, error) {
	attempts := ClampAttempts(policy.Attempts)
	wait := policy.Wait
	if wait == nil {
		wait = utils.WaitFor
	}
	backoff := policy.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts {
			break
		}

		delay := backoff
		var te *TransientError
		if errors.As(err, &te) && te.RetryAfter > 0 {
			delay = te.RetryAfter
		}

		logger.Warn("ai call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("waiting before retry: %w", err)
		}
	}

	return "", lastErr
}

type limitedGenerator struct {
	Generator
	limiter *rate.Limiter
}

// WithRateLimit returns a Generator that admits at most perMinute calls per
// minute. perMinute <= 0 returns g unchanged.
func WithRateLimit(g Generator, perMinute int) Generator {
	if g == nil || perMinute <= 0 {
		return g
	}
	every := time.Minute / time.Duration(perMinute)
	return &limitedGenerator{Generator: g, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (l *limitedGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return l.Generator.GenerateContent(ctx, system, message)
}
