// Package enrich wraps a remote text model with the two operations the
// pipeline needs, translation and categorization. Both retry with
// exponential backoff and fall back to a safe default instead of failing.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/autonews-pipeline/internal/clock/system"
	"github.com/JakeFAU/autonews-pipeline/internal/metrics"
)

// ErrEmptyResponse is returned by generators when the model produced no candidates.
var ErrEmptyResponse = errors.New("model returned no candidates")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig bounds the attempts of one operation.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	Sleep       SleepFunc
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.Sleep == nil {
		c.Sleep = system.New().Sleep
	}
	return c
}

// Backoff is the wait after failed attempt i (0-indexed): initial * 2^i.
func Backoff(initial time.Duration, attempt int) time.Duration {
	return initial * time.Duration(1<<attempt)
}

// IsQuotaError reports whether err looks like a quota or rate-limit rejection.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource exhausted", "resource_exhausted", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// caller runs a generator under a retry policy.
type caller struct {
	gen       Generator
	retry     RetryConfig
	operation string
	logger    *zap.Logger
}

// call returns the first successful response. Attempt i failing waits
// Backoff(initial, i) before the next attempt; the last failure is returned
// without waiting.
func (c caller) call(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxRetries; attempt++ {
		out, err := c.gen.Generate(ctx, prompt)
		if err == nil {
			metrics.ObserveEnrichmentCall(c.operation, "ok")
			return out, nil
		}
		lastErr = err
		kind := "error"
		if IsQuotaError(err) {
			kind = "quota"
		}
		metrics.ObserveEnrichmentCall(c.operation, kind)
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", c.operation, ctx.Err())
		}
		if attempt == c.retry.MaxRetries-1 {
			break
		}
		wait := Backoff(c.retry.InitialWait, attempt)
		c.logger.Warn("model call failed, retrying",
			zap.String("operation", c.operation),
			zap.String("kind", kind),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := c.retry.Sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%s: %w", c.operation, err)
		}
	}
	c.logger.Error("model call failed after retries",
		zap.String("operation", c.operation),
		zap.Int("attempts", c.retry.MaxRetries),
		zap.Error(lastErr),
	)
	return "", fmt.Errorf("%s failed after %d attempts: %w", c.operation, c.retry.MaxRetries, lastErr)
}
