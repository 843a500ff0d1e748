// Package utils holds small helpers shared across the pipeline stages.
package utils

import (
	"context"
	"time"
)

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if len(v) > 0 {
			for _, r := range v {
				if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
					return v
				}
			}
		}
	}
	return ""
}
