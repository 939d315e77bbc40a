package chain

import (
	"context"
	"fmt"
	"time"
)

// HeaderClock reports the timestamp of the latest block, so lock periods
// follow chain time instead of the local wall clock.
type HeaderClock struct {
	Headers    HeaderReader
	MaxRetries int
	BaseDelay  time.Duration
}

func (c *HeaderClock) Now(ctx context.Context) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, c.MaxRetries, c.BaseDelay, func(ctx context.Context) error {
		header, err := c.Headers.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		ts = header.Time
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("latest header: %w", err)
	}
	return ts, nil
}
