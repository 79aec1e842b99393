package engine

import (
	"context"
	"fmt"
	"time"
)

// ErrEngineExited is returned by WaitReady when the engine process exits
// before its control API answers.
var ErrEngineExited = fmt.Errorf("%w: engine exited before becoming ready", ErrStartup)

// readyAttemptTimeout bounds one readiness request.
const readyAttemptTimeout = time.Second

// WaitReady polls the control API every interval until it answers, the
// timeout elapses, ctx is cancelled or exited is closed. A nil exited
// channel is never closed.
func WaitReady(ctx context.Context, client *Client, interval, timeout time.Duration, exited <-chan struct{}) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, min(readyAttemptTimeout, timeout))
		lastErr = client.Ready(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return ErrEngineExited
		case <-deadline.C:
			return fmt.Errorf("%w: control API not ready after %s: %w", ErrStartup, timeout, lastErr)
		case <-ticker.C:
		}
	}
}
