package runtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/modelclient"
)

// Retry tunables, grounded on the teacher's internal/agent/retry.go.
const (
	maxRetries       = 5
	retryInitialWait = 2 * time.Second
	retryMaxWait     = 30 * time.Second
	retryMultiplier  = 2
)

// transientMarkers are substrings of lower-level transport errors that are
// worth retrying even though they didn't come back as a structured
// modelclient.APIError (e.g. a dropped connection mid-stream).
var transientMarkers = []string{
	"connection reset",
	"unexpected eof",
	"timeout",
	"temporary failure",
	"broken pipe",
}

func isStreamError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func retryable(err error) (bool, time.Duration) {
	var apiErr *modelclient.APIError
	if errors.As(err, &apiErr) {
		if !apiErr.IsRetryable() {
			return false, 0
		}
		if apiErr.RetryAfterMs > 0 {
			return true, time.Duration(apiErr.RetryAfterMs) * time.Millisecond
		}
		return true, 0
	}
	return isStreamError(err), 0
}

// streamWithRetry wraps one model call with exponential backoff on
// transient failures, publishing a Retrying event (supplemented, §3 extends
// StreamEvent with non-required variants) before each sleep so a listening
// UI can show the attempt count.
func streamWithRetry(
	ctx context.Context,
	client modelclient.Client,
	b *bus.Bus,
	model string,
	messages []domain.Message,
	tools []domain.ToolSpec,
	system string,
	onDelta modelclient.OnDelta,
) ([]domain.Part, modelclient.StopReason, modelclient.Usage, error) {
	wait := retryInitialWait

	for attempt := 1; ; attempt++ {
		parts, stop, usage, err := client.Stream(ctx, model, messages, tools, system, onDelta)
		if err == nil {
			return parts, stop, usage, nil
		}
		if ctx.Err() != nil {
			return nil, "", modelclient.Usage{}, err
		}

		ok, retryAfter := retryable(err)
		if !ok || attempt >= maxRetries {
			return nil, "", modelclient.Usage{}, err
		}

		delay := wait
		if retryAfter > 0 {
			delay = retryAfter
		}
		if delay > retryMaxWait {
			delay = retryMaxWait
		}

		b.Publish(domain.StreamEvent{
			Kind:         domain.EventRetrying,
			RetryAttempt: attempt,
			RetryAfterMs: delay.Milliseconds(),
			RetryMessage: err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, "", modelclient.Usage{}, ctx.Err()
		}
		wait *= retryMultiplier
	}
}
