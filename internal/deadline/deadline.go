// Package deadline bounds remote calls with a hard wall-clock limit.
//
// The PSN API has no documented latency bound and can stall on a single
// request. Every remote call in the sync hot path runs through Run so that
// one slow title cannot stall the whole run: when the deadline elapses the
// caller gets util.ErrTimeout immediately and the call is abandoned. The
// abandoned goroutine receives a cancelled context, so a cooperative callee
// (the HTTP client honors cancellation) stops shortly after, but Run never
// waits for it.
package deadline

import (
	"context"
	"time"

	"github.com/franz/trophy-janitor/internal/util"
)

// Run executes fn with a hard wall-clock deadline.
//
// A non-positive timeout means unbounded: fn runs inline under the parent
// context. On expiry the result channel is abandoned (buffered, so the
// goroutine never leaks on send) and util.ErrTimeout is returned.
func Run[T any](parent context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithTimeout(parent, timeout)

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer cancel()
		v, err := fn(ctx)
		ch <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-timer.C:
		var zero T
		return zero, util.ErrTimeout
	case <-parent.Done():
		cancel()
		var zero T
		return zero, parent.Err()
	}
}
