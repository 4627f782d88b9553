package reconcile

import (
	"context"
	"time"
)

// SourceReport describes one enumeration call.
type SourceReport struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// OK reports whether the source returned data.
func (r SourceReport) OK() bool {
	return r.Error == "" && !r.TimedOut
}

type outcome[T any] struct {
	value   T
	err     error
	elapsed time.Duration
}

// await runs fn in its own goroutine and waits for it or for ctx. When ctx
// wins, the late value is passed to discard once fn finally returns, so that
// resources it carries can be released.
func await[T any](ctx context.Context, fn func(context.Context) (T, error), discard func(T)) (T, SourceReport) {
	ch := make(chan outcome[T], 1)
	start := time.Now()

	go func() {
		v, err := fn(ctx)
		ch <- outcome[T]{value: v, err: err, elapsed: time.Since(start)}
	}()

	var zero T
	select {
	case o := <-ch:
		rep := SourceReport{Elapsed: o.elapsed}
		if o.err != nil {
			rep.Error = o.err.Error()
			// fn may have noticed the deadline before we did.
			rep.TimedOut = ctx.Err() != nil
		}
		return o.value, rep
	case <-ctx.Done():
		if discard != nil {
			go func() {
				if o := <-ch; o.err == nil {
					discard(o.value)
				}
			}()
		}
		return zero, SourceReport{Elapsed: time.Since(start), Error: ctx.Err().Error(), TimedOut: true}
	}
}
