package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rias-ai/research-engine/internal/domain"
)

// Runner invokes one stage for one document and normalizes whatever comes
// back into a Result. This is the single point where a stage's internal
// failure becomes data rather than a crash.
type Runner struct {
	// timeout bounds a single invocation; zero disables the bound.
	timeout time.Duration
}

// NewRunner creates a runner. A non-zero timeout converts a hung stage into
// an error result instead of blocking its phase forever.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run executes the stage and never returns a raw failure: errors, panics and
// timeouts all come back as error results.
func (r *Runner) Run(ctx context.Context, stage Stage, inv Invocation) Result {
	if r.timeout <= 0 {
		return normalize(invoke(ctx, stage, inv))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- normalize(invoke(ctx, stage, inv))
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// The invocation goroutine keeps running until the stage notices
		// cancellation; its result is discarded.
		return ErrorResult(domain.StageExecError(
			fmt.Sprintf("stage %s timed out after %v", stage.Code, r.timeout), ctx.Err()))
	}
}

// invoke calls the handle with panic recovery.
func invoke(ctx context.Context, stage Stage, inv Invocation) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.StageExecError(fmt.Sprintf("stage %s panicked: %v", stage.Code, rec), nil)
		}
	}()
	return stage.Handle.Invoke(ctx, inv)
}

// normalize converts the (Result, error) pair into a well-formed Result.
// A handle that returns neither an error nor a status produced a
// non-conforming value; it is treated as a bare success.
func normalize(res Result, err error) Result {
	if err != nil {
		return ErrorResult(err)
	}
	if res.Status == "" {
		res.Status = StatusSuccess
		if res.Summary == "" {
			res.Summary = "done"
		}
	}
	if res.Status == StatusError && res.Error == "" {
		res.Error = res.Summary
	}
	return res
}
