// Package governor bounds the cost of a single backend call: wall-clock
// time via a context deadline and result size via a capped row sink. Limits
// come from configuration per backend handle, not per request.
package governor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/querygate/querygate/internal/errors"
	"github.com/querygate/querygate/internal/result"
)

// Governor holds the per-backend execution bounds. The zero value is not
// usable; construct with the configured limits.
type Governor struct {
	Timeout time.Duration
	MaxRows int
}

// WithMaxRows returns a copy with a tighter row cap, used for per-request
// limit overrides. Requests can narrow the cap, never widen it.
func (g Governor) WithMaxRows(max int) Governor {
	if max > 0 && max < g.MaxRows {
		g.MaxRows = max
	}
	return g
}

// RowSink collects rows during adapter execution and stops accepting them
// once the cap is reached. Adapters must stop pulling from the backend as
// soon as Push returns false.
type RowSink struct {
	rows      []result.Record
	max       int
	truncated bool
}

// Push appends a record if the cap has room. The first push past the cap
// flips the truncated flag and is discarded, so a sink never holds more
// than max rows and the flag is only set when rows were actually dropped.
func (s *RowSink) Push(rec result.Record) bool {
	if s.max > 0 && len(s.rows) >= s.max {
		s.truncated = true
		return false
	}
	s.rows = append(s.rows, rec)
	return true
}

// Remaining reports how many more rows the sink accepts, for adapters that
// can push the limit down into the backend query.
func (s *RowSink) Remaining() int {
	if s.max <= 0 {
		return -1
	}
	return s.max - len(s.rows)
}

// Run executes fn under the governor's deadline and returns the normalized
// envelope. Driver errors are translated into the gateway taxonomy here;
// nothing below this boundary leaks a raw driver error to the caller.
//
// A deadline hit leaves the backend connection in an indeterminate state.
// Callers must treat a Timeout (or Unavailable) result as grounds to
// discard the connection used.
func (g Governor) Run(ctx context.Context, fn func(context.Context, *RowSink) error) (*result.Envelope, error) {
	runCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	sink := &RowSink{max: g.MaxRows}
	start := time.Now()
	err := fn(runCtx, sink)
	elapsed := time.Since(start)

	if err != nil {
		return nil, g.translate(runCtx, err, elapsed)
	}

	return result.Normalize(sink.rows, g.MaxRows, sink.truncated, elapsed), nil
}

// Bound derives the deadline context for one operation. Non-row operations
// (list, describe, count) use this directly with Classify.
func (g Governor) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.Timeout)
}

// Classify translates an execution error into the gateway taxonomy. A nil
// error stays nil.
func (g Governor) Classify(runCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return g.translate(runCtx, err, 0)
}

func (g Governor) translate(runCtx context.Context, err error, elapsed time.Duration) error {
	// Errors already in the taxonomy pass through untouched.
	if errors.Is(err, errors.ErrAdmissionDenied) ||
		errors.Is(err, errors.ErrNotFound) ||
		errors.Is(err, errors.ErrTimeout) ||
		errors.Is(err, errors.ErrUnavailable) {
		return err
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
		detail := fmt.Sprintf("exceeded %s", g.Timeout)
		if elapsed > 0 {
			detail = fmt.Sprintf("exceeded %s after %s", g.Timeout, elapsed.Round(time.Millisecond))
		}
		return errors.Timeout(detail)
	}

	return errors.Unavailable(err)
}
