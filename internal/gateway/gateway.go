// Package gateway is the single entry point for the five read-only
// operations. It composes admission, the connection pool, the resource
// governor, and the backend adapter per request, and emits one structured
// log line per operation.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/backend"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/errors"
	"github.com/querygate/querygate/internal/governor"
	"github.com/querygate/querygate/internal/metric"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/result"
)

// Gateway mediates every operation against one configured backend.
type Gateway struct {
	cfg     *config.Config
	adapter backend.Adapter
	pool    *pool.Pool
	gov     governor.Governor
	log     *slog.Logger
}

// New connects the adapter and builds the pool. The configuration is
// read-only from here on.
func New(ctx context.Context, cfg *config.Config, adapter backend.Adapter, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}

	p, err := pool.New(adapter.NewConn, cfg.PoolSize, cfg.AcquireWait)
	if err != nil {
		adapter.Close()
		return nil, err
	}

	return &Gateway{
		cfg:     cfg,
		adapter: adapter,
		pool:    p,
		gov:     governor.Governor{Timeout: cfg.MaxQueryTime, MaxRows: cfg.MaxRows},
		log:     log,
	}, nil
}

// Close releases the pool and the underlying client.
func (g *Gateway) Close() error {
	g.pool.Close()
	return g.adapter.Close()
}

// Family reports the configured backend family.
func (g *Gateway) Family() admission.Family { return g.adapter.Family() }

// ListObjects returns the backend's table or collection names.
func (g *Gateway) ListObjects(ctx context.Context) ([]string, error) {
	var names []string
	err := g.run(ctx, "list_objects", "", "", func(runCtx context.Context, conn pool.Conn) error {
		var err error
		names, err = g.adapter.ListObjects(runCtx, conn)
		return err
	})
	return names, err
}

// DescribeSchema returns the structured descriptor for one object. Repeated
// calls with an unchanged backend yield identical descriptors: nothing here
// is cached or randomized apart from document sampling.
func (g *Gateway) DescribeSchema(ctx context.Context, target string) (*result.Schema, error) {
	var schema *result.Schema
	err := g.run(ctx, "describe_schema", target, "", func(runCtx context.Context, conn pool.Conn) error {
		var err error
		schema, err = g.adapter.Describe(runCtx, conn, target)
		return err
	})
	return schema, err
}

// Query executes a read-only payload: free-form SQL for relational
// families, a JSON find spec for the document family. limit narrows the
// configured row cap for this request; it can never widen it.
func (g *Gateway) Query(ctx context.Context, target, payload string, limit int) (*result.Envelope, error) {
	verdict, parsedOK := g.admitQuery(target, payload)
	if !parsedOK {
		return nil, g.denied("query", target, payload, verdict.Reason)
	}

	gov := g.gov.WithMaxRows(limit)
	return g.runRows(ctx, gov, "query", target, payload, func(runCtx context.Context, conn pool.Conn, sink *governor.RowSink) error {
		return g.adapter.Query(runCtx, conn, target, verdict.SanitizedQuery, sink)
	})
}

// Aggregate executes an admitted structured pipeline against one object.
func (g *Gateway) Aggregate(ctx context.Context, target string, stages []admission.Stage) (*result.Envelope, error) {
	verdict := g.adapter.Vocabulary().ValidatePipeline(stages)
	if !verdict.Allowed {
		return nil, g.denied("aggregate", target, "", verdict.Reason)
	}

	return g.runRows(ctx, g.gov, "aggregate", target, "", func(runCtx context.Context, conn pool.Conn, sink *governor.RowSink) error {
		return g.adapter.Aggregate(runCtx, conn, target, verdict.Pipeline, sink)
	})
}

// Count returns the number of rows or documents in an object, optionally
// matching a structured filter (document family only).
func (g *Gateway) Count(ctx context.Context, target string, filter map[string]any) (int64, error) {
	if len(filter) > 0 {
		if verdict := g.adapter.Vocabulary().ValidateFilter(filter); !verdict.Allowed {
			return 0, g.denied("count", target, "", verdict.Reason)
		}
	}

	var count int64
	err := g.run(ctx, "count", target, "", func(runCtx context.Context, conn pool.Conn) error {
		var err error
		count, err = g.adapter.Count(runCtx, conn, target, filter)
		return err
	})
	return count, err
}

// admitQuery routes the payload to the right validator for the backend
// family. For document backends the payload must parse as a JSON object
// and its filter must be clean; relational payloads go through the SQL
// vocabulary.
func (g *Gateway) admitQuery(target, payload string) (admission.Verdict, bool) {
	vocab := g.adapter.Vocabulary()

	if g.adapter.Family() == admission.FamilyDocument {
		if target == "" {
			return admission.Verdict{Reason: "document queries require a target collection"}, false
		}
		doc, err := backend.ParseFindSpec(payload)
		if err != nil {
			return admission.Verdict{Reason: err.Error()}, false
		}
		if verdict := vocab.ValidateFilter(doc); !verdict.Allowed {
			return verdict, false
		}
		return admission.Verdict{Allowed: true, SanitizedQuery: payload}, true
	}

	verdict := vocab.ValidateQuery(payload)
	return verdict, verdict.Allowed
}

// run acquires a lease, executes fn under the governor deadline, and
// releases the connection with its health flag on every exit path.
func (g *Gateway) run(ctx context.Context, kind, target, payload string, fn func(context.Context, pool.Conn) error) error {
	start := time.Now()
	requestID := uuid.NewString()

	lease, err := g.pool.Acquire(ctx)
	if err != nil {
		g.observe(requestID, kind, target, payload, time.Since(start), false, err)
		return err
	}
	metric.SetPoolInUse(string(g.Family()), g.pool.InUse())

	runCtx, cancel := g.gov.Bound(ctx)
	defer cancel()

	err = g.gov.Classify(runCtx, fn(runCtx, lease.Conn()))
	lease.Release(connHealthy(err))
	metric.SetPoolInUse(string(g.Family()), g.pool.InUse())

	g.observe(requestID, kind, target, payload, time.Since(start), false, err)
	return err
}

// runRows is the envelope-returning variant of run.
func (g *Gateway) runRows(ctx context.Context, gov governor.Governor, kind, target, payload string, fn func(context.Context, pool.Conn, *governor.RowSink) error) (*result.Envelope, error) {
	start := time.Now()
	requestID := uuid.NewString()

	lease, err := g.pool.Acquire(ctx)
	if err != nil {
		g.observe(requestID, kind, target, payload, time.Since(start), false, err)
		return nil, err
	}
	metric.SetPoolInUse(string(g.Family()), g.pool.InUse())

	envelope, err := gov.Run(ctx, func(runCtx context.Context, sink *governor.RowSink) error {
		return fn(runCtx, lease.Conn(), sink)
	})
	lease.Release(connHealthy(err))
	metric.SetPoolInUse(string(g.Family()), g.pool.InUse())

	truncated := envelope != nil && envelope.Truncated
	g.observe(requestID, kind, target, payload, time.Since(start), truncated, err)
	return envelope, err
}

// denied logs and wraps an admission rejection. No connection was touched.
func (g *Gateway) denied(kind, target, payload, reason string) error {
	err := errors.Denied(reason)
	g.observe(uuid.NewString(), kind, target, payload, 0, false, err)
	return err
}

// connHealthy decides whether the connection that served the operation can
// be reused. Admission and not-found outcomes never touched the session
// state; timeouts and backend faults leave it indeterminate.
func connHealthy(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, errors.ErrAdmissionDenied) || errors.Is(err, errors.ErrNotFound)
}

// observe emits the per-request log line and metrics. Payload content is
// included only when query logging is enabled.
func (g *Gateway) observe(requestID, kind, target, payload string, elapsed time.Duration, truncated bool, err error) {
	outcome := outcomeLabel(err)
	metric.ObserveRequest(kind, outcome, elapsed)

	attrs := []any{
		slog.String("request_id", requestID),
		slog.String("kind", kind),
		slog.String("target", target),
		slog.Duration("elapsed", elapsed),
		slog.Bool("truncated", truncated),
		slog.String("outcome", outcome),
	}
	if g.cfg.EnableQueryLogging && payload != "" {
		attrs = append(attrs, slog.String("payload", payload))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		g.log.Warn("operation failed", attrs...)
		return
	}
	g.log.Info("operation completed", attrs...)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrAdmissionDenied):
		return "admission_denied"
	case errors.Is(err, errors.ErrTimeout):
		return "timeout"
	case errors.Is(err, errors.ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
