// Package backend translates the gateway's normalized operations into
// backend-native calls. One adapter exists per backend family; all of them
// trust that admission already ran, but still lean on whatever read-only
// enforcement the backend itself offers.
package backend

import (
	"context"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/governor"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/result"
)

// Adapter is the contract every backend family implements. Each operation
// runs over exactly one pooled connection supplied by the caller, and
// returns either normalized results (via the sink) or a taxonomy error.
type Adapter interface {
	// Family identifies the vocabulary this adapter validates against.
	Family() admission.Family

	// Vocabulary returns the admission capability table entry for this
	// backend, resolved once at construction.
	Vocabulary() *admission.Vocabulary

	// Connect establishes the underlying client and verifies reachability.
	Connect(ctx context.Context) error

	// Close releases the underlying client.
	Close() error

	// NewConn dials one pooled session. Used as the pool factory.
	NewConn(ctx context.Context) (pool.Conn, error)

	// ListObjects returns the backend's object names in stable order.
	ListObjects(ctx context.Context, conn pool.Conn) ([]string, error)

	// Describe returns the structured schema of one object.
	Describe(ctx context.Context, conn pool.Conn, target string) (*result.Schema, error)

	// Query executes an admitted read payload, pushing rows into the sink
	// until it refuses more.
	Query(ctx context.Context, conn pool.Conn, target, payload string, sink *governor.RowSink) error

	// Aggregate executes an admitted pipeline against one object.
	Aggregate(ctx context.Context, conn pool.Conn, target string, pipeline []admission.Stage, sink *governor.RowSink) error

	// Count returns the number of rows or documents matching the filter.
	Count(ctx context.Context, conn pool.Conn, target string, filter map[string]any) (int64, error)
}
