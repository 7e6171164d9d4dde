// Package pool owns the live backend connections. Connections are dialed
// lazily, handed out one per in-flight operation as a lease, and either
// returned healthy or closed and replaced. Nothing outside this package
// holds a connection that is not wrapped in a lease.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/querygate/querygate/internal/errors"
)

// Conn is the minimal surface the pool needs from a backend session.
// Adapters supply concrete implementations.
type Conn interface {
	// Ping checks liveness; the pool calls it before handing out an idle
	// connection.
	Ping(ctx context.Context) error
	Close() error
}

// Factory dials one new backend session.
type Factory func(ctx context.Context) (Conn, error)

// Pool is a fixed-size lease pool. The slot channel carries one token per
// slot: a nil token is an undialed slot, a non-nil token is an idle
// connection. Channel capacity equals pool size, so returning a token never
// blocks and the number of outstanding leases can never exceed the size.
type Pool struct {
	factory Factory
	wait    time.Duration
	slots   chan Conn

	inUse     atomic.Int64
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a pool of size slots. wait bounds how long Acquire blocks on
// an exhausted pool before failing with ErrPoolExhausted.
func New(factory Factory, size int, wait time.Duration) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if wait <= 0 {
		return nil, fmt.Errorf("acquire wait must be positive, got %s", wait)
	}

	p := &Pool{
		factory: factory,
		wait:    wait,
		slots:   make(chan Conn, size),
		closed:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p, nil
}

// Acquire blocks until a slot is free, up to the configured wait, then
// fails with ErrPoolExhausted. An idle connection found dead is closed and
// replaced transparently.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case <-p.closed:
		return nil, errors.Unavailable(fmt.Errorf("pool is closed"))
	default:
	}

	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	var conn Conn
	select {
	case conn = <-p.slots:
	case <-timer.C:
		return nil, fmt.Errorf("%w: no connection free within %s", errors.ErrPoolExhausted, p.wait)
	case <-ctx.Done():
		return nil, errors.Unavailable(ctx.Err())
	case <-p.closed:
		return nil, errors.Unavailable(fmt.Errorf("pool is closed"))
	}

	if conn != nil {
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			conn = nil
		}
	}
	if conn == nil {
		dialed, err := p.factory(ctx)
		if err != nil {
			// Hand the empty slot back before reporting failure.
			p.slots <- nil
			return nil, errors.Unavailable(err)
		}
		conn = dialed
	}

	p.inUse.Add(1)
	return &Lease{pool: p, conn: conn}, nil
}

// InUse reports the number of connections currently lent out.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Close shuts the pool and closes every idle connection. Connections still
// lent out are closed when their lease is released.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case conn := <-p.slots:
				if conn != nil {
					conn.Close()
				}
			default:
				return
			}
		}
	})
	return nil
}

func (p *Pool) put(conn Conn, healthy bool) {
	p.inUse.Add(-1)

	select {
	case <-p.closed:
		if conn != nil {
			conn.Close()
		}
		return
	default:
	}

	if !healthy {
		if conn != nil {
			conn.Close()
		}
		p.slots <- nil
		return
	}
	p.slots <- conn
}

// Lease is exclusive ownership of one connection for the duration of one
// operation.
type Lease struct {
	pool *Pool
	conn Conn
	once sync.Once
}

// Conn returns the leased connection. Callers must not retain it past
// Release.
func (l *Lease) Conn() Conn { return l.conn }

// Release returns the connection to the pool. healthy=false closes it and
// frees the slot for a replacement instead; use that after timeouts,
// protocol errors, or any failure that leaves the session state unknown.
// Release is idempotent.
func (l *Lease) Release(healthy bool) {
	l.once.Do(func() {
		l.pool.put(l.conn, healthy)
		l.conn = nil
	})
}
