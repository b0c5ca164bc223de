// Package pool manages bounded sets of reusable logical connections, one
// pool per remote endpoint. Saturated acquisitions park on an explicit
// per-pool waiter queue that releases fulfill directly, so callers suspend on
// a channel with deadline and cancellation instead of polling for capacity.
package pool

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pool. Transitions are monotonic:
// active, then draining, then closed, never reversed.
type Status string

const (
	// StatusActive accepts acquisitions.
	StatusActive Status = "active"

	// StatusDraining rejects acquisitions and waits for in-flight
	// connections to be released.
	StatusDraining Status = "draining"

	// StatusClosed is terminal; the pool has been removed from the registry.
	StatusClosed Status = "closed"
)

// ConnStatus is the lifecycle state of one pooled connection.
type ConnStatus string

const (
	// ConnIdle means the connection is available for reuse.
	ConnIdle ConnStatus = "idle"

	// ConnActive means the connection is checked out to a caller.
	ConnActive ConnStatus = "active"

	// ConnClosing means the connection has been evicted or discarded and is
	// never reused.
	ConnClosing ConnStatus = "closing"
)

// Conn is one logical connection owned by exactly one pool. A caller owns
// the connection exclusively from acquisition until release and must not
// touch it afterwards; the manager mutates fields only under its lock.
type Conn struct {
	// ID uniquely identifies the connection within its pool.
	ID string

	// Status is active exactly while the connection is checked out.
	Status ConnStatus

	// CreatedAt records when the connection was established.
	CreatedAt time.Time

	// LastUsed is stamped on every acquisition and release.
	LastUsed time.Time

	// UseCount counts acquisitions, including direct handoffs to waiters.
	UseCount int64

	// Label describes the in-flight operation; empty while idle.
	Label string
}

// Options overrides the manager-wide pool defaults at creation time.
// Zero fields keep the defaults.
type Options struct {
	// MaxConns bounds the number of connections the pool may own.
	MaxConns int

	// AcquireTimeout bounds how long a saturated acquisition waits.
	AcquireTimeout time.Duration

	// IdleTimeout is how long a connection may idle before the reaper
	// evicts it.
	IdleTimeout time.Duration
}

// waiter is one parked acquisition. The channel is buffered so a release can
// deliver under the manager lock without blocking; a closed channel tells the
// waiter the pool started draining.
type waiter struct {
	ch    chan *Conn
	label string
}

// Pool is the bounded connection set for one endpoint. All fields are
// guarded by the owning manager's mutex.
type Pool struct {
	// ID is derived deterministically from the endpoint address.
	ID string

	// Endpoint is the remote address the pool serves.
	Endpoint string

	// MaxConns bounds len(conns) at all times.
	MaxConns int

	// AcquireTimeout bounds saturated acquisition waits.
	AcquireTimeout time.Duration

	// IdleTimeout is the reaper's idle eviction threshold.
	IdleTimeout time.Duration

	// Status transitions active -> draining -> closed.
	Status Status

	// CreatedAt records when the pool was created.
	CreatedAt time.Time

	conns   map[string]*Conn
	waiters []*waiter

	// drained is closed when a draining pool reaches zero connections.
	drained chan struct{}
}

// poolNamespace seeds deterministic pool IDs so the same endpoint always
// maps to the same identifier.
var poolNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("toolpool/pool"))

// ID returns the deterministic pool identifier for an endpoint address.
func ID(endpoint string) string {
	return uuid.NewSHA1(poolNamespace, []byte(endpoint)).String()
}

// counts returns the number of active and idle connections. Caller holds the
// manager lock. The invariant active + idle == len(conns) holds because a
// connection leaves the map the moment it transitions to closing.
func (p *Pool) counts() (active, idle int) {
	for _, c := range p.conns {
		switch c.Status {
		case ConnActive:
			active++
		case ConnIdle:
			idle++
		}
	}
	return active, idle
}

// takeIdle returns any idle connection, or nil. Caller holds the manager lock.
func (p *Pool) takeIdle() *Conn {
	for _, c := range p.conns {
		if c.Status == ConnIdle {
			return c
		}
	}
	return nil
}
