// Package sqlited is the thin, user-facing client facade: Connection,
// Command and Reader mirror the normal embedded database client
// surface, whether the connection currently drives SQLite locally (as
// leader) or relays it to a leader elsewhere (as follower) (spec §1,
// §4.6).
package sqlited

import (
	"context"
	"sync"
	"time"

	"github.com/hnjm/SQLiteServer/internal/control"
	"github.com/hnjm/SQLiteServer/internal/engine"
	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/logger"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

// DefaultTimeout is used when the connection string carries no
// DefaultTimeout option (spec §6: "0 = no timeout" is a valid
// explicit choice, distinct from this package default).
const DefaultTimeout = 30 * time.Second

// Connection holds a connection string, the controller mediating
// access to the database, and tracks whether it has been closed
// (spec §3 Connection).
type Connection struct {
	opts       Options
	controller *control.Controller

	mu            sync.Mutex
	closed        bool
	electorCancel context.CancelFunc
}

// Open parses dsn and starts the connection's controller in the
// Connecting role; callers that want this process to become a leader
// or a follower must call RunLeader or DialFollower (or supply their
// own control.Elector via OpenWithElector).
func Open(dsn string) (*Connection, error) {
	opts, err := ParseOptions(dsn)
	if err != nil {
		return nil, err
	}
	return &Connection{
		opts:       opts,
		controller: control.NewController(),
	}, nil
}

// OpenWithElector parses dsn like Open, then hands role transitions
// over to elector: onLeader opens a local Engine against sqliteDSN,
// onFollower dials the address elector supplies, and onConnecting
// falls back to the Connecting role (spec §1's election/discovery
// seam, driven here instead of by direct RunLeader/DialFollower
// calls). The elector runs on its own goroutine until the Connection
// is closed.
func OpenWithElector(dsn string, elector control.Elector, sqliteDSN string) (*Connection, error) {
	opts, err := ParseOptions(dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		opts:          opts,
		controller:    control.NewController(),
		electorCancel: cancel,
	}

	go func() {
		err := elector.Run(ctx,
			func() {
				if _, err := c.RunLeader(sqliteDSN); err != nil {
					logger.Error("elector: failed to become leader", logger.Ctx{"err": err})
				}
			},
			func(address string) {
				dialCtx, dialCancel := context.WithTimeout(ctx, DefaultTimeout)
				defer dialCancel()
				if err := c.DialFollower(dialCtx, address); err != nil {
					logger.Error("elector: failed to dial leader", logger.Ctx{"err": err, "address": address})
				}
			},
			c.controller.BecomeConnecting,
		)
		if err != nil && ctx.Err() == nil {
			logger.Warn("elector stopped unexpectedly", logger.Ctx{"err": err})
		}
	}()

	return c, nil
}

// RunLeader opens a local Engine against sqliteDSN; the connection
// itself becomes Leader immediately, usable for in-process commands
// with no network hop (spec §4.5 create_command Leader branch).
// Serving followers over the network is a separate step, performed by
// handing the returned Engine to engine.NewServer.
func (c *Connection) RunLeader(sqliteDSN string) (*engine.Engine, error) {
	e, err := engine.Open(sqliteDSN)
	if err != nil {
		return nil, err
	}
	c.controller.BecomeLeader(e)
	return e, nil
}

// DialFollower dials a leader at address and transitions the
// connection to Follower, relaying every subsequent command over the
// resulting transport (spec §4.5 create_command Follower branch).
func (c *Connection) DialFollower(ctx context.Context, address string) error {
	conn, err := dialTCP(ctx, address)
	if err != nil {
		return errs.Disconnected(err)
	}
	t := wire.NewTransport(conn, func(wire.Message) {
		logger.Warn("unsolicited frame from leader ignored", nil)
	})
	c.controller.BecomeFollower(t)
	return nil
}

// Role reports the connection's current role.
func (c *Connection) Role() control.Role {
	return c.controller.Role()
}

// Stats reports live-handle occupancy when this connection is Leader
// (SPEC_FULL.md §10 health surface).
func (c *Connection) Stats() engine.Stats {
	return c.controller.Stats()
}

// CreateCommand returns a new, empty Command bound to this
// connection. It does not itself touch the network or SQLite; the
// worker is created lazily on first execute (spec §3 Command, §4.6).
func (c *Connection) CreateCommand() *Command {
	timeout := DefaultTimeout
	if c.opts.HasDefaultTimeout {
		timeout = c.opts.DefaultTimeout
	}
	return &Command{conn: c, timeout: timeout}
}

// Close marks the connection closed and releases its controller,
// cancelling any parked WaitIfConnecting callers with Disconnected.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.electorCancel != nil {
		c.electorCancel()
	}
	c.controller.Close()
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
