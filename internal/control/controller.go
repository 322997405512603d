// Package control implements the connection controller: leader
// election bookkeeping, reconnection, and the "wait if connecting"
// blocking discipline that lets callers ride out a leadership
// transition instead of observing it as an error (spec §4.5).
package control

import (
	"context"
	"sync"
	"time"

	"github.com/hnjm/SQLiteServer/internal/dbconn"
	"github.com/hnjm/SQLiteServer/internal/engine"
	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/local"
	"github.com/hnjm/SQLiteServer/internal/logger"
	"github.com/hnjm/SQLiteServer/internal/wire"
	"github.com/hnjm/SQLiteServer/internal/worker"
)

// Role is one of the three states a Controller cycles through (spec
// §4.5: "Disconnected → Connecting → (Leader | Follower) → Connecting
// → ..."; this Controller treats the initial state as Connecting,
// folding spec's "Disconnected" startup state into it, since both
// block wait_if_connecting identically).
type Role int

const (
	RoleConnecting Role = iota
	RoleLeader
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleConnecting:
		return "Connecting"
	case RoleLeader:
		return "Leader"
	case RoleFollower:
		return "Follower"
	default:
		return "Unknown"
	}
}

// Controller mediates access to the database, holding either a local
// Engine (Leader) or a remote Transport (Follower), exactly one at a
// time, exposed through the role-agnostic CreateCommand method (spec
// §4.5, §4.6).
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	role    Role
	gate    chan struct{}
	engine  *engine.Engine
	transport *wire.Transport
}

// NewController creates a Controller starting in the Connecting role.
// Callers drive it to Leader or Follower with BecomeLeader/
// BecomeFollower once election (out of scope for this package, per
// spec §1) assigns a role.
func NewController() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:    ctx,
		cancel: cancel,
		role:   RoleConnecting,
		gate:   make(chan struct{}),
	}
}

// Role returns the controller's current role.
func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// BecomeLeader transitions the controller to Leader, backed by
// engine. Any transport from a previous Follower stint is dropped.
func (c *Controller) BecomeLeader(e *engine.Engine) {
	c.transition(RoleLeader, e, nil)
}

// BecomeFollower transitions the controller to Follower, backed by
// t. Any engine from a previous Leader stint is dropped. The
// controller watches t for disconnection and falls back to
// Connecting on its own, implementing spec §4.5's reconnection
// policy without the caller having to poll.
func (c *Controller) BecomeFollower(t *wire.Transport) {
	c.transition(RoleFollower, nil, t)

	go func() {
		select {
		case <-t.Done():
			c.mu.Lock()
			stillCurrent := c.transport == t
			c.mu.Unlock()
			if stillCurrent {
				c.BecomeConnecting()
			}
		case <-c.ctx.Done():
		}
	}()
}

// BecomeConnecting transitions the controller back to Connecting, as
// happens on transport loss (spec §4.5 reconnection policy): the old
// transport is closed, so every outstanding worker bound to it fails
// with Disconnected, and callers parked in WaitIfConnecting stay
// parked until the next BecomeLeader/BecomeFollower. Local workers
// created while Leader are not invalidated: they keep calling the
// engine they were bound to.
func (c *Controller) BecomeConnecting() {
	c.transition(RoleConnecting, nil, nil)
}

func (c *Controller) transition(role Role, e *engine.Engine, t *wire.Transport) {
	c.mu.Lock()
	oldGate := c.gate
	oldTransport := c.transport
	c.role = role
	c.engine = e
	c.transport = t
	c.gate = make(chan struct{})
	c.mu.Unlock()

	close(oldGate)
	if oldTransport != nil && oldTransport != t {
		_ = oldTransport.Close()
	}
	logger.Info("connection role changed", logger.Ctx{"role": role.String()})
}

// WaitIfConnecting blocks until the controller leaves the Connecting
// role, or ctx is done (spec §4.5 wait_if_connecting).
func (c *Controller) WaitIfConnecting(ctx context.Context) error {
	for {
		c.mu.Lock()
		role := c.role
		gate := c.gate
		c.mu.Unlock()

		if role != RoleConnecting {
			return nil
		}

		select {
		case <-gate:
			// Loop and re-check: the new role might itself be
			// Connecting again if a rapid reconnect occurred.
		case <-ctx.Done():
			return errs.New(errs.KindDisconnected, "wait_if_connecting cancelled")
		case <-c.ctx.Done():
			return errs.Disconnected(c.ctx.Err())
		}
	}
}

// CreateCommand waits for a settled role, then creates a command
// worker bound to whichever backend (local engine or remote
// transport) is current (spec §4.5 create_command, called lazily on
// first execute by the client command facade per spec §4.6).
func (c *Controller) CreateCommand(ctx context.Context, sqlText string, timeout time.Duration) (dbconn.Command, error) {
	if err := c.WaitIfConnecting(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	role := c.role
	e := c.engine
	t := c.transport
	c.mu.Unlock()

	switch role {
	case RoleLeader:
		return local.CreateCommand(e, sqlText)
	case RoleFollower:
		return worker.CreateCommand(t, sqlText, timeout)
	default:
		return nil, errs.Disconnected(nil)
	}
}

// Close cancels the controller's context, releasing any parked
// WaitIfConnecting callers with Disconnected.
func (c *Controller) Close() {
	c.cancel()
}

// Stats reports engine occupancy when this controller is Leader, for
// operational visibility (SPEC_FULL.md §10 health surface). It
// returns the zero value when not Leader.
func (c *Controller) Stats() engine.Stats {
	c.mu.Lock()
	e := c.engine
	c.mu.Unlock()
	if e == nil {
		return engine.Stats{}
	}
	return e.Stats()
}
