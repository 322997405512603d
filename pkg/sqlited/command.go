package sqlited

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hnjm/SQLiteServer/internal/dbconn"
	"github.com/hnjm/SQLiteServer/internal/errs"
)

// Command mirrors the normal embedded database command surface: text,
// timeout, execute, dispose (spec §3 Command, §4.6, §6 "Client API
// surface").
type Command struct {
	conn        *Connection
	commandText string
	timeout     time.Duration

	mu       sync.Mutex
	worker   dbconn.Command
	disposed bool
}

// CommandText returns the SQL text currently set on the command.
func (c *Command) CommandText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandText
}

// SetCommandText sets the SQL text to execute. It may be called
// repeatedly before the first execute; once a worker has been bound,
// spec leaves rebinding undefined, so this implementation simply
// updates the stored text without affecting an already-bound worker
// (the caller should Dispose and create a new Command to change the
// statement after first execute).
func (c *Command) SetCommandText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandText = text
}

// CommandTimeout returns the command's timeout.
func (c *Command) CommandTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// SetCommandTimeout overrides the connection-string default timeout
// for this command.
func (c *Command) SetCommandTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// validate checks the invariants common to every execute call (spec
// §4.6 validation contract): not disposed, connection present,
// command text non-empty and non-whitespace.
func (c *Command) validate() error {
	if c.disposed {
		return errs.ObjectDisposed("command")
	}
	if c.conn == nil {
		return errs.InvalidOperation("command has no connection")
	}
	if c.conn.isClosed() {
		return errs.Disconnected(nil)
	}
	if strings.TrimSpace(c.commandText) == "" {
		return errs.InvalidOperation("command text must not be empty")
	}
	return nil
}

// bind lazily creates the underlying worker on first execute, at most
// once for the command's lifetime (spec §3 Command invariant).
func (c *Command) bind(ctx context.Context) (dbconn.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.worker != nil {
		return c.worker, nil
	}
	w, err := c.conn.controller.CreateCommand(ctx, c.commandText, c.timeout)
	if err != nil {
		return nil, err
	}
	c.worker = w
	return w, nil
}

// ExecuteNonQueryContext executes the command and returns the number
// of rows affected (spec §4.6, §6 ExecuteNonQuery).
func (c *Command) ExecuteNonQueryContext(ctx context.Context) (int32, error) {
	w, err := c.bind(ctx)
	if err != nil {
		return 0, err
	}
	return w.ExecuteNonQuery()
}

// ExecuteNonQuery is the synchronous wrapper around
// ExecuteNonQueryContext with a background context (spec §9). The
// path below it reports at most one error, which is returned as it is.
func (c *Command) ExecuteNonQuery() (int32, error) {
	return c.ExecuteNonQueryContext(context.Background())
}

// ExecuteReaderContext executes the command and returns a Reader over
// its result set, with the given command behavior flag (spec §3, §4.6,
// §6 ExecuteReader). behavior 0 means the default.
func (c *Command) ExecuteReaderContext(ctx context.Context, behavior uint32) (*Reader, error) {
	w, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}
	rw, err := w.ExecuteReader(behavior)
	if err != nil {
		return nil, err
	}
	return &Reader{conn: c.conn, worker: rw, behavior: behavior, state: stateBeforeFirst}, nil
}

// ExecuteReader is the synchronous wrapper around
// ExecuteReaderContext using the default command behavior.
func (c *Command) ExecuteReader() (*Reader, error) {
	return c.ExecuteReaderContext(context.Background(), 0)
}

// Dispose releases the command's remote or local resources.
// Disposal is best-effort: the worker's own Dispose swallows errors
// (spec §4.4, §7), and Dispose on an already-disposed command is a
// no-op.
func (c *Command) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	if c.worker != nil {
		c.worker.Dispose()
	}
}
