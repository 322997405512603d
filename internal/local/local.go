// Package local implements the command/reader worker contract
// (internal/dbconn) directly against an in-process leader engine, for
// the case where the connection controller finds itself holding the
// Leader role (spec §4.5 create_command: "in Leader state, constructs
// a local command worker that directly calls into SQLite").
package local

import (
	"github.com/hnjm/SQLiteServer/internal/dbconn"
	"github.com/hnjm/SQLiteServer/internal/engine"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

// LocalPeer is the PeerID reserved for in-process callers, distinct
// from the network peer ids engine.Server hands out to accepted
// connections (which start at 1).
const LocalPeer engine.PeerID = 0

var _ dbconn.Command = (*Command)(nil)
var _ dbconn.Reader = (*Reader)(nil)

// Command is a same-process command worker bound directly to an
// Engine, skipping the wire protocol entirely.
type Command struct {
	engine *engine.Engine
	handle wire.Handle
}

// CreateCommand prepares sqlText directly against engine (spec §4.3
// CreateCommandRequest, driven in-process rather than over the
// wire).
func CreateCommand(e *engine.Engine, sqlText string) (*Command, error) {
	handle, err := e.CreateCommand(LocalPeer, sqlText)
	if err != nil {
		return nil, err
	}
	return &Command{engine: e, handle: handle}, nil
}

// ExecuteNonQuery steps the statement to completion (spec §4.4).
func (c *Command) ExecuteNonQuery() (int32, error) {
	return c.engine.ExecuteNonQuery(c.handle)
}

// ExecuteReader initializes a cursor and returns its bound Reader
// (spec §4.4).
func (c *Command) ExecuteReader(behavior uint32) (dbconn.Reader, error) {
	cols, err := c.engine.ExecuteReader(c.handle)
	if err != nil {
		return nil, err
	}
	return &Reader{engine: c.engine, handle: c.handle, columns: cols}, nil
}

// Dispose finalizes the statement, swallowing any error (spec §4.4, §7).
func (c *Command) Dispose() {
	c.engine.DisposeCommand(c.handle)
}

// Reader is a same-process reader worker bound directly to an Engine.
type Reader struct {
	engine  *engine.Engine
	handle  wire.Handle
	columns []wire.ColumnDescriptor
}

// Columns returns the cached column descriptor list.
func (r *Reader) Columns() []wire.ColumnDescriptor { return r.columns }

// Read steps the cursor one row forward (spec §4.4).
func (r *Reader) Read() (bool, error) {
	return r.engine.ReadRow(r.handle)
}

// GetOrdinal returns the ordinal of the column named name, or -1 if absent.
func (r *Reader) GetOrdinal(name string) (int32, error) {
	return r.engine.GetOrdinal(r.handle, name)
}

// GetString returns the current row's value at ord as a string.
func (r *Reader) GetString(ord uint16) (string, error) {
	return r.engine.GetString(r.handle, ord)
}

// GetInt16 returns the current row's value at ord as an int16.
func (r *Reader) GetInt16(ord uint16) (int16, error) {
	return r.engine.GetInt16(r.handle, ord)
}

// GetInt32 returns the current row's value at ord as an int32.
func (r *Reader) GetInt32(ord uint16) (int32, error) {
	return r.engine.GetInt32(r.handle, ord)
}

// GetInt64 returns the current row's value at ord as an int64.
func (r *Reader) GetInt64(ord uint16) (int64, error) {
	return r.engine.GetInt64(r.handle, ord)
}

// GetFieldType returns the SQLite type code of the column at ord in
// the current row.
func (r *Reader) GetFieldType(ord uint16) (wire.SQLiteType, error) {
	return r.engine.GetFieldType(r.handle, ord)
}

// Dispose finalizes the statement, swallowing any error.
func (r *Reader) Dispose() {
	r.engine.DisposeCommand(r.handle)
}
