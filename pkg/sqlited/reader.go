package sqlited

import (
	"sync"

	"github.com/hnjm/SQLiteServer/internal/dbconn"
	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

type readerState int

const (
	stateBeforeFirst readerState = iota
	stateOnRow
	stateAfterLast
)

// Reader mirrors the normal embedded database reader surface:
// positional and by-name column access, a Read advance, and a
// FieldType query (spec §3 Reader, §4.6).
type Reader struct {
	conn     *Connection
	worker   dbconn.Reader
	behavior uint32

	mu       sync.Mutex
	state    readerState
	disposed bool
}

// Read advances the reader one row. Once it returns false, the reader
// is in a terminal state: further Reads return false and the Get*
// value accessors and FieldType fail with InvalidOperation (spec §3
// Reader invariant, §8 property 5 "read terminality").
func (r *Reader) Read() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return false, errs.ObjectDisposed("reader")
	}
	if r.state == stateAfterLast {
		return false, nil
	}

	hasRow, err := r.worker.Read()
	if err != nil {
		return false, err
	}
	if hasRow {
		r.state = stateOnRow
	} else {
		r.state = stateAfterLast
	}
	return hasRow, nil
}

func (r *Reader) requireOnRow() error {
	if r.disposed {
		return errs.ObjectDisposed("reader")
	}
	if r.state != stateOnRow {
		return errs.InvalidOperation("reader is not positioned on a row")
	}
	return nil
}

// GetOrdinal returns the ordinal of the column named name, matched
// case-insensitively, or -1 if absent (spec §4.6, §8 property 4
// scopes this only to Get* value accessors; GetOrdinal itself is
// valid in any non-disposed state, matching the leader's own
// behavior in spec §4.3).
func (r *Reader) GetOrdinal(name string) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return 0, errs.ObjectDisposed("reader")
	}
	return r.worker.GetOrdinal(name)
}

// GetString returns the current row's value at ord as a string (spec
// §4.6, §8 property 4).
func (r *Reader) GetString(ord int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOnRow(); err != nil {
		return "", err
	}
	return r.worker.GetString(uint16(ord))
}

// GetInt16 returns the current row's value at ord as an int16.
func (r *Reader) GetInt16(ord int) (int16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOnRow(); err != nil {
		return 0, err
	}
	return r.worker.GetInt16(uint16(ord))
}

// GetInt32 returns the current row's value at ord as an int32.
func (r *Reader) GetInt32(ord int) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOnRow(); err != nil {
		return 0, err
	}
	return r.worker.GetInt32(uint16(ord))
}

// GetInt64 returns the current row's value at ord as an int64.
func (r *Reader) GetInt64(ord int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOnRow(); err != nil {
		return 0, err
	}
	return r.worker.GetInt64(uint16(ord))
}

// FieldType returns the SQLite type of the column at ord in the
// current row (spec §4.6 "a FieldType(ord) query").
func (r *Reader) FieldType(ord int) (wire.SQLiteType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOnRow(); err != nil {
		return 0, err
	}
	return r.worker.GetFieldType(uint16(ord))
}

// Columns returns the column descriptor list cached from the initial
// ExecuteReaderResponse.
func (r *Reader) Columns() []wire.ColumnDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worker.Columns()
}

// Dispose releases the reader's remote or local cursor. Best-effort
// and idempotent (spec §4.4, §7).
func (r *Reader) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	r.worker.Dispose()
}
