// Package engine implements the leader side of the protocol: the
// single executor that owns the SQLite handle and the statement and
// reader handle tables (spec §4.3).
package engine

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/logger"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

// PeerID identifies the transport peer that owns a statement handle,
// used to finalize all of one peer's handles on disconnection (spec
// §4.3 edge cases).
type PeerID uint64

type statementEntry struct {
	stmt      *sql.Stmt
	peer      PeerID
	createdAt time.Time
	cursor    *cursorEntry
}

type cursorEntry struct {
	rows     *sql.Rows
	columns  []wire.ColumnDescriptor
	current  []interface{}
	hasRow   bool
	exhausted bool
}

// job is a closure run on the engine's single dispatch goroutine,
// preserving SQLite's single-writer discipline (spec §5 scheduling
// model).
type job func()

// Engine owns the *sql.DB and the statement/reader handle tables. All
// state mutation happens on the run goroutine; public methods only
// enqueue jobs and wait for their result.
type Engine struct {
	db    *sql.DB
	alloc *wire.HandleAllocator

	statements map[wire.Handle]*statementEntry

	jobs   chan job
	done   chan struct{}
}

// Open creates an Engine backed by a go-sqlite3 connection to dsn (a
// database/sql data source name understood by mattn/go-sqlite3, e.g.
// a file path or "file::memory:?cache=shared").
func Open(dsn string) (*Engine, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindServerException, err, "opening sqlite database")
	}
	// The leader is the sole writer; a single physical connection
	// keeps every statement issued against the same SQLite
	// connection object, which mattn/go-sqlite3 requires for
	// cross-statement transaction state to behave as expected.
	db.SetMaxOpenConns(1)

	e := &Engine{
		db:         db,
		alloc:      wire.NewHandleAllocator(),
		statements: make(map[wire.Handle]*statementEntry),
		jobs:       make(chan job),
		done:       make(chan struct{}),
	}
	go e.run()
	return e, nil
}

func (e *Engine) run() {
	for {
		select {
		case j := <-e.jobs:
			j()
		case <-e.done:
			return
		}
	}
}

// submit runs fn on the dispatch goroutine and waits for it to
// finish, preserving arrival order per peer (spec §4.3 tie-breaks).
func (e *Engine) submit(fn func()) {
	reply := make(chan struct{})
	e.jobs <- func() {
		fn()
		close(reply)
	}
	<-reply
}

// Close finalizes every live statement and cursor in creation order
// and closes the underlying database (SPEC_FULL.md §10 graceful
// shutdown, generalizing spec §4.3's disconnection behavior).
func (e *Engine) Close() error {
	e.submit(func() {
		type entry struct {
			h wire.Handle
			e *statementEntry
		}
		all := make([]entry, 0, len(e.statements))
		for h, se := range e.statements {
			all = append(all, entry{h, se})
		}
		for i := 0; i < len(all); i++ {
			for j := i + 1; j < len(all); j++ {
				if all[j].e.createdAt.Before(all[i].e.createdAt) {
					all[i], all[j] = all[j], all[i]
				}
			}
		}
		for _, en := range all {
			e.finalizeLocked(en.h, en.e)
		}
	})
	close(e.done)
	return e.db.Close()
}

// Stats is a point-in-time snapshot of engine occupancy, for
// operational visibility without a metrics library dependency
// (SPEC_FULL.md §10 health surface).
type Stats struct {
	LiveStatements int
	LiveCursors    int
}

// Stats reports the number of live statement and cursor handles.
func (e *Engine) Stats() Stats {
	var s Stats
	e.submit(func() {
		s.LiveStatements = len(e.statements)
		for _, se := range e.statements {
			if se.cursor != nil {
				s.LiveCursors++
			}
		}
	})
	return s
}

// DisconnectPeer finalizes every handle owned by peer, in creation
// order (spec §4.3: "On peer disconnection, all handles owned by
// that peer are finalized in creation order").
func (e *Engine) DisconnectPeer(peer PeerID) {
	e.submit(func() {
		type entry struct {
			h wire.Handle
			e *statementEntry
		}
		var owned []entry
		for h, se := range e.statements {
			if se.peer == peer {
				owned = append(owned, entry{h, se})
			}
		}
		for i := 0; i < len(owned); i++ {
			for j := i + 1; j < len(owned); j++ {
				if owned[j].e.createdAt.Before(owned[i].e.createdAt) {
					owned[i], owned[j] = owned[j], owned[i]
				}
			}
		}
		for _, en := range owned {
			e.finalizeLocked(en.h, en.e)
		}
	})
}

func (e *Engine) finalizeLocked(h wire.Handle, se *statementEntry) {
	if se.cursor != nil && se.cursor.rows != nil {
		_ = se.cursor.rows.Close()
	}
	_ = se.stmt.Close()
	delete(e.statements, h)
}

// CreateCommand prepares sql against SQLite and returns a fresh
// handle, or a *errs.Error(KindServerException) on preparation
// failure (spec §4.3 CreateCommandRequest).
func (e *Engine) CreateCommand(peer PeerID, sql string) (wire.Handle, error) {
	if strings.TrimSpace(sql) == "" {
		return wire.Zero, errs.InvalidOperation("command text must not be empty")
	}

	var handle wire.Handle
	var outErr error
	e.submit(func() {
		stmt, err := e.db.Prepare(sql)
		if err != nil {
			outErr = errs.ServerException(err.Error())
			return
		}
		h := e.alloc.Next()
		if _, exists := e.statements[h]; exists {
			// Handle uniqueness invariant (spec §8 property 1).
			panic("engine: handle collision, allocator invariant violated")
		}
		e.statements[h] = &statementEntry{stmt: stmt, peer: peer, createdAt: time.Now()}
		handle = h
	})
	if outErr != nil {
		logger.Warn("CreateCommand failed", logger.Ctx{"err": outErr})
	}
	return handle, outErr
}

// DisposeCommand finalizes the statement and any dependent cursor. An
// absent handle is silently ignored, making disposal idempotent (spec
// §4.3 DisposeCommand, §8 property 2).
func (e *Engine) DisposeCommand(handle wire.Handle) {
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok {
			return
		}
		e.finalizeLocked(handle, se)
	})
}

// ExecuteNonQuery steps the statement to completion and returns the
// number of changed rows (spec §4.3 ExecuteNonQueryRequest).
func (e *Engine) ExecuteNonQuery(handle wire.Handle) (int32, error) {
	var changes int32
	var outErr error
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok {
			outErr = errs.InvalidOperation("unknown statement handle %s", handle)
			return
		}
		result, err := se.stmt.Exec()
		if err != nil {
			// The statement may legitimately produce rows (a SELECT
			// issued through ExecuteNonQuery); drain and discard them
			// rather than treating that as an error (spec §4.3).
			rows, qErr := se.stmt.Query()
			if qErr == nil {
				for rows.Next() {
				}
				qErr = rows.Err()
				rows.Close()
				if qErr == nil {
					changes = 0
					return
				}
			}
			outErr = errs.ServerException(err.Error())
			return
		}
		n, err := result.RowsAffected()
		if err != nil {
			changes = 0
			return
		}
		changes = int32(n)
	})
	return changes, outErr
}

// ExecuteReader initializes a cursor over handle's statement and
// returns its column descriptors (spec §4.3 ExecuteReaderRequest).
func (e *Engine) ExecuteReader(handle wire.Handle) ([]wire.ColumnDescriptor, error) {
	var cols []wire.ColumnDescriptor
	var outErr error
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok {
			outErr = errs.InvalidOperation("unknown statement handle %s", handle)
			return
		}
		rows, err := se.stmt.Query()
		if err != nil {
			outErr = errs.ServerException(err.Error())
			return
		}
		names, err := rows.Columns()
		if err != nil {
			rows.Close()
			outErr = errs.ServerException(err.Error())
			return
		}
		colTypes, _ := rows.ColumnTypes()
		descriptors := make([]wire.ColumnDescriptor, len(names))
		for i, name := range names {
			t := wire.TypeNull
			if colTypes != nil && i < len(colTypes) {
				t = sqliteTypeOf(colTypes[i].DatabaseTypeName())
			}
			descriptors[i] = wire.ColumnDescriptor{Ordinal: uint16(i), Name: name, SQLiteType: t}
		}
		se.cursor = &cursorEntry{rows: rows, columns: descriptors}
		cols = descriptors
	})
	return cols, outErr
}

func sqliteTypeOf(dbType string) wire.SQLiteType {
	switch strings.ToUpper(dbType) {
	case "INTEGER", "INT", "BIGINT":
		return wire.TypeInteger
	case "REAL", "FLOAT", "DOUBLE":
		return wire.TypeReal
	case "BLOB":
		return wire.TypeBlob
	case "":
		return wire.TypeNull
	default:
		return wire.TypeText
	}
}

// ReadRow steps the cursor one row forward (spec §4.3
// ExecuteReaderReadRequest).
func (e *Engine) ReadRow(handle wire.Handle) (bool, error) {
	var hasRow bool
	var outErr error
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok || se.cursor == nil {
			outErr = errs.InvalidOperation("no active cursor for handle %s", handle)
			return
		}
		c := se.cursor
		if c.exhausted {
			hasRow = false
			return
		}
		if !c.rows.Next() {
			c.exhausted = true
			c.hasRow = false
			if err := c.rows.Err(); err != nil {
				outErr = errs.ServerException(err.Error())
			}
			return
		}
		dest := make([]interface{}, len(c.columns))
		scanArgs := make([]interface{}, len(c.columns))
		for i := range dest {
			scanArgs[i] = &dest[i]
		}
		if err := c.rows.Scan(scanArgs...); err != nil {
			outErr = errs.ServerException(err.Error())
			return
		}
		c.current = dest
		c.hasRow = true
		hasRow = true
	})
	return hasRow, outErr
}

// GetOrdinal returns the ordinal of the column named name, matched
// case-insensitively, or -1 if absent (spec §4.3
// ExecuteReaderGetOrdinalRequest).
func (e *Engine) GetOrdinal(handle wire.Handle, name string) (int32, error) {
	var ord int32 = -1
	var outErr error
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok || se.cursor == nil {
			outErr = errs.InvalidOperation("no active cursor for handle %s", handle)
			return
		}
		for _, c := range se.cursor.columns {
			if strings.EqualFold(c.Name, name) {
				ord = int32(c.Ordinal)
				return
			}
		}
	})
	return ord, outErr
}

func (e *Engine) currentValue(handle wire.Handle, ordinal uint16) (interface{}, error) {
	se, ok := e.statements[handle]
	if !ok || se.cursor == nil {
		return nil, errs.InvalidOperation("no active cursor for handle %s", handle)
	}
	if !se.cursor.hasRow {
		return nil, errs.InvalidOperation("reader is not positioned on a row")
	}
	if int(ordinal) >= len(se.cursor.current) {
		return nil, errs.InvalidOperation("ordinal %d out of range", ordinal)
	}
	return se.cursor.current[ordinal], nil
}

// GetString returns the current row's value at ordinal as a string
// (spec §4.3 ExecuteReaderGetStringRequest).
func (e *Engine) GetString(handle wire.Handle, ordinal uint16) (string, error) {
	var s string
	var outErr error
	e.submit(func() {
		v, err := e.currentValue(handle, ordinal)
		if err != nil {
			outErr = err
			return
		}
		s = valueToString(v)
	})
	return s, outErr
}

// GetInt16 returns the current row's value at ordinal as an int16.
func (e *Engine) GetInt16(handle wire.Handle, ordinal uint16) (int16, error) {
	var n int64
	var outErr error
	e.submit(func() {
		v, err := e.currentValue(handle, ordinal)
		if err != nil {
			outErr = err
			return
		}
		n, outErr = valueToInt64(v)
	})
	return int16(n), outErr
}

// GetInt32 returns the current row's value at ordinal as an int32.
func (e *Engine) GetInt32(handle wire.Handle, ordinal uint16) (int32, error) {
	var n int64
	var outErr error
	e.submit(func() {
		v, err := e.currentValue(handle, ordinal)
		if err != nil {
			outErr = err
			return
		}
		n, outErr = valueToInt64(v)
	})
	return int32(n), outErr
}

// GetInt64 returns the current row's value at ordinal as an int64.
func (e *Engine) GetInt64(handle wire.Handle, ordinal uint16) (int64, error) {
	var n int64
	var outErr error
	e.submit(func() {
		v, err := e.currentValue(handle, ordinal)
		if err != nil {
			outErr = err
			return
		}
		n, outErr = valueToInt64(v)
	})
	return n, outErr
}

// GetFieldType returns the SQLite type code of the column at ordinal
// in the current row (spec §4.3 ExecuteReaderGetFieldTypeRequest).
func (e *Engine) GetFieldType(handle wire.Handle, ordinal uint16) (wire.SQLiteType, error) {
	var t wire.SQLiteType
	var outErr error
	e.submit(func() {
		se, ok := e.statements[handle]
		if !ok || se.cursor == nil {
			outErr = errs.InvalidOperation("no active cursor for handle %s", handle)
			return
		}
		if !se.cursor.hasRow {
			outErr = errs.InvalidOperation("reader is not positioned on a row")
			return
		}
		if int(ordinal) >= len(se.cursor.current) {
			outErr = errs.InvalidOperation("ordinal %d out of range", ordinal)
			return
		}
		t = sqliteTypeOfValue(se.cursor.current[ordinal])
	})
	return t, outErr
}

func sqliteTypeOfValue(v interface{}) wire.SQLiteType {
	switch v.(type) {
	case nil:
		return wire.TypeNull
	case int64, int32, int16, int:
		return wire.TypeInteger
	case float64, float32:
		return wire.TypeReal
	case []byte:
		return wire.TypeBlob
	default:
		return wire.TypeText
	}
}

func valueToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return toStringFallback(t)
	}
}
