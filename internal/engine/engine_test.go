package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/engine"
	"github.com/hnjm/SQLiteServer/internal/errs"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// TestCreateAndExecNonQuery mirrors spec §8 scenario 1: create a
// table, execute it, observe changes=0, then dispose.
func TestCreateAndExecNonQuery(t *testing.T) {
	e := newTestEngine(t)

	h1, err := e.CreateCommand(1, "CREATE TABLE t(x INTEGER)")
	require.NoError(t, err)

	changes, err := e.ExecuteNonQuery(h1)
	require.NoError(t, err)
	require.EqualValues(t, 0, changes)

	e.DisposeCommand(h1)
}

// TestInsertReturnsChangesOne mirrors spec §8 scenario 2.
func TestInsertReturnsChangesOne(t *testing.T) {
	e := newTestEngine(t)

	h1, err := e.CreateCommand(1, "CREATE TABLE t2(x INTEGER)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(h1)
	require.NoError(t, err)

	h2, err := e.CreateCommand(1, "INSERT INTO t2 VALUES(42)")
	require.NoError(t, err)
	changes, err := e.ExecuteNonQuery(h2)
	require.NoError(t, err)
	require.EqualValues(t, 1, changes)
}

// TestReadOneRow mirrors spec §8 scenario 3.
func TestReadOneRow(t *testing.T) {
	e := newTestEngine(t)

	hCreate, err := e.CreateCommand(1, "CREATE TABLE t3(x INTEGER)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(hCreate)
	require.NoError(t, err)

	hInsert, err := e.CreateCommand(1, "INSERT INTO t3 VALUES(42)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(hInsert)
	require.NoError(t, err)

	hSelect, err := e.CreateCommand(1, "SELECT x FROM t3")
	require.NoError(t, err)

	cols, err := e.ExecuteReader(hSelect)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	require.Equal(t, "x", cols[0].Name)

	hasRow, err := e.ReadRow(hSelect)
	require.NoError(t, err)
	require.True(t, hasRow)

	v, err := e.GetInt32(hSelect, 0)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)

	hasRow, err = e.ReadRow(hSelect)
	require.NoError(t, err)
	require.False(t, hasRow)
}

// TestUnknownColumnOrdinal mirrors spec §8 scenario 4.
func TestUnknownColumnOrdinal(t *testing.T) {
	e := newTestEngine(t)

	hCreate, err := e.CreateCommand(1, "CREATE TABLE t4(x INTEGER)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(hCreate)
	require.NoError(t, err)

	hSelect, err := e.CreateCommand(1, "SELECT x FROM t4")
	require.NoError(t, err)
	_, err = e.ExecuteReader(hSelect)
	require.NoError(t, err)

	ord, err := e.GetOrdinal(hSelect, "missing")
	require.NoError(t, err)
	require.EqualValues(t, -1, ord)
}

// TestBadSQLProducesServerException mirrors spec §8 scenario 5.
func TestBadSQLProducesServerException(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateCommand(1, "NOT SQL")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindServerException))
}

// TestEmptyCommandTextIsInvalidOperation covers spec §4.3 "Empty/
// whitespace SQL fails with InvalidOperation".
func TestEmptyCommandTextIsInvalidOperation(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateCommand(1, "   ")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInvalidOperation))
}

// TestDisposeIsIdempotent mirrors spec §8 property 2.
func TestDisposeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	h, err := e.CreateCommand(1, "CREATE TABLE t5(x INTEGER)")
	require.NoError(t, err)

	e.DisposeCommand(h)
	e.DisposeCommand(h) // must not panic or error

	_, err = e.ExecuteNonQuery(h)
	require.Error(t, err)
}

// TestGetBeforeReadIsInvalidOperation covers spec §9's resolution
// of the open question: Get* before Read fails with InvalidOperation.
func TestGetBeforeReadIsInvalidOperation(t *testing.T) {
	e := newTestEngine(t)

	hCreate, err := e.CreateCommand(1, "CREATE TABLE t6(x INTEGER)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(hCreate)
	require.NoError(t, err)

	hInsert, err := e.CreateCommand(1, "INSERT INTO t6 VALUES(1)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(hInsert)
	require.NoError(t, err)

	hSelect, err := e.CreateCommand(1, "SELECT x FROM t6")
	require.NoError(t, err)
	_, err = e.ExecuteReader(hSelect)
	require.NoError(t, err)

	_, err = e.GetInt32(hSelect, 0)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindInvalidOperation))
}

// TestDisconnectPeerFinalizesOwnedHandles covers spec §4.3 "On peer
// disconnection, all handles owned by that peer are finalized".
func TestDisconnectPeerFinalizesOwnedHandles(t *testing.T) {
	e := newTestEngine(t)

	h, err := e.CreateCommand(7, "CREATE TABLE t7(x INTEGER)")
	require.NoError(t, err)

	e.DisconnectPeer(7)

	_, err = e.ExecuteNonQuery(h)
	require.Error(t, err)
}
