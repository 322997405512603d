package sqlited_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/pkg/sqlited"
)

func newLeaderConn(t *testing.T) *sqlited.Connection {
	t.Helper()
	c, err := sqlited.Open("sqlited://local")
	require.NoError(t, err)
	_, err = c.RunLeader("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCreateCommandDefaultsToPackageTimeoutWhenDSNOmitsIt(t *testing.T) {
	c := newLeaderConn(t)
	cmd := c.CreateCommand()
	assert.Equal(t, sqlited.DefaultTimeout, cmd.CommandTimeout())
}

func TestCreateCommandHonorsExplicitZeroTimeout(t *testing.T) {
	c, err := sqlited.Open("sqlited://local?DefaultTimeout=0")
	require.NoError(t, err)
	_, err = c.RunLeader("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cmd := c.CreateCommand()
	assert.Equal(t, time.Duration(0), cmd.CommandTimeout())
}

func TestEmptyCommandTextIsInvalidOperation(t *testing.T) {
	c := newLeaderConn(t)
	cmd := c.CreateCommand()
	_, err := cmd.ExecuteNonQuery()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInvalidOperation))
}

func TestDisposedCommandRejectsExecute(t *testing.T) {
	c := newLeaderConn(t)
	cmd := c.CreateCommand()
	cmd.SetCommandText("CREATE TABLE cmdtest(x INTEGER)")
	cmd.Dispose()
	cmd.Dispose() // idempotent

	_, err := cmd.ExecuteNonQuery()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindObjectDisposed))
}

func TestExecuteNonQueryAndReaderRoundTrip(t *testing.T) {
	c := newLeaderConn(t)

	create := c.CreateCommand()
	create.SetCommandText("CREATE TABLE cmdtest2(x INTEGER)")
	_, err := create.ExecuteNonQuery()
	require.NoError(t, err)

	insert := c.CreateCommand()
	insert.SetCommandText("INSERT INTO cmdtest2 VALUES(99)")
	changes, err := insert.ExecuteNonQuery()
	require.NoError(t, err)
	assert.EqualValues(t, 1, changes)

	sel := c.CreateCommand()
	sel.SetCommandText("SELECT x FROM cmdtest2")
	reader, err := sel.ExecuteReader()
	require.NoError(t, err)
	defer reader.Dispose()

	hasRow, err := reader.Read()
	require.NoError(t, err)
	require.True(t, hasRow)

	v, err := reader.GetInt32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 99, v)
}

func TestCommandBindsWorkerAtMostOnce(t *testing.T) {
	c := newLeaderConn(t)
	cmd := c.CreateCommand()
	cmd.SetCommandText("CREATE TABLE cmdtest3(x INTEGER)")

	_, err := cmd.ExecuteNonQuery()
	require.NoError(t, err)

	// Changing the text after the first bind must not rebind; the
	// worker stays bound to the original statement (spec §3 Command
	// invariant: a worker is created lazily, at most once). Running the
	// original CREATE TABLE again fails because the table now exists,
	// whereas a rebound INSERT would succeed.
	cmd.SetCommandText("INSERT INTO cmdtest3 VALUES(1)")
	_, err = cmd.ExecuteNonQuery()
	require.Error(t, err, "execute should still run the original CREATE TABLE statement")
	assert.True(t, errs.Is(err, errs.KindServerException))
}

func TestExecuteOnClosedConnectionIsDisconnected(t *testing.T) {
	c := newLeaderConn(t)
	cmd := c.CreateCommand()
	cmd.SetCommandText("SELECT 1")
	c.Close()

	_, err := cmd.ExecuteNonQuery()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDisconnected))
}

func TestStatsReflectsLiveStatements(t *testing.T) {
	c := newLeaderConn(t)
	assert.Equal(t, 0, c.Stats().LiveStatements)

	cmd := c.CreateCommand()
	cmd.SetCommandText("CREATE TABLE statstest(x INTEGER)")
	_, err := cmd.ExecuteNonQuery()
	require.NoError(t, err)

	assert.Equal(t, 1, c.Stats().LiveStatements)

	cmd.Dispose()
	assert.Equal(t, 0, c.Stats().LiveStatements)
}

func TestStatsZeroWhenNotLeader(t *testing.T) {
	c, err := sqlited.Open("sqlited://local")
	require.NoError(t, err)
	t.Cleanup(c.Close)
	assert.Equal(t, 0, c.Stats().LiveStatements)
}

func TestExecuteContextCancelledWhileConnectingTimesOut(t *testing.T) {
	c, err := sqlited.Open("sqlited://local")
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cmd := c.CreateCommand()
	cmd.SetCommandText("SELECT 1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = cmd.ExecuteNonQueryContext(ctx)
	require.Error(t, err)
}
