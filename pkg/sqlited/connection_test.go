package sqlited_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/control"
	"github.com/hnjm/SQLiteServer/pkg/sqlited"
)

func TestOpenWithElectorBecomesLeader(t *testing.T) {
	c, err := sqlited.OpenWithElector("sqlited://local", control.StaticElector{Leader: true}, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.Eventually(t, func() bool {
		return c.Role() == control.RoleLeader
	}, time.Second, 10*time.Millisecond)

	cmd := c.CreateCommand()
	cmd.SetCommandText("CREATE TABLE electortest(x INTEGER)")
	_, err = cmd.ExecuteNonQuery()
	assert.NoError(t, err)
}
