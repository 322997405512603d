package sqlited_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/pkg/sqlited"
)

func TestParseOptionsNoDefaultTimeout(t *testing.T) {
	opts, err := sqlited.ParseOptions("sqlited://127.0.0.1:4001/main")
	require.NoError(t, err)
	assert.False(t, opts.HasDefaultTimeout)
	assert.Equal(t, time.Duration(0), opts.DefaultTimeout)
}

func TestParseOptionsExplicitZeroTimeoutMeansNoTimeout(t *testing.T) {
	opts, err := sqlited.ParseOptions("sqlited://127.0.0.1:4001/main?DefaultTimeout=0")
	require.NoError(t, err)
	assert.True(t, opts.HasDefaultTimeout)
	assert.Equal(t, time.Duration(0), opts.DefaultTimeout)
}

func TestParseOptionsPositiveTimeout(t *testing.T) {
	opts, err := sqlited.ParseOptions("sqlited://127.0.0.1:4001/main?DefaultTimeout=5000")
	require.NoError(t, err)
	assert.True(t, opts.HasDefaultTimeout)
	assert.Equal(t, 5*time.Second, opts.DefaultTimeout)
}

func TestParseOptionsRejectsNegativeTimeout(t *testing.T) {
	_, err := sqlited.ParseOptions("sqlited://127.0.0.1:4001/main?DefaultTimeout=-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInvalidOperation))
}

func TestParseOptionsForwardsOtherParams(t *testing.T) {
	opts, err := sqlited.ParseOptions("sqlited://127.0.0.1:4001/main?mode=ro&cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "ro", opts.Forwarded.Get("mode"))
	assert.Equal(t, "shared", opts.Forwarded.Get("cache"))
	assert.Empty(t, opts.Forwarded.Get("DefaultTimeout"))
}
