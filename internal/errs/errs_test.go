package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hnjm/SQLiteServer/internal/errs"
)

func TestServerExceptionCarriesMessageVerbatim(t *testing.T) {
	e := errs.ServerException(`near "NOT": syntax error`)
	assert.Equal(t, `near "NOT": syntax error`, e.Message)
	assert.True(t, errs.Is(e, errs.KindServerException))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	e := errs.Disconnected(cause)
	assert.True(t, errs.Is(e, errs.KindDisconnected))
	assert.ErrorIs(t, e, cause)
}

func TestUnwrap1SingleError(t *testing.T) {
	e := errs.Timeout()
	got := errs.Unwrap1([]error{e})
	assert.Equal(t, e, got)
}

func TestUnwrap1SameCauseCollapses(t *testing.T) {
	a := errors.New("same")
	b := errors.New("same")
	got := errs.Unwrap1([]error{a, b})
	assert.Equal(t, a, got)
}

func TestUnwrap1DistinctCausesAggregate(t *testing.T) {
	a := errors.New("one")
	b := errors.New("two")
	got := errs.Unwrap1([]error{a, b})
	assert.Error(t, got)
	assert.Contains(t, got.Error(), "one")
	assert.Contains(t, got.Error(), "two")
}
