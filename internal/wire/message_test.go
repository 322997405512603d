package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/wire"
)

func TestCreateCommandRequestRoundTrip(t *testing.T) {
	payload := wire.EncodeCreateCommandRequest(42, "SELECT 1")
	msg, err := wire.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, wire.CreateCommandRequest, msg.Kind)
	assert.EqualValues(t, 42, msg.Correlation)

	sql, err := wire.DecodeCreateCommandRequest(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestCreateCommandResponseRoundTrip(t *testing.T) {
	var h wire.Handle
	h[0] = 0xAB
	h[15] = 0xCD

	payload := wire.EncodeCreateCommandResponse(7, h)
	msg, err := wire.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, wire.CreateCommandResponse, msg.Kind)

	got, err := wire.DecodeCreateCommandResponse(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestExecuteReaderResponseInitialRoundTrip(t *testing.T) {
	cols := []wire.ColumnDescriptor{
		{Ordinal: 0, Name: "x", SQLiteType: wire.TypeInteger},
		{Ordinal: 1, Name: "y", SQLiteType: wire.TypeText},
	}
	payload := wire.EncodeExecuteReaderResponseInitial(3, cols)
	msg, err := wire.Decode(payload)
	require.NoError(t, err)

	got, err := wire.DecodeExecuteReaderResponseInitial(msg.Body)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Name)
	assert.Equal(t, wire.TypeInteger, got[0].SQLiteType)
	assert.Equal(t, "y", got[1].Name)
	assert.Equal(t, wire.TypeText, got[1].SQLiteType)
}

func TestExecuteReaderResponseReadRoundTrip(t *testing.T) {
	payload := wire.EncodeExecuteReaderResponseRead(9, true)
	msg, err := wire.Decode(payload)
	require.NoError(t, err)
	hasRow, err := wire.DecodeExecuteReaderResponseRead(msg.Body)
	require.NoError(t, err)
	assert.True(t, hasRow)

	payload = wire.EncodeExecuteReaderResponseRead(10, false)
	msg, err = wire.Decode(payload)
	require.NoError(t, err)
	hasRow, err = wire.DecodeExecuteReaderResponseRead(msg.Body)
	require.NoError(t, err)
	assert.False(t, hasRow)
}

func TestExecuteReaderResponseValueRoundTrip(t *testing.T) {
	cases := []wire.Value{
		{Tag: wire.TagNull},
		{Tag: wire.TagInt16, Int16: -7},
		{Tag: wire.TagInt32, Int32: 42},
		{Tag: wire.TagInt64, Int64: 1 << 40},
		{Tag: wire.TagString, String: "hello"},
		{Tag: wire.TagFieldType, FieldType: wire.TypeBlob},
	}
	for _, v := range cases {
		payload := wire.EncodeExecuteReaderResponseValue(1, v)
		msg, err := wire.Decode(payload)
		require.NoError(t, err)
		got, err := wire.DecodeExecuteReaderResponseValue(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	payload := wire.EncodeCreateCommandRequest(1, "x")
	// Corrupt the kind field to something outside the enumeration.
	payload[0] = 0xFF
	_, err := wire.Decode(payload)
	assert.Error(t, err)
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := wire.Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}
