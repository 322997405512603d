package wire_test

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

func TestSendAndWaitTimesOutWithoutReply(t *testing.T) {
	connA, connB := net.Pipe()

	server := wire.NewTransport(connB, func(wire.Message) {})
	defer server.Close()
	client := wire.NewTransport(connA, func(wire.Message) {})
	defer client.Close()

	correlation := client.NextCorrelation()
	_, err := client.SendAndWait(correlation, wire.EncodeExecuteNonQueryRequest(correlation, wire.Handle{}), 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTimeout))
}

func TestTransportMultiplexesConcurrentCorrelations(t *testing.T) {
	connA, connB := net.Pipe()

	var server *wire.Transport
	server = wire.NewTransport(connB, func(msg wire.Message) {
		if msg.Kind != wire.ExecuteNonQueryRequest {
			return
		}
		_ = server.Send(wire.EncodeExecuteNonQueryResponse(msg.Correlation, int32(msg.Correlation)))
	})
	defer server.Close()
	client := wire.NewTransport(connA, func(wire.Message) {})
	defer client.Close()

	type result struct {
		correlation uint64
		changes     int32
		err         error
	}

	const n = 20
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			correlation := client.NextCorrelation()
			reply, err := client.SendAndWait(correlation, wire.EncodeExecuteNonQueryRequest(correlation, wire.Handle{}), 2*time.Second)
			if err != nil {
				results <- result{correlation: correlation, err: err}
				return
			}
			msg, err := wire.Decode(reply)
			if err != nil {
				results <- result{correlation: correlation, err: err}
				return
			}
			changes, err := wire.DecodeExecuteNonQueryResponse(msg.Body)
			results <- result{correlation: correlation, changes: changes, err: err}
		}()
	}

	for i := 0; i < n; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.EqualValues(t, r.correlation, r.changes, "reply for correlation %d was routed to the wrong waiter", r.correlation)
	}
}

// TestKeepAliveFrameIsDiscarded covers the zero-length keep-alive frame
// spec §4.1 defines as a no-op on receive: a frame with the same shape
// keepAliveLoop emits (Transport.Send with a nil payload) must be
// silently discarded by the reader, and must not stop a real frame
// that follows it from reaching the handler.
func TestKeepAliveFrameIsDiscarded(t *testing.T) {
	connA, connB := net.Pipe()

	received := make(chan wire.Message, 1)
	server := wire.NewTransport(connB, func(msg wire.Message) {
		received <- msg
	})
	defer server.Close()
	client := wire.NewTransport(connA, func(wire.Message) {})
	defer client.Close()

	require.NoError(t, client.Send(nil))

	correlation := client.NextCorrelation()
	require.NoError(t, client.Send(wire.EncodeDisposeCommand(correlation, wire.Handle{})))

	select {
	case msg := <-received:
		assert.Equal(t, wire.DisposeCommand, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("real frame following a keep-alive frame was never dispatched")
	}
}

// TestUnknownKindFrameTerminatesTransport covers spec §4.2 ("An
// unknown kind is a protocol error that terminates the transport") and
// spec §7 (ProtocolError is "Fatal to the transport"): a frame with an
// out-of-range kind must close the transport rather than being
// silently dropped.
func TestUnknownKindFrameTerminatesTransport(t *testing.T) {
	connA, connB := net.Pipe()

	// Drain whatever the client writes so its own SendAndWait below
	// doesn't block on a peer that never reads.
	go func() { _, _ = io.Copy(io.Discard, connB) }()

	client := wire.NewTransport(connA, func(wire.Message) {})
	defer client.Close()

	// A waiter already pending when the bad frame arrives must be
	// released with Disconnected rather than left to hang until its own
	// timeout.
	pendingErr := make(chan error, 1)
	go func() {
		correlation := client.NextCorrelation()
		_, err := client.SendAndWait(correlation, wire.EncodeExecuteNonQueryRequest(correlation, wire.Handle{}), 5*time.Second)
		pendingErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	payload := wire.EncodeCreateCommandRequest(1, "x")
	payload[0] = 0xFF // corrupt the kind field to an out-of-range value

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	_, err := connB.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = connB.Write(payload)
	require.NoError(t, err)

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("transport did not shut down after receiving an unknown-kind frame")
	}

	select {
	case err := <-pendingErr:
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.KindDisconnected))
	case <-time.After(time.Second):
		t.Fatal("pending SendAndWait was not released after the transport shut down")
	}
}
