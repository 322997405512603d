// Package worker implements the follower side of the protocol: the
// command and reader workers that translate client API calls into
// framed requests and own the lifetime of a remote handle (spec
// §4.4).
package worker

import (
	"time"

	"github.com/hnjm/SQLiteServer/internal/dbconn"
	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

var _ dbconn.Command = (*Command)(nil)
var _ dbconn.Reader = (*Reader)(nil)

// Command is a follower-side command worker, born once
// CreateCommandRequest succeeds against the leader. It is strictly
// bound to the transport that created it; if that transport
// disconnects, pending and future operations fail with Disconnected
// (spec §4.4).
type Command struct {
	transport *wire.Transport
	handle    wire.Handle
	timeout   time.Duration
}

// CreateCommand issues CreateCommandRequest(sqlText) over t and
// returns a bound Command worker, or a *errs.Error on failure (spec
// §4.3 CreateCommandRequest, §4.4).
func CreateCommand(t *wire.Transport, sqlText string, timeout time.Duration) (*Command, error) {
	correlation := t.NextCorrelation()
	reply, err := t.SendAndWait(correlation, wire.EncodeCreateCommandRequest(correlation, sqlText), timeout)
	if err != nil {
		return nil, err
	}
	msg, err := wire.Decode(reply)
	if err != nil {
		return nil, err
	}
	switch msg.Kind {
	case wire.CreateCommandResponse:
		handle, err := wire.DecodeCreateCommandResponse(msg.Body)
		if err != nil {
			return nil, err
		}
		return &Command{transport: t, handle: handle, timeout: timeout}, nil
	case wire.CreateCommandException:
		text, err := wire.DecodeExceptionMessage(msg.Body)
		if err != nil {
			return nil, err
		}
		return nil, errs.ServerException(text)
	default:
		return nil, errs.ProtocolError(nil, "unexpected response kind %s for CreateCommandRequest", msg.Kind)
	}
}

// ExecuteNonQuery sends ExecuteNonQueryRequest and returns the number
// of rows changed (spec §4.4 execute_non_query).
func (c *Command) ExecuteNonQuery() (int32, error) {
	correlation := c.transport.NextCorrelation()
	reply, err := c.transport.SendAndWait(correlation, wire.EncodeExecuteNonQueryRequest(correlation, c.handle), c.timeout)
	if err != nil {
		return 0, err
	}
	msg, err := wire.Decode(reply)
	if err != nil {
		return 0, err
	}
	switch msg.Kind {
	case wire.ExecuteNonQueryResponse:
		return wire.DecodeExecuteNonQueryResponse(msg.Body)
	case wire.ExecuteNonQueryException:
		text, err := wire.DecodeExceptionMessage(msg.Body)
		if err != nil {
			return 0, err
		}
		return 0, errs.ServerException(text)
	default:
		return 0, errs.ProtocolError(nil, "unexpected response kind %s for ExecuteNonQueryRequest", msg.Kind)
	}
}

// ExecuteReader sends ExecuteReaderRequest and returns the bound
// Reader worker (spec §4.4).
func (c *Command) ExecuteReader(behavior uint32) (dbconn.Reader, error) {
	correlation := c.transport.NextCorrelation()
	reply, err := c.transport.SendAndWait(correlation, wire.EncodeExecuteReaderRequest(correlation, c.handle, behavior), c.timeout)
	if err != nil {
		return nil, err
	}
	msg, err := wire.Decode(reply)
	if err != nil {
		return nil, err
	}
	switch msg.Kind {
	case wire.ExecuteReaderResponse:
		cols, err := wire.DecodeExecuteReaderResponseInitial(msg.Body)
		if err != nil {
			return nil, err
		}
		return &Reader{transport: c.transport, handle: c.handle, timeout: c.timeout, columns: cols}, nil
	case wire.ExecuteReaderException:
		text, err := wire.DecodeExceptionMessage(msg.Body)
		if err != nil {
			return nil, err
		}
		return nil, errs.ServerException(text)
	default:
		return nil, errs.ProtocolError(nil, "unexpected response kind %s for ExecuteReaderRequest", msg.Kind)
	}
}

// Dispose sends DisposeCommand and swallows any error, as disposal
// must be best-effort (spec §4.4, §7).
func (c *Command) Dispose() {
	correlation := c.transport.NextCorrelation()
	_ = c.transport.Send(wire.EncodeDisposeCommand(correlation, c.handle))
}
