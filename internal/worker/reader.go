package worker

import (
	"time"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

// Reader is a follower-side reader worker, born once
// ExecuteReaderRequest succeeds. It holds an in-memory copy of the
// column descriptors but performs no row caching: every Get* call
// forwards to the leader (spec §4.4).
type Reader struct {
	transport *wire.Transport
	handle    wire.Handle
	timeout   time.Duration
	columns   []wire.ColumnDescriptor
}

// Columns returns the cached column descriptor list from the initial
// ExecuteReaderResponse.
func (r *Reader) Columns() []wire.ColumnDescriptor {
	return r.columns
}

// Read steps the cursor one row forward and returns has_row (spec
// §4.4 read).
func (r *Reader) Read() (bool, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderReadRequest(correlation, r.handle), r.timeout)
	if err != nil {
		return false, err
	}
	msg, err := wire.Decode(reply)
	if err != nil {
		return false, err
	}
	switch msg.Kind {
	case wire.ExecuteReaderResponse:
		return wire.DecodeExecuteReaderResponseRead(msg.Body)
	case wire.ExecuteReaderException:
		text, err := wire.DecodeExceptionMessage(msg.Body)
		if err != nil {
			return false, err
		}
		return false, errs.ServerException(text)
	default:
		return false, errs.ProtocolError(nil, "unexpected response kind %s for ExecuteReaderReadRequest", msg.Kind)
	}
}

// GetOrdinal returns the ordinal of the column named name, or -1 if
// absent (spec §4.4 get_ordinal).
func (r *Reader) GetOrdinal(name string) (int32, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetOrdinalRequest(correlation, r.handle, name), r.timeout)
	if err != nil {
		return 0, err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return 0, err
	}
	return v.Int32, nil
}

// GetString returns the current row's value at ord as a string (spec
// §4.4 get_string).
func (r *Reader) GetString(ord uint16) (string, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetStringRequest(correlation, r.handle, ord), r.timeout)
	if err != nil {
		return "", err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// GetInt16 returns the current row's value at ord as an int16 (spec
// §4.4 get_int16).
func (r *Reader) GetInt16(ord uint16) (int16, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetInt16Request(correlation, r.handle, ord), r.timeout)
	if err != nil {
		return 0, err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return 0, err
	}
	return v.Int16, nil
}

// GetInt32 returns the current row's value at ord as an int32 (spec
// §4.4 get_int32).
func (r *Reader) GetInt32(ord uint16) (int32, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetInt32Request(correlation, r.handle, ord), r.timeout)
	if err != nil {
		return 0, err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return 0, err
	}
	return v.Int32, nil
}

// GetInt64 returns the current row's value at ord as an int64 (spec
// §4.4 get_int64).
func (r *Reader) GetInt64(ord uint16) (int64, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetInt64Request(correlation, r.handle, ord), r.timeout)
	if err != nil {
		return 0, err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// GetFieldType returns the SQLite type code of the column at ord in
// the current row (spec §4.4 get_field_type).
func (r *Reader) GetFieldType(ord uint16) (wire.SQLiteType, error) {
	correlation := r.transport.NextCorrelation()
	reply, err := r.transport.SendAndWait(correlation, wire.EncodeExecuteReaderGetFieldTypeRequest(correlation, r.handle, ord), r.timeout)
	if err != nil {
		return 0, err
	}
	v, err := r.decodeValue(reply)
	if err != nil {
		return 0, err
	}
	return v.FieldType, nil
}

func (r *Reader) decodeValue(reply []byte) (wire.Value, error) {
	msg, err := wire.Decode(reply)
	if err != nil {
		return wire.Value{}, err
	}
	switch msg.Kind {
	case wire.ExecuteReaderResponse:
		return wire.DecodeExecuteReaderResponseValue(msg.Body)
	case wire.ExecuteReaderException:
		text, err := wire.DecodeExceptionMessage(msg.Body)
		if err != nil {
			return wire.Value{}, err
		}
		return wire.Value{}, errs.ServerException(text)
	default:
		return wire.Value{}, errs.ProtocolError(nil, "unexpected response kind %s for reader get", msg.Kind)
	}
}

// Dispose sends DisposeCommand for the underlying statement handle
// and swallows any error (spec §4.4, §7).
func (r *Reader) Dispose() {
	correlation := r.transport.NextCorrelation()
	_ = r.transport.Send(wire.EncodeDisposeCommand(correlation, r.handle))
}
