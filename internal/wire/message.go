package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/hnjm/SQLiteServer/internal/errs"
)

// Message is one decoded protocol message: its kind, correlation id
// and raw body bytes. Encoding/decoding of the body into concrete
// Go values is done by the Encode*/Decode* helpers below, keyed by
// Kind, matching spec §4.2/§6.
type Message struct {
	Kind        Kind
	Correlation uint64
	Body        []byte
}

// encodeHeader writes kind and correlation ahead of body.
func encodeHeader(kind Kind, correlation uint64, body []byte) []byte {
	buf := make([]byte, 4+8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(kind))
	binary.LittleEndian.PutUint64(buf[4:12], correlation)
	copy(buf[12:], body)
	return buf
}

// decodeHeader splits a raw payload into its Message shell.
func decodeHeader(payload []byte) (Message, error) {
	if len(payload) < 12 {
		return Message{}, errs.ProtocolError(nil, "frame too short for header: %d bytes", len(payload))
	}
	kind := Kind(binary.LittleEndian.Uint32(payload[0:4]))
	correlation := binary.LittleEndian.Uint64(payload[4:12])
	return Message{Kind: kind, Correlation: correlation, Body: payload[12:]}, nil
}

func putString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", errs.ProtocolError(err, "reading string length")
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", errs.ProtocolError(err, "reading string body")
	}
	return string(data), nil
}

func putHandle(buf *bytes.Buffer, h Handle) {
	buf.Write(h[:])
}

func readHandle(r *bytes.Reader) (Handle, error) {
	var h Handle
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, errs.ProtocolError(err, "reading handle")
	}
	return h, nil
}

// --- CreateCommandRequest ---

func EncodeCreateCommandRequest(correlation uint64, sql string) []byte {
	var buf bytes.Buffer
	putString(&buf, sql)
	return encodeHeader(CreateCommandRequest, correlation, buf.Bytes())
}

func DecodeCreateCommandRequest(body []byte) (sql string, err error) {
	return readString(bytes.NewReader(body))
}

// --- CreateCommandResponse ---

func EncodeCreateCommandResponse(correlation uint64, handle Handle) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	return encodeHeader(CreateCommandResponse, correlation, buf.Bytes())
}

func DecodeCreateCommandResponse(body []byte) (Handle, error) {
	return readHandle(bytes.NewReader(body))
}

// --- CreateCommandException / ExecuteNonQueryException / ExecuteReaderException ---

func encodeExceptionBody(message string) []byte {
	var buf bytes.Buffer
	putString(&buf, message)
	return buf.Bytes()
}

func DecodeExceptionMessage(body []byte) (string, error) {
	return readString(bytes.NewReader(body))
}

func EncodeCreateCommandException(correlation uint64, message string) []byte {
	return encodeHeader(CreateCommandException, correlation, encodeExceptionBody(message))
}

func EncodeExecuteNonQueryException(correlation uint64, message string) []byte {
	return encodeHeader(ExecuteNonQueryException, correlation, encodeExceptionBody(message))
}

func EncodeExecuteReaderException(correlation uint64, message string) []byte {
	return encodeHeader(ExecuteReaderException, correlation, encodeExceptionBody(message))
}

// --- DisposeCommand ---

func EncodeDisposeCommand(correlation uint64, handle Handle) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	return encodeHeader(DisposeCommand, correlation, buf.Bytes())
}

func DecodeDisposeCommand(body []byte) (Handle, error) {
	return readHandle(bytes.NewReader(body))
}

// --- ExecuteNonQueryRequest / Response ---

func EncodeExecuteNonQueryRequest(correlation uint64, handle Handle) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	return encodeHeader(ExecuteNonQueryRequest, correlation, buf.Bytes())
}

func DecodeExecuteNonQueryRequest(body []byte) (Handle, error) {
	return readHandle(bytes.NewReader(body))
}

func EncodeExecuteNonQueryResponse(correlation uint64, changes int32) []byte {
	var buf bytes.Buffer
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(changes))
	buf.Write(n[:])
	return encodeHeader(ExecuteNonQueryResponse, correlation, buf.Bytes())
}

func DecodeExecuteNonQueryResponse(body []byte) (int32, error) {
	if len(body) < 4 {
		return 0, errs.ProtocolError(nil, "short ExecuteNonQueryResponse body")
	}
	return int32(binary.LittleEndian.Uint32(body[0:4])), nil
}

// --- ExecuteReaderRequest ---

func EncodeExecuteReaderRequest(correlation uint64, handle Handle, behavior uint32) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], behavior)
	buf.Write(b[:])
	return encodeHeader(ExecuteReaderRequest, correlation, buf.Bytes())
}

func DecodeExecuteReaderRequest(body []byte) (handle Handle, behavior uint32, err error) {
	r := bytes.NewReader(body)
	handle, err = readHandle(r)
	if err != nil {
		return handle, 0, err
	}
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return handle, 0, errs.ProtocolError(err, "reading behavior")
	}
	return handle, binary.LittleEndian.Uint32(b[:]), nil
}

// ColumnDescriptor mirrors spec §3: ordinal, name, sqlite_type.
type ColumnDescriptor struct {
	Ordinal    uint16
	Name       string
	SQLiteType SQLiteType
}

// EncodeExecuteReaderResponseInitial encodes the "initial" shape of
// ExecuteReaderResponse: the column descriptor list (spec §6).
func EncodeExecuteReaderResponseInitial(correlation uint64, columns []ColumnDescriptor) []byte {
	var buf bytes.Buffer
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(columns)))
	buf.Write(n[:])
	for _, c := range columns {
		putString(&buf, c.Name)
		buf.WriteByte(byte(c.SQLiteType))
	}
	return encodeHeader(ExecuteReaderResponse, correlation, buf.Bytes())
}

func DecodeExecuteReaderResponseInitial(body []byte) ([]ColumnDescriptor, error) {
	r := bytes.NewReader(body)
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, errs.ProtocolError(err, "reading column count")
	}
	count := binary.LittleEndian.Uint16(n[:])
	cols := make([]ColumnDescriptor, count)
	for i := range cols {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		typeByte, err := r.ReadByte()
		if err != nil {
			return nil, errs.ProtocolError(err, "reading column type")
		}
		cols[i] = ColumnDescriptor{Ordinal: uint16(i), Name: name, SQLiteType: SQLiteType(typeByte)}
	}
	return cols, nil
}

// --- ExecuteReaderReadRequest / Response (read) ---

func EncodeExecuteReaderReadRequest(correlation uint64, handle Handle) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	return encodeHeader(ExecuteReaderReadRequest, correlation, buf.Bytes())
}

func DecodeExecuteReaderReadRequest(body []byte) (Handle, error) {
	return readHandle(bytes.NewReader(body))
}

func EncodeExecuteReaderResponseRead(correlation uint64, hasRow bool) []byte {
	body := []byte{0}
	if hasRow {
		body[0] = 1
	}
	return encodeHeader(ExecuteReaderResponse, correlation, body)
}

func DecodeExecuteReaderResponseRead(body []byte) (bool, error) {
	if len(body) < 1 {
		return false, errs.ProtocolError(nil, "short ExecuteReaderResponse(read) body")
	}
	return body[0] != 0, nil
}

// --- ExecuteReaderGetOrdinalRequest ---

func EncodeExecuteReaderGetOrdinalRequest(correlation uint64, handle Handle, name string) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	putString(&buf, name)
	return encodeHeader(ExecuteReaderGetOrdinalRequest, correlation, buf.Bytes())
}

func DecodeExecuteReaderGetOrdinalRequest(body []byte) (handle Handle, name string, err error) {
	r := bytes.NewReader(body)
	handle, err = readHandle(r)
	if err != nil {
		return handle, "", err
	}
	name, err = readString(r)
	return handle, name, err
}

// --- ExecuteReaderGet{Int16,Int32,Int64,String,FieldType}Request ---

func encodeGetByOrdinal(kind Kind, correlation uint64, handle Handle, ordinal uint16) []byte {
	var buf bytes.Buffer
	putHandle(&buf, handle)
	var o [2]byte
	binary.LittleEndian.PutUint16(o[:], ordinal)
	buf.Write(o[:])
	return encodeHeader(kind, correlation, buf.Bytes())
}

func decodeGetByOrdinal(body []byte) (handle Handle, ordinal uint16, err error) {
	r := bytes.NewReader(body)
	handle, err = readHandle(r)
	if err != nil {
		return handle, 0, err
	}
	var o [2]byte
	if _, err := io.ReadFull(r, o[:]); err != nil {
		return handle, 0, errs.ProtocolError(err, "reading ordinal")
	}
	return handle, binary.LittleEndian.Uint16(o[:]), nil
}

func EncodeExecuteReaderGetInt16Request(c uint64, h Handle, ord uint16) []byte {
	return encodeGetByOrdinal(ExecuteReaderGetInt16Request, c, h, ord)
}
func EncodeExecuteReaderGetInt32Request(c uint64, h Handle, ord uint16) []byte {
	return encodeGetByOrdinal(ExecuteReaderGetInt32Request, c, h, ord)
}
func EncodeExecuteReaderGetInt64Request(c uint64, h Handle, ord uint16) []byte {
	return encodeGetByOrdinal(ExecuteReaderGetInt64Request, c, h, ord)
}
func EncodeExecuteReaderGetStringRequest(c uint64, h Handle, ord uint16) []byte {
	return encodeGetByOrdinal(ExecuteReaderGetStringRequest, c, h, ord)
}
func EncodeExecuteReaderGetFieldTypeRequest(c uint64, h Handle, ord uint16) []byte {
	return encodeGetByOrdinal(ExecuteReaderGetFieldTypeRequest, c, h, ord)
}

func DecodeExecuteReaderGetInt16Request(body []byte) (Handle, uint16, error)  { return decodeGetByOrdinal(body) }
func DecodeExecuteReaderGetInt32Request(body []byte) (Handle, uint16, error)  { return decodeGetByOrdinal(body) }
func DecodeExecuteReaderGetInt64Request(body []byte) (Handle, uint16, error)  { return decodeGetByOrdinal(body) }
func DecodeExecuteReaderGetStringRequest(body []byte) (Handle, uint16, error) { return decodeGetByOrdinal(body) }
func DecodeExecuteReaderGetFieldTypeRequest(body []byte) (Handle, uint16, error) {
	return decodeGetByOrdinal(body)
}

// --- ExecuteReaderResponse (typed value) ---

// Value is a decoded typed-value response payload (spec §6).
type Value struct {
	Tag        ValueTag
	Int16      int16
	Int32      int32
	Int64      int64
	String     string
	FieldType  SQLiteType
}

func EncodeExecuteReaderResponseValue(correlation uint64, v Value) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(v.Tag))
	switch v.Tag {
	case TagNull:
	case TagInt16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v.Int16))
		buf.Write(b[:])
	case TagInt32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.Int32))
		buf.Write(b[:])
	case TagInt64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int64))
		buf.Write(b[:])
	case TagString:
		putString(&buf, v.String)
	case TagFieldType:
		buf.WriteByte(byte(v.FieldType))
	}
	return encodeHeader(ExecuteReaderResponse, correlation, buf.Bytes())
}

func DecodeExecuteReaderResponseValue(body []byte) (Value, error) {
	r := bytes.NewReader(body)
	tagByte, err := r.ReadByte()
	if err != nil {
		return Value{}, errs.ProtocolError(err, "reading value tag")
	}
	tag := ValueTag(tagByte)
	v := Value{Tag: tag}
	switch tag {
	case TagNull:
	case TagInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return v, errs.ProtocolError(err, "reading int16 value")
		}
		v.Int16 = int16(binary.LittleEndian.Uint16(b[:]))
	case TagInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return v, errs.ProtocolError(err, "reading int32 value")
		}
		v.Int32 = int32(binary.LittleEndian.Uint32(b[:]))
	case TagInt64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return v, errs.ProtocolError(err, "reading int64 value")
		}
		v.Int64 = int64(binary.LittleEndian.Uint64(b[:]))
	case TagString:
		s, err := readString(r)
		if err != nil {
			return v, err
		}
		v.String = s
	case TagFieldType:
		ft, err := r.ReadByte()
		if err != nil {
			return v, errs.ProtocolError(err, "reading field type value")
		}
		v.FieldType = SQLiteType(ft)
	default:
		return v, errs.ProtocolError(nil, "unknown value tag %d", tagByte)
	}
	return v, nil
}

// Decode parses a raw frame payload into a Message, validating the
// kind is within the closed enumeration (spec §4.2: an unknown kind
// is a protocol error that terminates the transport).
func Decode(payload []byte) (Message, error) {
	msg, err := decodeHeader(payload)
	if err != nil {
		return msg, err
	}
	if msg.Kind == Unknown || msg.Kind > ExecuteReaderException {
		return msg, errs.ProtocolError(nil, "unknown message kind %d", msg.Kind)
	}
	return msg, nil
}
