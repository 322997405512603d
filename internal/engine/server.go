package engine

import (
	"net"
	"sync/atomic"

	"github.com/hnjm/SQLiteServer/internal/errs"
	"github.com/hnjm/SQLiteServer/internal/logger"
	"github.com/hnjm/SQLiteServer/internal/wire"
)

// Server accepts follower connections and dispatches their requests
// against a shared Engine, translating wire.Message traffic into
// Engine calls and framing the responses back (spec §4.3's request
// handling, driven over the transport of §4.1).
type Server struct {
	engine  *Engine
	nextPeer atomic.Uint64
}

// NewServer wraps engine for network service.
func NewServer(engine *Engine) *Server {
	return &Server{engine: engine}
}

// Serve accepts connections off ln until it errors (typically because
// the listener was closed) and handles each on its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	peer := PeerID(s.nextPeer.Add(1))

	var t *wire.Transport
	t = wire.NewTransport(conn, func(msg wire.Message) {
		s.handleRequest(t, peer, msg)
	})

	<-t.Done()
	s.engine.DisconnectPeer(peer)
	logger.Info("follower disconnected", logger.Ctx{"peer": peer})
}

func (s *Server) handleRequest(t *wire.Transport, peer PeerID, msg wire.Message) {
	switch msg.Kind {
	case wire.CreateCommandRequest:
		s.onCreateCommand(t, peer, msg)
	case wire.DisposeCommand:
		s.onDisposeCommand(msg)
	case wire.ExecuteNonQueryRequest:
		s.onExecuteNonQuery(t, msg)
	case wire.ExecuteReaderRequest:
		s.onExecuteReader(t, msg)
	case wire.ExecuteReaderReadRequest:
		s.onReadRow(t, msg)
	case wire.ExecuteReaderGetOrdinalRequest:
		s.onGetOrdinal(t, msg)
	case wire.ExecuteReaderGetInt16Request:
		s.onGetInt16(t, msg)
	case wire.ExecuteReaderGetInt32Request:
		s.onGetInt32(t, msg)
	case wire.ExecuteReaderGetInt64Request:
		s.onGetInt64(t, msg)
	case wire.ExecuteReaderGetStringRequest:
		s.onGetString(t, msg)
	case wire.ExecuteReaderGetFieldTypeRequest:
		s.onGetFieldType(t, msg)
	default:
		logger.Warn("unexpected request kind", logger.Ctx{"kind": msg.Kind})
	}
}

func (s *Server) onCreateCommand(t *wire.Transport, peer PeerID, msg wire.Message) {
	sqlText, err := wire.DecodeCreateCommandRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeCreateCommandException(msg.Correlation, err.Error()))
		return
	}
	handle, err := s.engine.CreateCommand(peer, sqlText)
	if err != nil {
		s.sendFrame(t, wire.EncodeCreateCommandException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeCreateCommandResponse(msg.Correlation, handle))
}

func (s *Server) onDisposeCommand(msg wire.Message) {
	handle, err := wire.DecodeDisposeCommand(msg.Body)
	if err != nil {
		return
	}
	s.engine.DisposeCommand(handle)
}

func (s *Server) onExecuteNonQuery(t *wire.Transport, msg wire.Message) {
	handle, err := wire.DecodeExecuteNonQueryRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteNonQueryException(msg.Correlation, err.Error()))
		return
	}
	changes, err := s.engine.ExecuteNonQuery(handle)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteNonQueryException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteNonQueryResponse(msg.Correlation, changes))
}

func (s *Server) onExecuteReader(t *wire.Transport, msg wire.Message) {
	handle, _, err := wire.DecodeExecuteReaderRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	cols, err := s.engine.ExecuteReader(handle)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseInitial(msg.Correlation, cols))
}

func (s *Server) onReadRow(t *wire.Transport, msg wire.Message) {
	handle, err := wire.DecodeExecuteReaderReadRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	hasRow, err := s.engine.ReadRow(handle)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseRead(msg.Correlation, hasRow))
}

func (s *Server) onGetOrdinal(t *wire.Transport, msg wire.Message) {
	handle, name, err := wire.DecodeExecuteReaderGetOrdinalRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	ord, err := s.engine.GetOrdinal(handle, name)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagInt32, Int32: ord}))
}

func (s *Server) onGetInt16(t *wire.Transport, msg wire.Message) {
	handle, ord, err := wire.DecodeExecuteReaderGetInt16Request(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	v, err := s.engine.GetInt16(handle, ord)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagInt16, Int16: v}))
}

func (s *Server) onGetInt32(t *wire.Transport, msg wire.Message) {
	handle, ord, err := wire.DecodeExecuteReaderGetInt32Request(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	v, err := s.engine.GetInt32(handle, ord)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagInt32, Int32: v}))
}

func (s *Server) onGetInt64(t *wire.Transport, msg wire.Message) {
	handle, ord, err := wire.DecodeExecuteReaderGetInt64Request(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	v, err := s.engine.GetInt64(handle, ord)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagInt64, Int64: v}))
}

func (s *Server) onGetString(t *wire.Transport, msg wire.Message) {
	handle, ord, err := wire.DecodeExecuteReaderGetStringRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	v, err := s.engine.GetString(handle, ord)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagString, String: v}))
}

func (s *Server) onGetFieldType(t *wire.Transport, msg wire.Message) {
	handle, ord, err := wire.DecodeExecuteReaderGetFieldTypeRequest(msg.Body)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	v, err := s.engine.GetFieldType(handle, ord)
	if err != nil {
		s.sendFrame(t, wire.EncodeExecuteReaderException(msg.Correlation, err.Error()))
		return
	}
	s.sendFrame(t, wire.EncodeExecuteReaderResponseValue(msg.Correlation, wire.Value{Tag: wire.TagFieldType, FieldType: v}))
}

func (s *Server) sendFrame(t *wire.Transport, payload []byte) {
	if err := t.Send(payload); err != nil {
		logger.Warn("failed to send reply frame", logger.Ctx{"err": errs.Disconnected(err)})
	}
}
