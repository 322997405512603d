package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hnjm/SQLiteServer/internal/errs"
)

// maxFrameLen bounds a single frame so a corrupt length prefix cannot
// force an unbounded allocation.
const maxFrameLen = 64 << 20

// keepAliveInterval is how often Transport writes a zero-length
// keep-alive frame while idle, so a dead peer is noticed before the
// OS-level TCP keepalive would fire (SPEC_FULL.md §10).
const keepAliveInterval = 30 * time.Second

// Handler is invoked for every inbound frame that is not a correlated
// reply to an outstanding SendAndWait call (spec §4.1 on_receive).
type Handler func(Message)

// Transport implements the framed, request/response-correlated
// delivery contract of spec §4.1 on top of a net.Conn.
type Transport struct {
	conn   net.Conn
	writeM sync.Mutex
	w      *bufio.Writer

	pendingM sync.Mutex
	pending  map[uint64]chan frameResult

	nextCorrelation atomic.Uint64

	handler Handler

	group      *errgroup.Group
	closeOnce  sync.Once
	closed     chan struct{}
	closeErr   error
}

type frameResult struct {
	payload []byte
	err     error
}

// NewTransport wraps conn and starts its read loop. handler is
// invoked for every unsolicited inbound frame; it must not block for
// long, as it runs on the single read-loop goroutine.
func NewTransport(conn net.Conn, handler Handler) *Transport {
	t := &Transport{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		pending: make(map[uint64]chan frameResult),
		handler: handler,
		closed:  make(chan struct{}),
	}
	g := &errgroup.Group{}
	t.group = g
	g.Go(t.readLoop)
	g.Go(t.keepAliveLoop)
	return t
}

// NextCorrelation returns a fresh correlation id for a new request.
func (t *Transport) NextCorrelation() uint64 {
	return t.nextCorrelation.Add(1)
}

// Send writes payload as a fire-and-forget frame (spec §4.1 send).
func (t *Transport) Send(payload []byte) error {
	return t.writeFrame(payload)
}

// SendAndWait writes payload and blocks until a reply frame carrying
// the same correlation id (encoded by the caller into payload) is
// observed, the timeout elapses, or the transport disconnects (spec
// §4.1 send_and_wait).
func (t *Transport) SendAndWait(correlation uint64, payload []byte, timeout time.Duration) ([]byte, error) {
	ch := make(chan frameResult, 1)
	t.pendingM.Lock()
	t.pending[correlation] = ch
	t.pendingM.Unlock()

	defer func() {
		t.pendingM.Lock()
		delete(t.pending, correlation)
		t.pendingM.Unlock()
	}()

	if err := t.writeFrame(payload); err != nil {
		return nil, errs.Disconnected(err)
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.payload, nil
	case <-timeoutCh:
		return nil, errs.Timeout()
	case <-t.closed:
		return nil, errs.Disconnected(t.closeErr)
	}
}

func (t *Transport) writeFrame(payload []byte) error {
	if len(payload) > maxFrameLen {
		return errs.ProtocolError(nil, "outgoing frame too large: %d bytes", len(payload))
	}
	t.writeM.Lock()
	defer t.writeM.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := t.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := t.w.Write(payload); err != nil {
			return err
		}
	}
	return t.w.Flush()
}

func (t *Transport) readLoop() error {
	r := bufio.NewReader(t.conn)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			t.shutdown(err)
			return err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			// Keep-alive frame, silently discarded (spec §4.1).
			continue
		}
		if n > maxFrameLen {
			err := errs.ProtocolError(nil, "incoming frame too large: %d bytes", n)
			t.shutdown(err)
			return err
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			t.shutdown(err)
			return err
		}
		if !t.dispatch(payload) {
			return errs.ProtocolError(nil, "transport closed after protocol error")
		}
	}
}

// dispatch routes one decoded frame to its correlated waiter or the
// unsolicited-frame handler. A malformed frame or an unknown kind is a
// protocol error that terminates the transport (spec §4.2: "An
// unknown kind is a protocol error that terminates the transport";
// spec §7: ProtocolError is "Fatal to the transport"), so it returns
// false to tell readLoop to stop instead of quietly dropping the
// frame and leaving any correlated SendAndWait to hang until its own
// timeout.
func (t *Transport) dispatch(payload []byte) bool {
	msg, err := Decode(payload)
	if err != nil {
		t.shutdown(err)
		return false
	}

	t.pendingM.Lock()
	ch, ok := t.pending[msg.Correlation]
	if ok {
		delete(t.pending, msg.Correlation)
	}
	t.pendingM.Unlock()

	if ok {
		ch <- frameResult{payload: payload}
		return true
	}

	if t.handler != nil {
		t.handler(msg)
	}
	return true
}

func (t *Transport) keepAliveLoop() error {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.writeFrame(nil); err != nil {
				return err
			}
		case <-t.closed:
			return nil
		}
	}
}

func (t *Transport) shutdown(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = err
		close(t.closed)

		t.pendingM.Lock()
		for c, ch := range t.pending {
			ch <- frameResult{err: errs.Disconnected(err)}
			delete(t.pending, c)
		}
		t.pendingM.Unlock()
	})
}

// Done returns a channel that closes once the transport has
// disconnected, for callers that need to block for its lifetime.
func (t *Transport) Done() <-chan struct{} {
	return t.closed
}

// Close tears down the transport, releasing any in-flight waiters
// with Disconnected (spec §4.1 failure behavior).
func (t *Transport) Close() error {
	t.shutdown(nil)
	err := t.conn.Close()
	_ = t.group.Wait()
	return err
}
