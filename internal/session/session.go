package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jetware/imaje/internal/logging"
	"github.com/jetware/imaje/internal/v24"
)

const (
	// DefaultPort is the TCP port of the printer's V24 service.
	DefaultPort = 2101

	// DefaultConnectTimeout bounds transport establishment.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultExchangeTimeout bounds one full request/response cycle.
	DefaultExchangeTimeout = 3 * time.Second

	// readChunk is the size of one transport read.
	readChunk = 512
)

// State is the dialog position of a session.
type State int32

const (
	StateDisconnected State = iota
	StateIdle
	StateAwaitingResponse
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session drives the half-duplex dialog over one transport. Sessions
// to distinct printers are fully independent; a single session rejects
// overlapping exchanges.
type Session struct {
	tr      Transport
	grammar v24.Grammar
	addr    string

	// timeout applies to exchanges whose context has no deadline.
	timeout atomic.Int64

	state atomic.Int32

	// closeMu makes Close idempotent against concurrent fatal errors.
	closeMu sync.Mutex
	closed  bool
}

// Dial connects to a printer over TCP and returns an idle session.
func Dial(host string, port int, g v24.Grammar) (*Session, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	tr, err := DialTCP(addr, DefaultConnectTimeout)
	if err != nil {
		return nil, err
	}
	logging.Debug("session connected",
		zap.String("printer_addr", addr),
		zap.String("grammar", g.Name),
	)
	return New(tr, addr, g), nil
}

// New wraps an already-open transport in an idle session. Used by
// Dial, by websocket callers, and by tests running against in-memory
// pipes.
func New(tr Transport, addr string, g v24.Grammar) *Session {
	s := &Session{tr: tr, grammar: g, addr: addr}
	s.timeout.Store(int64(DefaultExchangeTimeout))
	s.state.Store(int32(StateIdle))
	return s
}

// SetExchangeTimeout replaces the default per-exchange deadline.
func (s *Session) SetExchangeTimeout(d time.Duration) {
	s.timeout.Store(int64(d))
}

// State returns the current dialog state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// RemoteAddr returns the printer address the session was dialed with.
func (s *Session) RemoteAddr() string {
	return s.addr
}

// Grammar returns the wire grammar the session decodes with.
func (s *Session) Grammar() v24.Grammar {
	return s.grammar
}

// Exchange writes one encoded request and reads until the codec
// yields a complete response, returning the raw frame bytes. The
// reply mode selects the completeness rule (framed response vs. the
// single status byte answering a bare command).
//
// Exactly one exchange may be in flight: a concurrent call fails with
// a protocol-violation error without touching the transport. Timeouts
// and transport or framing failures close the session, because a
// partial read leaves the byte stream at an unrecoverable offset.
func (s *Session) Exchange(ctx context.Context, req []byte, mode v24.ReplyMode) ([]byte, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingResponse)) {
		switch s.State() {
		case StateAwaitingResponse:
			return nil, v24.NewProtocolError("exchange already in progress: the dialog permits one outstanding request")
		default:
			return nil, v24.NewConnectionError("session is closed", s.addr, nil)
		}
	}

	raw, err := s.exchange(ctx, req, mode)
	if err != nil {
		if v24.IsProtocolViolation(err) || v24.IsInvalidArgument(err) {
			// Caller error, the transport is still aligned.
			s.state.CompareAndSwap(int32(StateAwaitingResponse), int32(StateIdle))
			return nil, err
		}
		s.fail()
		return nil, err
	}

	s.state.CompareAndSwap(int32(StateAwaitingResponse), int32(StateIdle))
	return raw, nil
}

// exchange runs the send/accumulate/decode cycle.
func (s *Session) exchange(ctx context.Context, req []byte, mode v24.ReplyMode) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, v24.NewIOError("exchange aborted before send", s.addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Duration(s.timeout.Load()))
	}
	if err := s.tr.SetDeadline(deadline); err != nil {
		return nil, v24.NewIOError("failed to arm deadline", s.addr, err)
	}

	if _, err := s.tr.Write(req); err != nil {
		return nil, v24.ClassifyNetError(err, s.addr, false)
	}
	logging.LogRawBytes("request sent", req)

	// Accumulate reads until the codec reports one complete frame.
	// Trailing bytes past the frame would mean the half-duplex dialog
	// is out of step, so the buffer is not carried between exchanges.
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		rn, rerr := s.tr.Read(chunk)
		if rn > 0 {
			buf = append(buf, chunk[:rn]...)
			frame, n, err := v24.DecodeWith(s.grammar, mode, buf)
			if err != nil {
				logging.LogRawBytes("malformed response", buf)
				return nil, err
			}
			if frame != nil {
				logging.LogRawBytes("response received", frame.Raw)
				if n < len(buf) {
					logging.Warn("discarding trailing bytes after response frame",
						zap.String("printer_addr", s.addr),
						zap.Int("count", len(buf)-n),
					)
				}
				return frame.Raw, nil
			}
		}
		if rerr != nil {
			return nil, v24.ClassifyNetError(rerr, s.addr, false)
		}
	}
}

// fail transitions to Closed after a fatal exchange error.
func (s *Session) fail() {
	s.state.Store(int32(StateClosed))
	s.closeTransport()
	logging.Warn("session closed after fatal exchange error",
		zap.String("printer_addr", s.addr),
	)
}

// Close releases the transport. It runs on every exit path and is
// idempotent: closing a closed session is a no-op.
func (s *Session) Close() error {
	s.state.Store(int32(StateClosed))
	return s.closeTransport()
}

func (s *Session) closeTransport() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed || s.tr == nil {
		return nil
	}
	s.closed = true
	return s.tr.Close()
}
