package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jetware/imaje/internal/v24"
)

// pipeSession returns a session wired to an in-memory printer end.
func pipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, printer := net.Pipe()
	s := New(client, "pipe:2101", v24.DefaultGrammar())
	t.Cleanup(func() {
		_ = s.Close()
		_ = printer.Close()
	})
	return s, printer
}

// readRequest consumes one framed request from the printer end.
func readRequest(t *testing.T, conn net.Conn, g v24.Grammar) *v24.Request {
	t.Helper()
	var buf []byte
	chunk := make([]byte, 64)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("printer read failed: %v", err)
		}
		buf = append(buf, chunk[:n]...)
		req, _, err := v24.DecodeRequest(g, buf)
		if err != nil {
			t.Fatalf("printer decode failed: %v", err)
		}
		if req != nil {
			return req
		}
	}
}

func TestExchange_FramedResponse(t *testing.T) {
	g := v24.DefaultGrammar()
	s, printer := pipeSession(t)

	go func() {
		req := readRequest(t, printer, g)
		resp, _ := v24.EncodeResponse(g, req.Opcode, []byte{0x07})
		_, _ = printer.Write(resp)
	}()

	reqBytes, err := v24.Encode(g, v24.CmdGetJetStatus, []byte{1})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	raw, err := s.Exchange(context.Background(), reqBytes, v24.ReplyFramed)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	frame, _, err := v24.Decode(g, raw)
	if err != nil || frame == nil {
		t.Fatalf("response did not decode: %v", err)
	}
	if !frame.Acknowledged() || !bytes.Equal(frame.Payload, []byte{0x07}) {
		t.Errorf("frame = %+v, want acknowledged with payload 07", frame)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle after exchange", s.State())
	}
}

func TestExchange_StatusReply(t *testing.T) {
	g := v24.DefaultGrammar()
	s, printer := pipeSession(t)

	go func() {
		one := make([]byte, 1)
		if _, err := io.ReadFull(printer, one); err != nil {
			return
		}
		_, _ = printer.Write(v24.EncodeAck(g))
	}()

	raw, err := s.Exchange(context.Background(), []byte{v24.ENQ}, v24.ReplyStatus)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !bytes.Equal(raw, []byte{v24.ACK}) {
		t.Errorf("raw = % 02X, want lone ACK", raw)
	}
}

// The printer dribbling the response one byte at a time must not
// confuse the accumulator.
func TestExchange_FragmentedResponse(t *testing.T) {
	g := v24.DefaultGrammar()
	s, printer := pipeSession(t)

	go func() {
		req := readRequest(t, printer, g)
		resp, _ := v24.EncodeResponse(g, req.Opcode, []byte("000012345"))
		for _, b := range resp {
			if _, err := printer.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	reqBytes, _ := v24.Encode(g, v24.CmdGetJetCounter, []byte{1})
	raw, err := s.Exchange(context.Background(), reqBytes, v24.ReplyFramed)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	frame, _, _ := v24.Decode(g, raw)
	if string(frame.Payload) != "000012345" {
		t.Errorf("payload = %q, want 000012345", frame.Payload)
	}
}

func TestExchange_TimeoutClosesSession(t *testing.T) {
	s, _ := pipeSession(t)
	s.SetExchangeTimeout(100 * time.Millisecond)

	start := time.Now()
	_, err := s.Exchange(context.Background(), []byte{v24.ENQ}, v24.ReplyStatus)
	elapsed := time.Since(start)

	if !v24.IsTimeout(err) {
		t.Fatalf("Exchange() error = %v, want timeout", err)
	}
	if elapsed > time.Second {
		t.Errorf("timeout fired after %v, want ~100ms", elapsed)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed after timeout", s.State())
	}

	// The partial read offset is unrecoverable: the session stays
	// closed until a fresh dial.
	_, err = s.Exchange(context.Background(), []byte{v24.ENQ}, v24.ReplyStatus)
	if !v24.IsConnectionError(err) {
		t.Errorf("Exchange() on closed session error = %v, want connection error", err)
	}
}

func TestExchange_SingleOutstandingInvariant(t *testing.T) {
	g := v24.DefaultGrammar()
	s, printer := pipeSession(t)
	s.SetExchangeTimeout(2 * time.Second)

	release := make(chan struct{})
	go func() {
		req := readRequest(t, printer, g)
		<-release
		resp, _ := v24.EncodeResponse(g, req.Opcode, nil)
		_, _ = printer.Write(resp)
	}()

	firstDone := make(chan error, 1)
	reqBytes, _ := v24.Encode(g, v24.CmdResetFaults, nil)
	go func() {
		_, err := s.Exchange(context.Background(), reqBytes, v24.ReplyFramed)
		firstDone <- err
	}()

	// Wait until the first exchange is on the wire.
	for s.State() != StateAwaitingResponse {
		time.Sleep(time.Millisecond)
	}

	_, err := s.Exchange(context.Background(), reqBytes, v24.ReplyFramed)
	if !v24.IsProtocolViolation(err) {
		t.Fatalf("second Exchange() error = %v, want protocol violation", err)
	}

	// The first exchange completes untouched.
	close(release)
	if err := <-firstDone; err != nil {
		t.Errorf("first Exchange() error = %v, want nil", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestExchange_MalformedResponseClosesSession(t *testing.T) {
	s, printer := pipeSession(t)

	go func() {
		one := make([]byte, 1)
		if _, err := io.ReadFull(printer, one); err != nil {
			return
		}
		_, _ = printer.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	}()

	_, err := s.Exchange(context.Background(), []byte{v24.ENQ}, v24.ReplyStatus)
	if !v24.IsDecodeError(err) {
		t.Fatalf("Exchange() error = %v, want decode error", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed after malformed bytes", s.State())
	}
}

func TestExchange_NakResponse(t *testing.T) {
	g := v24.DefaultGrammar()
	s, printer := pipeSession(t)

	go func() {
		readRequest(t, printer, g)
		_, _ = printer.Write(v24.EncodeNak(g))
	}()

	reqBytes, _ := v24.Encode(g, v24.CmdStartStop, []byte{v24.ModeStartUp})
	raw, err := s.Exchange(context.Background(), reqBytes, v24.ReplyFramed)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	frame, _, _ := v24.Decode(g, raw)
	if frame.Acknowledged() {
		t.Error("NAK response must not be acknowledged")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle (a NAK is a well-formed response)", s.State())
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, _ := pipeSession(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestExchange_ContextDeadline(t *testing.T) {
	s, _ := pipeSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Exchange(ctx, []byte{v24.ENQ}, v24.ReplyStatus)
	if !v24.IsTimeout(err) {
		t.Fatalf("Exchange() error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("deadline fired after %v, want ~50ms", elapsed)
	}
}

func TestDialTCP_ConnectionRefused(t *testing.T) {
	// Grab a port that is guaranteed closed.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	_, err = DialTCP(addr, 500*time.Millisecond)
	if !v24.IsConnectionError(err) {
		t.Errorf("DialTCP() error = %v, want connection error", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateIdle, "idle"},
		{StateAwaitingResponse, "awaiting-response"},
		{StateClosed, "closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
