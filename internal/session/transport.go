package session

import (
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jetware/imaje/internal/v24"
)

// Transport is the abstract duplex byte stream the session drives. A
// plain *net.TCPConn satisfies it; the websocket transport below
// adapts printers reached through a serial-over-WebSocket bridge. The
// session only requires read/write/close plus a deadline, nothing
// protocol-specific.
type Transport interface {
	io.ReadWriteCloser

	// SetDeadline bounds both the next read and the next write.
	SetDeadline(t time.Time) error
}

// DialTCP opens the default transport: a TCP connection to the
// printer's V24 service.
func DialTCP(addr string, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, v24.ClassifyNetError(err, addr, true)
	}
	return conn, nil
}

// wsTransport flattens a WebSocket message stream into the byte
// stream the session expects. Frame bytes are sent as binary messages
// and received messages are drained as a continuous reader.
type wsTransport struct {
	conn *websocket.Conn
	msg  io.Reader // remainder of the current incoming message
}

// DialWebSocket connects to a printer behind a WebSocket serial
// bridge. url is a full ws:// or wss:// endpoint.
func DialWebSocket(url string, timeout time.Duration) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, v24.NewConnectionError("websocket handshake failed", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.msg != nil {
			n, err := t.msg.Read(p)
			if err == io.EOF {
				// Message drained, move on to the next one.
				t.msg = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}
		_, r, err := t.conn.NextReader()
		if err != nil {
			return 0, err
		}
		t.msg = r
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) SetDeadline(deadline time.Time) error {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	return t.conn.SetWriteDeadline(deadline)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
