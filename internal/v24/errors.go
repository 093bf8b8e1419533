package v24

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorKind categorizes a dialog failure.
type ErrorKind int

const (
	// KindInvalidArgument means the caller passed a value outside a
	// command's domain. Rejected locally, before any I/O.
	KindInvalidArgument ErrorKind = iota
	// KindConnection means the transport could not be established.
	KindConnection
	// KindTimeout means no complete response arrived within the
	// deadline. The session is closed afterwards.
	KindTimeout
	// KindIO means the transport failed mid-exchange. The session is
	// closed afterwards.
	KindIO
	// KindDecode means received bytes do not match the frame grammar.
	// Byte-stream alignment can no longer be trusted, so the session
	// is closed afterwards.
	KindDecode
	// KindProtocol means the single-outstanding-request invariant was
	// violated. A programming error in the caller, not a transport
	// fault; the session stays usable.
	KindProtocol
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindConnection:
		return "connection error"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "I/O error"
	case KindDecode:
		return "decode error"
	case KindProtocol:
		return "protocol violation"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the typed failure every public operation surfaces. Exactly
// one kind applies per failure; nothing is silently swallowed and the
// dialog core never retries on its own.
type Error struct {
	Kind    ErrorKind // Category of failure
	Message string    // Human-readable description
	Addr    string    // Printer address, when known
	Err     error     // Underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Addr != "" {
		s = fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Addr)
	}
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidArgumentError reports a value outside a command's domain.
func NewInvalidArgumentError(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

// NewConnectionError reports a failure to establish the transport.
func NewConnectionError(message, addr string, err error) *Error {
	return &Error{Kind: KindConnection, Message: message, Addr: addr, Err: err}
}

// NewTimeoutError reports a missed response deadline.
func NewTimeoutError(message, addr string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Addr: addr, Err: err}
}

// NewIOError reports a transport failure mid-exchange.
func NewIOError(message, addr string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Addr: addr, Err: err}
}

// NewDecodeError reports bytes that cannot form a valid frame.
func NewDecodeError(message string, err error) *Error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}

// NewProtocolError reports a violated dialog invariant.
func NewProtocolError(message string) *Error {
	return &Error{Kind: KindProtocol, Message: message}
}

// ClassifyNetError maps a transport error onto the dialog taxonomy:
// deadline expiry becomes a timeout, dial-phase failures (refusal,
// DNS, unreachable hosts) become connection errors, everything else is
// an I/O error.
func ClassifyNetError(err error, addr string, dialing bool) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		if dialing {
			return NewConnectionError("connect timed out", addr, err)
		}
		return NewTimeoutError("no complete response before deadline", addr, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnectionError(fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name), addr, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return NewConnectionError("printer refused connection", addr, err)
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return NewConnectionError("host unreachable", addr, err)
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return NewConnectionError("network unreachable", addr, err)
		}
	}

	if dialing {
		return NewConnectionError("could not open transport", addr, err)
	}
	return NewIOError("transport failed", addr, err)
}

// kindOf extracts the kind of a dialog error, or -1 for foreign errors.
func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKind(-1)
}

// IsInvalidArgument reports whether err is a domain-validation failure.
func IsInvalidArgument(err error) bool { return kindOf(err) == KindInvalidArgument }

// IsConnectionError reports whether err is a transport-establishment failure.
func IsConnectionError(err error) bool { return kindOf(err) == KindConnection }

// IsTimeout reports whether err is a missed response deadline.
func IsTimeout(err error) bool { return kindOf(err) == KindTimeout }

// IsIOError reports whether err is a mid-exchange transport failure.
func IsIOError(err error) bool { return kindOf(err) == KindIO }

// IsDecodeError reports whether err is a frame-grammar violation.
func IsDecodeError(err error) bool { return kindOf(err) == KindDecode }

// IsProtocolViolation reports whether err is a dialog-invariant violation.
func IsProtocolViolation(err error) bool { return kindOf(err) == KindProtocol }
