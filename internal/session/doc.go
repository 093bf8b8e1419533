// Package session owns one transport connection to one printer and
// serializes the half-duplex V24 dialog over it.
//
// A Session moves through four states:
//
//	Disconnected → Idle → AwaitingResponse → Idle
//	                 ↘         ↘
//	                  Closed ← (timeout, I/O failure, malformed bytes)
//
// Exactly one exchange may be outstanding at a time. A second
// concurrent Exchange fails fast with a protocol-violation error and
// leaves the first exchange untouched; the dialog cannot pipeline.
//
// Closed is terminal. A timeout or transport failure mid-exchange
// leaves the byte stream at an unknown offset into a frame, which
// cannot be resynchronized safely, so the session closes instead of
// attempting recovery. Callers reconnect with a fresh Dial.
//
// The session performs no retries; retry and backoff policy belongs to
// the caller above the command facade.
package session
