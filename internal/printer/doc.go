// Package printer is the command facade of the V24 dialog client: one
// named method per printer operation, built on the session and codec
// layers.
//
// Each operation is a (command, argument domain, response interpreter)
// triple. The codec owns the closed command table, the session owns
// the transport, and this package only validates arguments, runs one
// round trip, and interprets the decoded frame into a domain value
// (boolean acknowledgement, jet status, parameter record, fault
// bitfields). Adding an operation means adding one method; the codec
// and session stay untouched.
//
// # Rejections vs. failures
//
// Boolean operations (StartStopPrinter, ResetJetCounter, ...) report
// a printer-side NAK as false with a nil error. Value operations
// (GetJetCounter, GetParameters, ...) cannot do that, so they return
// an error wrapping ErrRejected. Transport, timeout, and framing
// failures always surface as typed errors from the v24 package.
//
// # Retries
//
// The facade performs none. A failed exchange closes the session and
// the caller decides whether to reconnect and try again.
package printer
