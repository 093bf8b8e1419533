// Package v24 implements the wire format of the Imaje "V24 dialog"
// protocol used by 9040/9042-series industrial inkjet printers.
//
// The V24 dialog is a strict half-duplex command/response handshake.
// It was originally carried over a serial line and is now exposed over
// TCP (port 2101 on most controllers), but the byte grammar is
// unchanged.
//
// # Frame Layout
//
// A framed request has this structure:
//   - Opcode: 1 byte (command identifier)
//   - Length: payload length, big-endian (2 bytes on known families)
//   - Payload: variable length
//   - Checksum: 1 byte, XOR of all preceding bytes
//
// A response frame is:
//   - Status: 1 byte, ACK (0x06) or NAK (0x15)
//   - Opcode: 1 byte, echo of the request opcode (ACK only)
//   - Length: payload length, big-endian
//   - Payload: variable length
//   - Checksum: 1 byte, XOR of all preceding bytes
//
// A NAK response is a single status byte with no body. The dialog
// readiness probe is a bare ENQ (0x05) control byte with no framing at
// all; the printer answers with a plain ACK or NAK.
//
// # Grammar
//
// Field widths and the checksum scheme vary across printer families
// (9040, 9042, IP65/Contrast), so the codec is parameterized by a
// Grammar value rather than hard-coded constants. Built-in profiles
// exist for the known families and custom profiles can be loaded from
// YAML. Profiles ship with conservative defaults and should be
// validated against captured traffic for unlisted firmware revisions.
//
// # Decoding
//
// Decode and DecodeRequest are incremental: fed a prefix of a valid
// frame they report that more bytes are needed (nil frame, nil error)
// rather than failing, so a session can accumulate reads from the
// socket. A malformed error is returned only once no continuation of
// the buffer can form a valid frame.
//
// # Usage
//
//	g := v24.DefaultGrammar()
//	req, err := v24.Encode(g, v24.CmdStartStop, []byte{v24.ModeStartUp})
//	// write req, read raw bytes back...
//	frame, n, err := v24.Decode(g, raw)
//	if frame != nil && frame.Acknowledged() { ... }
package v24
