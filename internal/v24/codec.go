package v24

import "fmt"

// ReplyMode selects the completeness rule for a response.
type ReplyMode int

const (
	// ReplyFramed expects a full response frame (or a lone NAK).
	ReplyFramed ReplyMode = iota
	// ReplyStatus expects a single ACK/NAK control byte, the reply
	// shape of bare commands.
	ReplyStatus
)

// ReplyMode returns the response shape the printer uses for c.
func (c Command) ReplyMode() ReplyMode {
	if c.Bare {
		return ReplyStatus
	}
	return ReplyFramed
}

// Frame is one parsed response. It is transient: created per exchange,
// owned by the caller that decoded it, discarded after interpretation.
type Frame struct {
	Status  byte   // ACK or NAK
	Opcode  byte   // Echoed request opcode (ACK frames only)
	Payload []byte // Response data, nil for status-only frames
	Raw     []byte // Original frame bytes, for wire-level logging

	acked bool // Status matched the grammar's ACK byte at decode time
}

// Acknowledged reports whether the printer accepted the command.
func (f *Frame) Acknowledged() bool {
	return f != nil && f.acked
}

// newFrame builds a Frame, detaching Raw from the caller's read buffer.
func newFrame(g Grammar, status, opcode byte, payload, raw []byte) *Frame {
	f := &Frame{
		Status:  status,
		Opcode:  opcode,
		Payload: payload,
		Raw:     make([]byte, len(raw)),
		acked:   status == g.Ack,
	}
	copy(f.Raw, raw)
	return f
}

// Request is one parsed request frame, the simulator-side counterpart
// of Frame.
type Request struct {
	Opcode  byte
	Payload []byte
	Raw     []byte
}

// Command resolves the request opcode against the closed command
// table. ok is false for opcodes outside the documented set.
func (r *Request) Command() (Command, bool) {
	return CommandByOpcode(r.Opcode)
}

// Encode produces the exact wire bytes of a command. It is a pure
// function: deterministic, no side effects, and it fails with an
// invalid-argument error before any I/O when the payload is outside
// the command's domain.
func Encode(g Grammar, cmd Command, payload []byte) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := cmd.checkPayload(payload); err != nil {
		return nil, err
	}
	if cmd.Bare {
		return []byte{cmd.Opcode}, nil
	}
	if len(payload) > g.MaxPayload {
		return nil, NewInvalidArgumentError(fmt.Sprintf("%s: payload %d bytes exceeds grammar maximum %d", cmd.Name, len(payload), g.MaxPayload))
	}

	frame := make([]byte, 0, 1+g.LengthWidth+len(payload)+g.checksumLen())
	frame = append(frame, cmd.Opcode)
	frame = appendLength(frame, g.LengthWidth, len(payload))
	frame = append(frame, payload...)
	if g.Checksum == ChecksumXOR {
		frame = append(frame, xor(frame))
	}
	return frame, nil
}

// EncodeResponse builds an ACK response frame echoing the given
// opcode. Used by the printer simulator and by loopback tests.
func EncodeResponse(g Grammar, opcode byte, payload []byte) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(payload) > g.MaxPayload {
		return nil, NewInvalidArgumentError(fmt.Sprintf("response payload %d bytes exceeds grammar maximum %d", len(payload), g.MaxPayload))
	}

	frame := make([]byte, 0, 2+g.LengthWidth+len(payload)+g.checksumLen())
	frame = append(frame, g.Ack, opcode)
	frame = appendLength(frame, g.LengthWidth, len(payload))
	frame = append(frame, payload...)
	if g.Checksum == ChecksumXOR {
		frame = append(frame, xor(frame))
	}
	return frame, nil
}

// EncodeAck builds the single-byte positive reply to a bare command.
func EncodeAck(g Grammar) []byte {
	return []byte{g.Ack}
}

// EncodeNak builds the single-byte rejection reply.
func EncodeNak(g Grammar) []byte {
	return []byte{g.Nak}
}

// Decode parses a response buffer incrementally.
//
// It returns (nil, 0, nil) while buf is a valid-but-incomplete prefix
// of a frame, so the session keeps reading. A complete frame returns
// the parsed Frame and the number of bytes consumed. An error is
// returned only when no continuation of buf can form a valid frame:
// an unknown status byte, an oversized declared length, or a checksum
// mismatch.
func Decode(g Grammar, buf []byte) (*Frame, int, error) {
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}
	if len(buf) == 0 {
		return nil, 0, nil
	}

	switch buf[0] {
	case g.Nak:
		// A rejection is a lone status byte.
		return newFrame(g, g.Nak, 0, nil, buf[:1]), 1, nil
	case g.Ack:
	default:
		return nil, 0, NewDecodeError(fmt.Sprintf("invalid status byte 0x%02X", buf[0]), nil)
	}

	header := 2 + g.LengthWidth // status + opcode + length field
	if len(buf) < header {
		return nil, 0, nil
	}
	plen := parseLength(buf[2:header])
	if plen > g.MaxPayload {
		return nil, 0, NewDecodeError(fmt.Sprintf("declared payload length %d exceeds grammar maximum %d", plen, g.MaxPayload), nil)
	}
	total := header + plen + g.checksumLen()
	if len(buf) < total {
		return nil, 0, nil
	}
	if g.Checksum == ChecksumXOR {
		if want, got := xor(buf[:total-1]), buf[total-1]; want != got {
			return nil, 0, NewDecodeError(fmt.Sprintf("checksum mismatch: computed 0x%02X, frame carries 0x%02X", want, got), nil)
		}
	}

	payload := make([]byte, plen)
	copy(payload, buf[header:header+plen])
	return newFrame(g, g.Ack, buf[1], payload, buf[:total]), total, nil
}

// DecodeStatus parses the single-byte reply of a bare command.
func DecodeStatus(g Grammar, buf []byte) (*Frame, int, error) {
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}
	if len(buf) == 0 {
		return nil, 0, nil
	}
	switch buf[0] {
	case g.Ack, g.Nak:
		return newFrame(g, buf[0], 0, nil, buf[:1]), 1, nil
	default:
		return nil, 0, NewDecodeError(fmt.Sprintf("invalid status byte 0x%02X", buf[0]), nil)
	}
}

// DecodeWith dispatches to Decode or DecodeStatus by reply mode.
func DecodeWith(g Grammar, mode ReplyMode, buf []byte) (*Frame, int, error) {
	if mode == ReplyStatus {
		return DecodeStatus(g, buf)
	}
	return Decode(g, buf)
}

// DecodeRequest parses a request buffer incrementally, the
// simulator-side counterpart of Decode. A bare ENQ is a complete
// one-byte request; anything else must be a fully framed command.
// Opcodes outside the documented table still parse (framing is
// self-describing) so a simulator can answer them with a NAK.
func DecodeRequest(g Grammar, buf []byte) (*Request, int, error) {
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] == g.Enq {
		return &Request{Opcode: g.Enq, Raw: []byte{g.Enq}}, 1, nil
	}

	header := 1 + g.LengthWidth // opcode + length field
	if len(buf) < header {
		return nil, 0, nil
	}
	plen := parseLength(buf[1:header])
	if plen > g.MaxPayload {
		return nil, 0, NewDecodeError(fmt.Sprintf("declared payload length %d exceeds grammar maximum %d", plen, g.MaxPayload), nil)
	}
	total := header + plen + g.checksumLen()
	if len(buf) < total {
		return nil, 0, nil
	}
	if g.Checksum == ChecksumXOR {
		if want, got := xor(buf[:total-1]), buf[total-1]; want != got {
			return nil, 0, NewDecodeError(fmt.Sprintf("checksum mismatch: computed 0x%02X, frame carries 0x%02X", want, got), nil)
		}
	}

	payload := make([]byte, plen)
	copy(payload, buf[header:header+plen])
	raw := make([]byte, total)
	copy(raw, buf[:total])
	return &Request{Opcode: buf[0], Payload: payload, Raw: raw}, total, nil
}

// appendLength appends n as a big-endian length field of the given width.
func appendLength(dst []byte, width, n int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// parseLength reads a big-endian length field.
func parseLength(src []byte) int {
	n := 0
	for _, b := range src {
		n = n<<8 | int(b)
	}
	return n
}
