package v24

import "fmt"

// Shutdown modes accepted by the start/stop command.
const (
	// ModeLongShutdown stops the printer and starts an auto-clean cycle.
	ModeLongShutdown = 0x00
	// ModeShortShutdown stops the printer without cleaning.
	ModeShortShutdown = 0x01
	// ModeStartUp starts the print engine.
	ModeStartUp = 0xFF
)

// VariablePayload marks a command whose payload length is not fixed.
const VariablePayload = -1

// Command is one named operation of the dialog. The set is closed and
// versioned with the protocol: unknown opcodes are representable but
// rejected at encode time.
type Command struct {
	// Name identifies the command in logs and errors.
	Name string

	// Opcode is the command identifier on the wire.
	Opcode byte

	// Bare commands are a single control byte with no length field,
	// payload or checksum. Only the dialog probe is bare.
	Bare bool

	// PayloadLen is the required payload length in bytes, or
	// VariablePayload when the command carries variable-length data.
	PayloadLen int

	// ArgDomain, when non-nil, is the closed set of accepted values
	// for a one-byte argument payload.
	ArgDomain []byte
}

// The documented command set of the 9040/9042 dialog.
var (
	// CmdDialogRequest probes whether the printer is ready to dialog.
	// Says nothing about whether the print engine is running.
	CmdDialogRequest = Command{Name: "dialog-request", Opcode: ENQ, Bare: true}

	// CmdStartStop starts or stops the print engine. The single
	// argument byte is a shutdown mode.
	CmdStartStop = Command{Name: "start-stop", Opcode: 0x30, PayloadLen: 1,
		ArgDomain: []byte{ModeLongShutdown, ModeShortShutdown, ModeStartUp}}

	// CmdGetParameters requests the ink-circuit parameter record.
	CmdGetParameters = Command{Name: "get-parameters", Opcode: 0x20, PayloadLen: 0}

	// CmdGetJetStatus requests the state of one jet.
	CmdGetJetStatus = Command{Name: "get-jet-status", Opcode: 0x32, PayloadLen: 1,
		ArgDomain: jetIDs}

	// CmdGetJetSpeed requests the speed and phase of one jet.
	CmdGetJetSpeed = Command{Name: "get-jet-speed", Opcode: 0x33, PayloadLen: 1,
		ArgDomain: jetIDs}

	// CmdGetJetCounter requests the print counter of one jet.
	CmdGetJetCounter = Command{Name: "get-jet-counter", Opcode: 0x39, PayloadLen: 1,
		ArgDomain: jetIDs}

	// CmdResetJetCounter resets the print counter of one jet.
	CmdResetJetCounter = Command{Name: "reset-jet-counter", Opcode: 0x3A, PayloadLen: 1,
		ArgDomain: jetIDs}

	// CmdGetFaults requests the machine and per-jet fault bitfields.
	CmdGetFaults = Command{Name: "get-faults", Opcode: 0x3B, PayloadLen: 0}

	// CmdResetFaults clears latched printer faults.
	CmdResetFaults = Command{Name: "reset-faults", Opcode: 0x3C, PayloadLen: 0}

	// CmdSetExternalVariables updates the external message variables
	// of one jet. Payload: jet id followed by DC2-delimited strings.
	CmdSetExternalVariables = Command{Name: "set-external-variables", Opcode: 0x5B,
		PayloadLen: VariablePayload}

	// CmdSetAutodating sets the printer clock. Payload: six BCD bytes
	// (seconds through year) and a 0x20 terminator.
	CmdSetAutodating = Command{Name: "set-autodating", Opcode: 0xC8, PayloadLen: 7}

	// CmdGetAutodating requests the printer clock.
	CmdGetAutodating = Command{Name: "get-autodating", Opcode: 0xD6, PayloadLen: 0}
)

// jetIDs is the argument domain of every per-jet command. Controllers
// drive up to four printheads.
var jetIDs = []byte{1, 2, 3, 4}

// Commands returns the closed command table keyed by opcode.
func Commands() map[byte]Command {
	table := map[byte]Command{}
	for _, c := range []Command{
		CmdDialogRequest,
		CmdStartStop,
		CmdGetParameters,
		CmdGetJetStatus,
		CmdGetJetSpeed,
		CmdGetJetCounter,
		CmdResetJetCounter,
		CmdGetFaults,
		CmdResetFaults,
		CmdSetExternalVariables,
		CmdSetAutodating,
		CmdGetAutodating,
	} {
		table[c.Opcode] = c
	}
	return table
}

// CommandByOpcode resolves an opcode against the closed command table.
func CommandByOpcode(op byte) (Command, bool) {
	c, ok := Commands()[op]
	return c, ok
}

// ValidatePayload checks a payload against the command's domain. The
// encoder calls it on every request; a printer-side implementation
// (the simulator) uses it to NAK out-of-domain arguments.
func (c Command) ValidatePayload(payload []byte) error {
	return c.checkPayload(payload)
}

// checkPayload validates a payload against the command's domain.
func (c Command) checkPayload(payload []byte) error {
	if c.Name == "" {
		return NewInvalidArgumentError(fmt.Sprintf("unknown command opcode 0x%02X", c.Opcode))
	}
	if c.Bare && len(payload) != 0 {
		return NewInvalidArgumentError(fmt.Sprintf("%s: bare command takes no payload", c.Name))
	}
	if c.PayloadLen != VariablePayload && len(payload) != c.PayloadLen {
		return NewInvalidArgumentError(fmt.Sprintf("%s: payload must be %d bytes, got %d", c.Name, c.PayloadLen, len(payload)))
	}
	if c.ArgDomain != nil {
		arg := payload[0]
		for _, v := range c.ArgDomain {
			if arg == v {
				return nil
			}
		}
		return NewInvalidArgumentError(fmt.Sprintf("%s: argument %d outside domain %v", c.Name, arg, c.ArgDomain))
	}
	return nil
}
