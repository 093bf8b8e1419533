package printer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jetware/imaje/internal/logging"
	"github.com/jetware/imaje/internal/session"
	"github.com/jetware/imaje/internal/v24"
)

// ErrRejected is wrapped into the error of a value-returning operation
// when the printer answers with a NAK instead of data. Boolean
// operations report a rejection as false, not as an error.
var ErrRejected = errors.New("printer rejected the command")

// MaxExternalVariables is the most variables one 0x5B command carries.
const MaxExternalVariables = 10

// Printer presents each dialog operation as one named call. It owns a
// session to exactly one printer; independent printers get independent
// Printer values with no shared state.
type Printer struct {
	sess    *session.Session
	grammar v24.Grammar
}

// Connect dials a printer with the default grammar profile.
func Connect(host string, port int) (*Printer, error) {
	return ConnectGrammar(host, port, v24.DefaultGrammar())
}

// ConnectGrammar dials a printer using a specific wire grammar.
func ConnectGrammar(host string, port int, g v24.Grammar) (*Printer, error) {
	sess, err := session.Dial(host, port, g)
	if err != nil {
		return nil, err
	}
	return FromSession(sess), nil
}

// FromSession wraps an existing session. Used for websocket-bridged
// printers and in tests against in-memory transports.
func FromSession(sess *session.Session) *Printer {
	return &Printer{sess: sess, grammar: sess.Grammar()}
}

// Close releases the underlying session. Idempotent.
func (p *Printer) Close() error {
	return p.sess.Close()
}

// SetTimeout replaces the per-exchange deadline.
func (p *Printer) SetTimeout(d time.Duration) {
	p.sess.SetExchangeTimeout(d)
}

// RemoteAddr returns the printer address.
func (p *Printer) RemoteAddr() string {
	return p.sess.RemoteAddr()
}

// roundTrip runs one encode/exchange/decode cycle. Every operation
// funnels through here; adding a command touches neither the codec
// nor the session.
func (p *Printer) roundTrip(ctx context.Context, cmd v24.Command, payload []byte) (*v24.Frame, error) {
	req, err := v24.Encode(p.grammar, cmd, payload)
	if err != nil {
		return nil, err
	}
	raw, err := p.sess.Exchange(ctx, req, cmd.ReplyMode())
	if err != nil {
		return nil, err
	}
	frame, _, err := v24.DecodeWith(p.grammar, cmd.ReplyMode(), raw)
	if err != nil {
		return nil, err
	}
	logging.LogExchange(p.sess.RemoteAddr(), cmd.Name, frame.Acknowledged())
	return frame, nil
}

// data returns the payload of an acknowledged frame, or a rejection
// error carrying ErrRejected.
func (p *Printer) data(ctx context.Context, cmd v24.Command, payload []byte) ([]byte, error) {
	frame, err := p.roundTrip(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	if !frame.Acknowledged() {
		return nil, fmt.Errorf("%s: %w", cmd.Name, ErrRejected)
	}
	return frame.Payload, nil
}

// GetV24Dialog probes whether the printer is ready to dialog. It may
// be sent before every exchange. A false result means "not ready", it
// says nothing about whether the print engine is on or off; errors are
// reserved for transport and protocol failures.
func (p *Printer) GetV24Dialog() (bool, error) {
	return p.GetV24DialogContext(context.Background())
}

// GetV24DialogContext is GetV24Dialog honoring a caller deadline.
func (p *Printer) GetV24DialogContext(ctx context.Context) (bool, error) {
	frame, err := p.roundTrip(ctx, v24.CmdDialogRequest, nil)
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// StartStopPrinter starts or stops the print engine. Modes:
//
//	0   long shutdown (stops the printer and starts an auto-clean)
//	1   short shutdown (stops the printer)
//	255 start-up
//
// Any other mode fails with an invalid-argument error before a single
// byte reaches the transport. The result is true only when the printer
// explicitly acknowledges the command.
func (p *Printer) StartStopPrinter(mode int) (bool, error) {
	return p.StartStopPrinterContext(context.Background(), mode)
}

// StartStopPrinterContext is StartStopPrinter honoring a caller deadline.
func (p *Printer) StartStopPrinterContext(ctx context.Context, mode int) (bool, error) {
	if mode < 0 || mode > 255 {
		return false, v24.NewInvalidArgumentError(fmt.Sprintf("start-stop: mode %d outside domain [0 1 255]", mode))
	}
	frame, err := p.roundTrip(ctx, v24.CmdStartStop, []byte{byte(mode)})
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// GetAutodatingTable reads the date and time currently set on the
// printer.
func (p *Printer) GetAutodatingTable() (time.Time, error) {
	payload, err := p.data(context.Background(), v24.CmdGetAutodating, nil)
	if err != nil {
		return time.Time{}, err
	}
	return parseClock(payload)
}

// SetAutodatingTable sets the printer clock. The wire encoding is six
// BCD bytes, seconds through two-digit year, and a space terminator.
func (p *Printer) SetAutodatingTable(t time.Time) (bool, error) {
	payload := []byte{
		bcd(t.Second()),
		bcd(t.Minute()),
		bcd(t.Hour()),
		bcd(t.Day()),
		bcd(int(t.Month())),
		bcd(t.Year() % 100),
		0x20,
	}
	frame, err := p.roundTrip(context.Background(), v24.CmdSetAutodating, payload)
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// SetExternalVariables updates the external message variables of one
// printhead. Between 1 and 10 variables may be set; each is delimited
// by DC2 bytes on the wire. Variables must be printable ASCII and must
// not contain the DC2 delimiter themselves.
func (p *Printer) SetExternalVariables(jetID int, vars []string) (bool, error) {
	if err := checkJetID(jetID); err != nil {
		return false, err
	}
	if len(vars) == 0 || len(vars) > MaxExternalVariables {
		return false, v24.NewInvalidArgumentError(fmt.Sprintf("set-external-variables: %d variables outside range [1,%d]", len(vars), MaxExternalVariables))
	}

	payload := []byte{byte(jetID)}
	for i, v := range vars {
		for _, r := range v {
			if r < 0x20 || r > 0x7E {
				return false, v24.NewInvalidArgumentError(fmt.Sprintf("set-external-variables: variable %d contains non-printable character %q", i+1, r))
			}
		}
		payload = append(payload, v24.DC2)
		payload = append(payload, v...)
		payload = append(payload, v24.DC2)
	}

	frame, err := p.roundTrip(context.Background(), v24.CmdSetExternalVariables, payload)
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// GetJetCounter reads the print counter of one printhead. The counter
// increments once per performed print.
func (p *Printer) GetJetCounter(jetID int) (int, error) {
	if err := checkJetID(jetID); err != nil {
		return 0, err
	}
	payload, err := p.data(context.Background(), v24.CmdGetJetCounter, []byte{byte(jetID)})
	if err != nil {
		return 0, err
	}
	if len(payload) < 9 {
		return 0, v24.NewDecodeError(fmt.Sprintf("counter record is %d bytes, need 9", len(payload)), nil)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(payload[:9])))
	if err != nil {
		return 0, v24.NewDecodeError("counter record is not numeric", err)
	}
	return n, nil
}

// ResetJetCounter resets the print counter of one printhead.
func (p *Printer) ResetJetCounter(jetID int) (bool, error) {
	if err := checkJetID(jetID); err != nil {
		return false, err
	}
	frame, err := p.roundTrip(context.Background(), v24.CmdResetJetCounter, []byte{byte(jetID)})
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// GetJetStatus reads the state of one printhead jet.
func (p *Printer) GetJetStatus(jetID int) (JetStatus, error) {
	if err := checkJetID(jetID); err != nil {
		return 0, err
	}
	payload, err := p.data(context.Background(), v24.CmdGetJetStatus, []byte{byte(jetID)})
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, v24.NewDecodeError("status record is empty", nil)
	}
	return JetStatus(payload[0]), nil
}

// GetJetSpeed reads the jet speed in m/s. The controller reports the
// value as one BCD byte of tenths.
func (p *Printer) GetJetSpeed(jetID int) (float64, error) {
	if err := checkJetID(jetID); err != nil {
		return 0, err
	}
	payload, err := p.data(context.Background(), v24.CmdGetJetSpeed, []byte{byte(jetID)})
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, v24.NewDecodeError("speed record is empty", nil)
	}
	return float64(bcdValue(payload[0])) / 10, nil
}

// GetParameters reads the ink-circuit parameter record.
func (p *Printer) GetParameters() (*Parameters, error) {
	payload, err := p.data(context.Background(), v24.CmdGetParameters, nil)
	if err != nil {
		return nil, err
	}
	return parseParameters(payload)
}

// GetPrinterFaults reads and decodes the machine and per-jet fault
// bitfields.
func (p *Printer) GetPrinterFaults() (*Faults, error) {
	payload, err := p.data(context.Background(), v24.CmdGetFaults, nil)
	if err != nil {
		return nil, err
	}
	return parseFaults(payload)
}

// ResetPrinterFaults clears latched printer faults.
func (p *Printer) ResetPrinterFaults() (bool, error) {
	frame, err := p.roundTrip(context.Background(), v24.CmdResetFaults, nil)
	if err != nil {
		return false, err
	}
	return frame.Acknowledged(), nil
}

// AvailableJets counts the printheads the controller reports as
// present. Derived from the fault record; controllers carry no
// dedicated query for it.
func (p *Printer) AvailableJets() (int, error) {
	faults, err := p.GetPrinterFaults()
	if err != nil {
		return 0, err
	}
	return faults.AvailableJets(), nil
}

// checkJetID validates a printhead number against the 1-4 domain.
func checkJetID(jetID int) error {
	if jetID < 1 || jetID > 4 {
		return v24.NewInvalidArgumentError(fmt.Sprintf("jet id %d outside domain [1,4]", jetID))
	}
	return nil
}
