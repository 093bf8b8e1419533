package printer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jetware/imaje/internal/v24"
)

// JetStatus is the state of one printhead jet.
type JetStatus byte

const (
	JetStopped JetStatus = iota
	JetStartUpPhase
	JetRefresh
	JetStabilityCheck
	JetSolventFeed
	JetNozzleUnclog
	JetAdjustment
	JetRunning
)

// String returns the vendor wording for the status code.
func (s JetStatus) String() string {
	switch s {
	case JetStopped:
		return "Jet stopped"
	case JetStartUpPhase:
		return "Jet in start-up phase"
	case JetRefresh:
		return "Jet in refresh"
	case JetStabilityCheck:
		return "Jet in stability check"
	case JetSolventFeed:
		return "Jet in solvent feed"
	case JetNozzleUnclog:
		return "Jet in nozzle unclog"
	case JetAdjustment:
		return "Adjustment"
	case JetRunning:
		return "Jet running"
	default:
		return fmt.Sprintf("Unknown status (0x%02X)", byte(s))
	}
}

// Parameters is the ink-circuit parameter record of the controller.
type Parameters struct {
	MotorSpeed        int     // rpm
	Pressure          float64 // bar
	ViscoFillingTimes int
	AdditiveAdded     int
	AverageJetSpeed   float64 // m/s
	ElectronicsTemp   int     // °C
	InkCircuitTemp    int     // °C
}

// JetFaults is the fault block of one printhead jet.
type JetFaults struct {
	PrintingHardware       bool
	FrameGenerator         bool
	CharGenerator          bool
	Cover                  bool
	EHV                    bool
	Recovery               bool
	PhaseDetection         bool
	NotPresent             bool
	CPUCommunication       bool
	PrintingSpeed          bool
	DTOPFiltering          bool
	NoMessageToPrint       bool
	IncorrectCharGenerator bool
	DTOPPrinting           bool
}

// Faults is the decoded machine fault bitfield plus the four per-jet
// fault blocks.
type Faults struct {
	InkLevelLow         bool
	PressureError       bool
	CPUHardware         bool
	MemoryLost          bool
	Head1Faulty         bool
	Head2Faulty         bool
	MotorCycle          bool
	PigmentedInkCircuit bool

	Autodating bool
	RAM        bool
	ROM        bool

	V24                 bool
	RecoveryTankTooFull bool
	InkTankTooFull      bool
	AccuEmpty           bool
	Temperature         bool
	Viscosity           bool
	Fan                 bool
	Additive            bool

	// Jets holds the fault blocks of printheads 1-4 at indexes 0-3.
	Jets [4]JetFaults
}

// Machine reports whether any machine-level fault bit is set.
func (f *Faults) Machine() bool {
	return f.InkLevelLow || f.PressureError || f.CPUHardware || f.MemoryLost ||
		f.Head1Faulty || f.Head2Faulty || f.MotorCycle || f.PigmentedInkCircuit ||
		f.Autodating || f.RAM || f.ROM ||
		f.V24 || f.RecoveryTankTooFull || f.InkTankTooFull || f.AccuEmpty ||
		f.Temperature || f.Viscosity || f.Fan || f.Additive
}

// AvailableJets counts the printheads whose "not present" bit is clear.
func (f *Faults) AvailableJets() int {
	count := 0
	for _, j := range f.Jets {
		if !j.NotPresent {
			count++
		}
	}
	return count
}

// bit extracts bit n (0 = least significant) of b.
func bit(b byte, n uint) bool {
	return b>>n&1 == 1
}

// parseFaults decodes the 0x3B response payload: three machine fault
// bytes followed by four three-byte jet blocks.
func parseFaults(payload []byte) (*Faults, error) {
	if len(payload) < 15 {
		return nil, v24.NewDecodeError(fmt.Sprintf("fault record is %d bytes, need 15", len(payload)), nil)
	}

	f := &Faults{
		InkLevelLow:         bit(payload[0], 0),
		PressureError:       bit(payload[0], 1),
		CPUHardware:         bit(payload[0], 2),
		MemoryLost:          bit(payload[0], 3),
		Head1Faulty:         bit(payload[0], 4),
		Head2Faulty:         bit(payload[0], 5),
		MotorCycle:          bit(payload[0], 6),
		PigmentedInkCircuit: bit(payload[0], 7),

		Autodating: bit(payload[1], 5),
		RAM:        bit(payload[1], 6),
		ROM:        bit(payload[1], 7),

		V24:                 bit(payload[2], 0),
		RecoveryTankTooFull: bit(payload[2], 1),
		InkTankTooFull:      bit(payload[2], 2),
		AccuEmpty:           bit(payload[2], 3),
		Temperature:         bit(payload[2], 4),
		Viscosity:           bit(payload[2], 5),
		Fan:                 bit(payload[2], 6),
		Additive:            bit(payload[2], 7),
	}

	for i := range f.Jets {
		block := payload[3+3*i : 6+3*i]
		f.Jets[i] = JetFaults{
			PrintingHardware:       bit(block[0], 0),
			FrameGenerator:         bit(block[0], 5),
			CharGenerator:          bit(block[0], 6),
			Cover:                  bit(block[1], 4),
			EHV:                    bit(block[1], 5),
			Recovery:               bit(block[1], 6),
			PhaseDetection:         bit(block[1], 7),
			NotPresent:             bit(block[2], 0),
			CPUCommunication:       bit(block[2], 1),
			PrintingSpeed:          bit(block[2], 2),
			DTOPFiltering:          bit(block[2], 3),
			NoMessageToPrint:       bit(block[2], 4),
			IncorrectCharGenerator: bit(block[2], 5),
			DTOPPrinting:           bit(block[2], 6),
		}
	}
	return f, nil
}

// parseParameters decodes the 0x20 response payload, a fixed-offset
// ASCII record. Decimal fractions use a comma on the wire.
func parseParameters(payload []byte) (*Parameters, error) {
	if len(payload) < 26 {
		return nil, v24.NewDecodeError(fmt.Sprintf("parameter record is %d bytes, need 26", len(payload)), nil)
	}
	data := string(payload[:26])

	p := &Parameters{}
	var err error
	if p.MotorSpeed, err = parseInt(data[0:4]); err != nil {
		return nil, err
	}
	if p.Pressure, err = parseDecimal(data[5:9]); err != nil {
		return nil, err
	}
	if p.ViscoFillingTimes, err = parseInt(data[10:12]); err != nil {
		return nil, err
	}
	if p.AdditiveAdded, err = parseInt(data[13:15]); err != nil {
		return nil, err
	}
	if p.AverageJetSpeed, err = parseDecimal(data[16:20]); err != nil {
		return nil, err
	}
	if p.ElectronicsTemp, err = parseInt(data[21:23]); err != nil {
		return nil, err
	}
	if p.InkCircuitTemp, err = parseInt(data[24:26]); err != nil {
		return nil, err
	}
	return p, nil
}

func parseInt(field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, v24.NewDecodeError(fmt.Sprintf("numeric field %q", field), err)
	}
	return n, nil
}

func parseDecimal(field string) (float64, error) {
	field = strings.ReplaceAll(strings.TrimSpace(field), ",", ".")
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, v24.NewDecodeError(fmt.Sprintf("decimal field %q", field), err)
	}
	return v, nil
}

// clockLayout parses the digit sequence ssmmhhddmmyy.
const clockLayout = "050415020106"

// parseClock decodes the autodating payload: an ASCII rendering of
// the printer clock with arbitrary separators between digit groups.
func parseClock(payload []byte) (time.Time, error) {
	digits := make([]byte, 0, 12)
	for _, b := range payload {
		if b >= '0' && b <= '9' {
			digits = append(digits, b)
		}
	}
	if len(digits) != 12 {
		return time.Time{}, v24.NewDecodeError(fmt.Sprintf("clock record has %d digits, need 12", len(digits)), nil)
	}
	t, err := time.Parse(clockLayout, string(digits))
	if err != nil {
		return time.Time{}, v24.NewDecodeError("clock record did not parse", err)
	}
	return t, nil
}

// bcd encodes a two-digit value the way the autodating table stores
// it: tens in the high nibble, units in the low nibble.
func bcd(v int) byte {
	return byte(v/10<<4 | v%10)
}

// bcdValue decodes a BCD byte.
func bcdValue(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
