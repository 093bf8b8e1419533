package printer

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/jetware/imaje/internal/session"
	"github.com/jetware/imaje/internal/simulator"
	"github.com/jetware/imaje/internal/v24"
)

// connectSim starts a simulator and connects a Printer to it.
func connectSim(t *testing.T, cfg simulator.Config) (*simulator.Simulator, *Printer) {
	t.Helper()
	sim := simulator.New(cfg)
	if err := sim.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("simulator start failed: %v", err)
	}
	t.Cleanup(sim.Stop)

	host, portStr, err := net.SplitHostPort(sim.Addr())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	p, err := Connect(host, port)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	p.SetTimeout(2 * time.Second)
	return sim, p
}

// The documented bring-up sequence: probe the dialog, start the
// engine, then watch an out-of-domain mode get rejected locally.
func TestEndToEnd_DialogStartStop(t *testing.T) {
	_, p := connectSim(t, simulator.Config{Ready: true, JetCount: 2})

	ready, err := p.GetV24Dialog()
	if err != nil {
		t.Fatalf("GetV24Dialog() error = %v", err)
	}
	if !ready {
		t.Fatal("GetV24Dialog() = false, want true against ready stub")
	}

	ok, err := p.StartStopPrinter(v24.ModeStartUp)
	if err != nil {
		t.Fatalf("StartStopPrinter(255) error = %v", err)
	}
	if !ok {
		t.Fatal("StartStopPrinter(255) = false, want acknowledged")
	}

	// Mode 2 is outside the closed domain {0, 1, 255}: rejected
	// before any frame is sent.
	if _, err := p.StartStopPrinter(2); !v24.IsInvalidArgument(err) {
		t.Fatalf("StartStopPrinter(2) error = %v, want invalid argument", err)
	}

	// The invalid call must not have perturbed the dialog.
	status, err := p.GetJetStatus(1)
	if err != nil {
		t.Fatalf("GetJetStatus() error = %v", err)
	}
	if status != JetRunning {
		t.Errorf("jet status = %v, want running after start-up", status)
	}
}

func TestGetV24Dialog_NotReady(t *testing.T) {
	sim, p := connectSim(t, simulator.Config{Ready: true, JetCount: 1})
	sim.SetReady(false)

	ready, err := p.GetV24Dialog()
	if err != nil {
		t.Fatalf("GetV24Dialog() error = %v, want nil (not-ready is a result, not a failure)", err)
	}
	if ready {
		t.Error("GetV24Dialog() = true, want false")
	}
}

// An out-of-domain argument must be rejected before a single byte
// reaches the transport.
func TestStartStopPrinter_InvalidArgumentWritesNothing(t *testing.T) {
	client, _ := net.Pipe()
	ct := &countingTransport{Conn: client}
	p := FromSession(session.New(ct, "pipe:2101", v24.DefaultGrammar()))
	defer p.Close()

	for _, mode := range []int{2, 254, -1, 300, 1000} {
		if _, err := p.StartStopPrinter(mode); !v24.IsInvalidArgument(err) {
			t.Errorf("StartStopPrinter(%d) error = %v, want invalid argument", mode, err)
		}
	}
	if ct.written != 0 {
		t.Errorf("transport saw %d bytes, want 0", ct.written)
	}
}

type countingTransport struct {
	net.Conn
	written int
}

func (c *countingTransport) Write(p []byte) (int, error) {
	c.written += len(p)
	return c.Conn.Write(p)
}

func TestJetQueries(t *testing.T) {
	sim, p := connectSim(t, simulator.Config{
		Ready:     true,
		JetCount:  2,
		JetStatus: byte(JetRunning),
		JetSpeed:  41, // 4.1 m/s
	})
	sim.SetCounter(1, 123456)

	status, err := p.GetJetStatus(1)
	if err != nil {
		t.Fatalf("GetJetStatus() error = %v", err)
	}
	if status != JetRunning {
		t.Errorf("status = %v, want %v", status, JetRunning)
	}

	speed, err := p.GetJetSpeed(1)
	if err != nil {
		t.Fatalf("GetJetSpeed() error = %v", err)
	}
	if speed != 4.1 {
		t.Errorf("speed = %v, want 4.1", speed)
	}

	counter, err := p.GetJetCounter(1)
	if err != nil {
		t.Fatalf("GetJetCounter() error = %v", err)
	}
	if counter != 123456 {
		t.Errorf("counter = %d, want 123456", counter)
	}

	ok, err := p.ResetJetCounter(1)
	if err != nil || !ok {
		t.Fatalf("ResetJetCounter() = %v, %v, want acknowledged", ok, err)
	}
	if counter, _ = p.GetJetCounter(1); counter != 0 {
		t.Errorf("counter after reset = %d, want 0", counter)
	}
}

func TestJetID_Domain(t *testing.T) {
	_, p := connectSim(t, simulator.Config{Ready: true, JetCount: 1})

	for _, jet := range []int{0, 5, -1} {
		if _, err := p.GetJetStatus(jet); !v24.IsInvalidArgument(err) {
			t.Errorf("GetJetStatus(%d) error = %v, want invalid argument", jet, err)
		}
		if _, err := p.GetJetCounter(jet); !v24.IsInvalidArgument(err) {
			t.Errorf("GetJetCounter(%d) error = %v, want invalid argument", jet, err)
		}
	}
}

func TestValueOperation_Rejection(t *testing.T) {
	// Jet 3 does not exist on a two-head controller: the stub NAKs
	// and the value operation surfaces a rejection error.
	_, p := connectSim(t, simulator.Config{Ready: true, JetCount: 2})

	_, err := p.GetJetStatus(3)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("GetJetStatus(3) error = %v, want ErrRejected", err)
	}
}

func TestGetParameters(t *testing.T) {
	_, p := connectSim(t, simulator.Config{Ready: true, JetCount: 1})

	params, err := p.GetParameters()
	if err != nil {
		t.Fatalf("GetParameters() error = %v", err)
	}
	want := Parameters{
		MotorSpeed:        750,
		Pressure:          2.65,
		ViscoFillingTimes: 5,
		AdditiveAdded:     1,
		AverageJetSpeed:   4.1,
		ElectronicsTemp:   35,
		InkCircuitTemp:    41,
	}
	if *params != want {
		t.Errorf("GetParameters() = %+v, want %+v", *params, want)
	}
}

func TestFaultsAndAvailableJets(t *testing.T) {
	sim, p := connectSim(t, simulator.Config{Ready: true, JetCount: 3})
	sim.SetFaulted(true)

	faults, err := p.GetPrinterFaults()
	if err != nil {
		t.Fatalf("GetPrinterFaults() error = %v", err)
	}
	if !faults.Viscosity {
		t.Error("viscosity fault bit should be set")
	}
	if !faults.Machine() {
		t.Error("Machine() should report the latched fault")
	}
	if faults.Jets[3].NotPresent != true || faults.Jets[0].NotPresent {
		t.Errorf("jet presence bits wrong: %+v", faults.Jets)
	}

	jets, err := p.AvailableJets()
	if err != nil {
		t.Fatalf("AvailableJets() error = %v", err)
	}
	if jets != 3 {
		t.Errorf("AvailableJets() = %d, want 3", jets)
	}

	ok, err := p.ResetPrinterFaults()
	if err != nil || !ok {
		t.Fatalf("ResetPrinterFaults() = %v, %v, want acknowledged", ok, err)
	}
	if faults, _ = p.GetPrinterFaults(); faults.Viscosity {
		t.Error("viscosity fault should be cleared after reset")
	}
}

func TestAutodatingTable_RoundTrip(t *testing.T) {
	_, p := connectSim(t, simulator.Config{Ready: true, JetCount: 1})

	want := time.Date(2026, time.August, 28, 12, 30, 59, 0, time.UTC)
	ok, err := p.SetAutodatingTable(want)
	if err != nil || !ok {
		t.Fatalf("SetAutodatingTable() = %v, %v, want acknowledged", ok, err)
	}

	got, err := p.GetAutodatingTable()
	if err != nil {
		t.Fatalf("GetAutodatingTable() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("GetAutodatingTable() = %v, want %v", got, want)
	}
}

func TestSetExternalVariables(t *testing.T) {
	sim, p := connectSim(t, simulator.Config{Ready: true, JetCount: 2})

	ok, err := p.SetExternalVariables(2, []string{"LOT42", "2026-08-28"})
	if err != nil || !ok {
		t.Fatalf("SetExternalVariables() = %v, %v, want acknowledged", ok, err)
	}
	got := sim.Variables(2)
	if len(got) != 2 || got[0] != "LOT42" || got[1] != "2026-08-28" {
		t.Errorf("simulator stored %v, want [LOT42 2026-08-28]", got)
	}

	tests := []struct {
		name  string
		jetID int
		vars  []string
	}{
		{name: "no variables", jetID: 1, vars: nil},
		{name: "too many variables", jetID: 1, vars: make([]string, 11)},
		{name: "jet id out of range", jetID: 9, vars: []string{"A"}},
		{name: "embedded delimiter", jetID: 1, vars: []string{"A\x12B"}},
		{name: "non-printable", jetID: 1, vars: []string{"A\nB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.SetExternalVariables(tt.jetID, tt.vars); !v24.IsInvalidArgument(err) {
				t.Errorf("SetExternalVariables() error = %v, want invalid argument", err)
			}
		})
	}
}

func TestConnect_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	_ = l.Close()

	if _, err := Connect(host, port); !v24.IsConnectionError(err) {
		t.Errorf("Connect() error = %v, want connection error", err)
	}
}
