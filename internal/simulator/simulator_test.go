package simulator

import (
	"net"
	"testing"
	"time"

	"github.com/jetware/imaje/internal/v24"
)

// exchange sends one request over a raw TCP connection and reads one
// complete reply.
func exchange(t *testing.T, conn net.Conn, g v24.Grammar, req []byte, mode v24.ReplyMode) *v24.Frame {
	t.Helper()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var buf []byte
	chunk := make([]byte, 128)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		buf = append(buf, chunk[:n]...)
		frame, _, err := v24.DecodeWith(g, mode, buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if frame != nil {
			return frame
		}
	}
}

func startSim(t *testing.T, cfg Config) (*Simulator, net.Conn) {
	t.Helper()
	sim := New(cfg)
	if err := sim.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(sim.Stop)

	conn, err := net.DialTimeout("tcp", sim.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return sim, conn
}

func TestSimulator_DialogProbe(t *testing.T) {
	g := v24.DefaultGrammar()
	sim, conn := startSim(t, Config{Ready: true, JetCount: 2})

	frame := exchange(t, conn, g, []byte{v24.ENQ}, v24.ReplyStatus)
	if !frame.Acknowledged() {
		t.Error("ready simulator must ACK the dialog probe")
	}

	sim.SetReady(false)
	frame = exchange(t, conn, g, []byte{v24.ENQ}, v24.ReplyStatus)
	if frame.Acknowledged() {
		t.Error("not-ready simulator must NAK the dialog probe")
	}
}

func TestSimulator_CounterLifecycle(t *testing.T) {
	g := v24.DefaultGrammar()
	sim, conn := startSim(t, Config{Ready: true, JetCount: 1})
	sim.SetCounter(1, 4711)

	req, _ := v24.Encode(g, v24.CmdGetJetCounter, []byte{1})
	frame := exchange(t, conn, g, req, v24.ReplyFramed)
	if got := string(frame.Payload); got != "000004711" {
		t.Errorf("counter payload = %q, want 000004711", got)
	}

	req, _ = v24.Encode(g, v24.CmdResetJetCounter, []byte{1})
	if frame = exchange(t, conn, g, req, v24.ReplyFramed); !frame.Acknowledged() {
		t.Fatal("reset must be acknowledged")
	}

	req, _ = v24.Encode(g, v24.CmdGetJetCounter, []byte{1})
	frame = exchange(t, conn, g, req, v24.ReplyFramed)
	if got := string(frame.Payload); got != "000000000" {
		t.Errorf("counter payload after reset = %q, want 000000000", got)
	}
}

func TestSimulator_UnknownOpcodeNaks(t *testing.T) {
	g := v24.DefaultGrammar()
	_, conn := startSim(t, Config{Ready: true, JetCount: 1})

	// Hand-frame an opcode outside the documented table.
	raw := []byte{0x77, 0x00, 0x00}
	raw = append(raw, raw[0]^raw[1]^raw[2])

	frame := exchange(t, conn, g, raw, v24.ReplyFramed)
	if frame.Acknowledged() {
		t.Error("unknown opcode must be NAKed")
	}
}

func TestSimulator_StopClosesOpenConnections(t *testing.T) {
	g := v24.DefaultGrammar()
	sim, conn := startSim(t, Config{Ready: true, JetCount: 1})

	// One exchange first, so the connection handler is running.
	exchange(t, conn, g, []byte{v24.ENQ}, v24.ReplyStatus)

	// Stop must not wait on the idle client connection: the handler
	// sits in Read until the simulator closes the conn itself.
	done := make(chan struct{})
	go func() {
		sim.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return while a client connection was open")
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("client connection still open after Stop()")
	}
}

func TestSimulator_AbsentJetQueriesNak(t *testing.T) {
	g := v24.DefaultGrammar()
	_, conn := startSim(t, Config{Ready: true, JetCount: 2})

	perJet := []v24.Command{
		v24.CmdGetJetStatus,
		v24.CmdGetJetSpeed,
		v24.CmdGetJetCounter,
		v24.CmdResetJetCounter,
	}
	for _, cmd := range perJet {
		req, err := v24.Encode(g, cmd, []byte{3})
		if err != nil {
			t.Fatalf("Encode(%s) error = %v", cmd.Name, err)
		}
		if frame := exchange(t, conn, g, req, v24.ReplyFramed); frame.Acknowledged() {
			t.Errorf("%s for absent jet 3 must be NAKed", cmd.Name)
		}
	}

	req, _ := v24.Encode(g, v24.CmdGetJetSpeed, []byte{2})
	if frame := exchange(t, conn, g, req, v24.ReplyFramed); !frame.Acknowledged() {
		t.Error("present jet 2 must still be answered")
	}
}

func TestClockFromBCD(t *testing.T) {
	payload := []byte{0x59, 0x30, 0x12, 0x28, 0x08, 0x26, 0x20}
	got, err := clockFromBCD(payload)
	if err != nil {
		t.Fatalf("clockFromBCD() error = %v", err)
	}
	want := time.Date(2026, time.August, 28, 12, 30, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("clockFromBCD() = %v, want %v", got, want)
	}

	if _, err := clockFromBCD([]byte{0x99, 0, 0, 0x01, 0x01, 0x26, 0x20}); err == nil {
		t.Error("out-of-range seconds must fail")
	}
}

func TestSplitVariables(t *testing.T) {
	payload := []byte{2}
	for _, v := range []string{"LOT42", "2026-08-28"} {
		payload = append(payload, v24.DC2)
		payload = append(payload, v...)
		payload = append(payload, v24.DC2)
	}

	jetID, vars, err := splitVariables(payload)
	if err != nil {
		t.Fatalf("splitVariables() error = %v", err)
	}
	if jetID != 2 {
		t.Errorf("jetID = %d, want 2", jetID)
	}
	if len(vars) != 2 || vars[0] != "LOT42" || vars[1] != "2026-08-28" {
		t.Errorf("vars = %v, want [LOT42 2026-08-28]", vars)
	}

	if _, _, err := splitVariables([]byte{1, v24.DC2, 'A'}); err == nil {
		t.Error("unterminated block must fail")
	}
}
