package simulator

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jetware/imaje/internal/logging"
	"github.com/jetware/imaje/internal/v24"
)

// Simulator is a TCP stub printer speaking the V24 dialog. It answers
// the documented command set with canned but internally consistent
// data, which is enough to exercise a client end to end without
// hardware on the bench.
type Simulator struct {
	grammar v24.Grammar

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  bool
	wg       sync.WaitGroup

	state state
}

// state is the mutable printer-side world, guarded by Simulator.mu.
type state struct {
	ready     bool
	jetCount  int
	jetStatus byte
	jetSpeed  byte // BCD tenths of m/s
	counters  [4]int
	clock     time.Time
	variables map[int][]string
	faulted   bool
}

// Config seeds the simulator state.
type Config struct {
	// Grammar is the wire grammar to speak. Zero value means the
	// default profile.
	Grammar v24.Grammar

	// Ready controls the answer to the dialog probe.
	Ready bool

	// JetCount is the number of present printheads (1-4).
	JetCount int

	// JetStatus is the status code reported for every present jet.
	JetStatus byte

	// JetSpeed is the reported speed in tenths of m/s (0-99).
	JetSpeed int
}

// New creates a stopped simulator.
func New(cfg Config) *Simulator {
	g := cfg.Grammar
	if g.LengthWidth == 0 {
		g = v24.DefaultGrammar()
	}
	jets := cfg.JetCount
	if jets < 1 || jets > 4 {
		jets = 1
	}
	return &Simulator{
		grammar: g,
		conns:   map[net.Conn]struct{}{},
		state: state{
			ready:     cfg.Ready,
			jetCount:  jets,
			jetStatus: cfg.JetStatus,
			jetSpeed:  bcd(cfg.JetSpeed),
			clock:     time.Now(),
			variables: map[int][]string{},
		},
	}
}

// Start listens on addr ("host:port", port 0 picks a free one) and
// serves connections until Stop.
func (s *Simulator) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("simulator already running")
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start simulator: %w", err)
	}
	s.listener = l
	s.running = true
	logging.Info("simulator listening",
		zap.String("addr", l.Addr().String()),
		zap.String("grammar", s.grammar.Name),
	)

	s.wg.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Addr returns the bound listen address.
func (s *Simulator) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every active connection, then waits
// for the handlers. Open connections must be closed here or their
// handlers would sit in Read and pin the wait forever.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	_ = s.listener.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// SetReady flips the dialog-readiness answer at runtime.
func (s *Simulator) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ready = ready
}

// SetCounter seeds the print counter of one jet.
func (s *Simulator) SetCounter(jetID, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jetID >= 1 && jetID <= 4 {
		s.state.counters[jetID-1] = value
	}
}

// SetFaulted latches or clears the viscosity fault bit.
func (s *Simulator) SetFaulted(faulted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.faulted = faulted
}

// Variables returns the external variables last set for one jet.
func (s *Simulator) Variables(jetID int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.state.variables[jetID]...)
}

func (s *Simulator) acceptLoop(l net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			// Listener closed by Stop.
			return
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		logging.LogConnection(conn.RemoteAddr().String(), "accepted")
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn runs the printer side of the dialog: accumulate bytes,
// answer each complete request, drop the connection on garbage.
func (s *Simulator) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		logging.LogConnection(conn.RemoteAddr().String(), "closed")
	}()

	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				req, consumed, derr := v24.DecodeRequest(s.grammar, buf)
				if derr != nil {
					logging.Warn("malformed request, dropping connection",
						zap.String("remote_addr", conn.RemoteAddr().String()),
						zap.Error(derr),
					)
					return
				}
				if req == nil {
					break
				}
				buf = buf[consumed:]
				if werr := s.respond(conn, req); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// respond writes the reply for one decoded request.
func (s *Simulator) respond(conn net.Conn, req *v24.Request) error {
	reply := s.reply(req)
	logging.LogRawBytes("simulator reply", reply)
	_, err := conn.Write(reply)
	return err
}

// reply computes the wire reply for one request against current state.
func (s *Simulator) reply(req *v24.Request) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.grammar

	if req.Opcode == g.Enq {
		if s.state.ready {
			return v24.EncodeAck(g)
		}
		return v24.EncodeNak(g)
	}
	if !s.state.ready {
		return v24.EncodeNak(g)
	}

	cmd, known := req.Command()
	if !known {
		return v24.EncodeNak(g)
	}
	if err := cmd.ValidatePayload(req.Payload); err != nil {
		return v24.EncodeNak(g)
	}

	ack := func(payload []byte) []byte {
		out, err := v24.EncodeResponse(g, req.Opcode, payload)
		if err != nil {
			return v24.EncodeNak(g)
		}
		return out
	}

	// Per-jet queries answer NAK for a jet the printer does not have.
	jetPresent := func(id byte) bool {
		return int(id) <= s.state.jetCount
	}

	switch cmd.Opcode {
	case v24.CmdStartStop.Opcode:
		if req.Payload[0] == v24.ModeStartUp {
			s.state.jetStatus = 0x07 // running
		} else {
			s.state.jetStatus = 0x00 // stopped
		}
		return ack(nil)

	case v24.CmdGetJetStatus.Opcode:
		if !jetPresent(req.Payload[0]) {
			return v24.EncodeNak(g)
		}
		return ack([]byte{s.state.jetStatus})

	case v24.CmdGetJetSpeed.Opcode:
		if !jetPresent(req.Payload[0]) {
			return v24.EncodeNak(g)
		}
		return ack([]byte{s.state.jetSpeed})

	case v24.CmdGetJetCounter.Opcode:
		if !jetPresent(req.Payload[0]) {
			return v24.EncodeNak(g)
		}
		value := s.state.counters[req.Payload[0]-1]
		return ack([]byte(fmt.Sprintf("%09d", value)))

	case v24.CmdResetJetCounter.Opcode:
		if !jetPresent(req.Payload[0]) {
			return v24.EncodeNak(g)
		}
		s.state.counters[req.Payload[0]-1] = 0
		return ack(nil)

	case v24.CmdGetParameters.Opcode:
		return ack([]byte("0750 2,65 05 01 04,1 35 41"))

	case v24.CmdGetFaults.Opcode:
		return ack(s.faultRecord())

	case v24.CmdResetFaults.Opcode:
		s.state.faulted = false
		return ack(nil)

	case v24.CmdGetAutodating.Opcode:
		c := s.state.clock
		record := fmt.Sprintf("%02d %02d %02d %02d %02d %02d",
			c.Second(), c.Minute(), c.Hour(), c.Day(), int(c.Month()), c.Year()%100)
		return ack([]byte(record))

	case v24.CmdSetAutodating.Opcode:
		c, err := clockFromBCD(req.Payload)
		if err != nil {
			return v24.EncodeNak(g)
		}
		s.state.clock = c
		return ack(nil)

	case v24.CmdSetExternalVariables.Opcode:
		jetID, vars, err := splitVariables(req.Payload)
		if err != nil || jetID > s.state.jetCount {
			return v24.EncodeNak(g)
		}
		s.state.variables[jetID] = vars
		return ack(nil)

	default:
		return v24.EncodeNak(g)
	}
}

// faultRecord builds the 15-byte fault bitfield: three machine bytes
// and four three-byte jet blocks, "not present" set for absent jets.
func (s *Simulator) faultRecord() []byte {
	record := make([]byte, 15)
	if s.state.faulted {
		record[2] |= 1 << 5 // viscosity fault
	}
	for jet := 0; jet < 4; jet++ {
		if jet >= s.state.jetCount {
			record[3+3*jet+2] |= 1 // not present
		}
	}
	return record
}

// clockFromBCD decodes the 0xC8 payload (six BCD bytes + terminator).
func clockFromBCD(payload []byte) (time.Time, error) {
	if len(payload) < 7 {
		return time.Time{}, fmt.Errorf("clock payload is %d bytes, need 7", len(payload))
	}
	sec := bcdValue(payload[0])
	min := bcdValue(payload[1])
	hour := bcdValue(payload[2])
	day := bcdValue(payload[3])
	month := bcdValue(payload[4])
	year := 2000 + bcdValue(payload[5])
	if sec > 59 || min > 59 || hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("clock payload out of range")
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// splitVariables decodes the 0x5B payload: jet id, then DC2-wrapped
// strings.
func splitVariables(payload []byte) (int, []string, error) {
	if len(payload) < 1 {
		return 0, nil, fmt.Errorf("empty variable payload")
	}
	jetID := int(payload[0])
	rest := payload[1:]

	var vars []string
	for len(rest) > 0 {
		if rest[0] != v24.DC2 {
			return 0, nil, fmt.Errorf("variable block missing DC2 delimiter")
		}
		rest = rest[1:]
		end := -1
		for i, b := range rest {
			if b == v24.DC2 {
				end = i
				break
			}
		}
		if end < 0 {
			return 0, nil, fmt.Errorf("unterminated variable block")
		}
		vars = append(vars, string(rest[:end]))
		rest = rest[end+1:]
	}
	if len(vars) == 0 {
		return 0, nil, fmt.Errorf("no variables in payload")
	}
	return jetID, vars, nil
}

// bcd packs a two-digit value, tens high nibble.
func bcd(v int) byte {
	if v < 0 {
		v = 0
	}
	v %= 100
	return byte(v/10<<4 | v%10)
}

// bcdValue unpacks a BCD byte.
func bcdValue(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
