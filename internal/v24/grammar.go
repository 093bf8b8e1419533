package v24

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Control bytes shared by all known printer families.
const (
	// ENQ is the bare dialog-readiness probe.
	ENQ = 0x05
	// ACK is the positive response status byte.
	ACK = 0x06
	// DC2 delimits external-variable strings inside a payload.
	DC2 = 0x12
	// NAK is the negative response status byte.
	NAK = 0x15
)

// Checksum schemes supported by the codec.
const (
	// ChecksumXOR appends one byte: the XOR of all preceding frame bytes.
	ChecksumXOR = "xor"
	// ChecksumNone omits the trailing checksum byte entirely.
	ChecksumNone = "none"
)

// Grammar describes the wire layout of one printer family. The codec
// never hard-codes field widths or control bytes; every encode/decode
// call takes a Grammar so the same binary supports mixed fleets and
// grammars captured from unlisted firmware revisions.
type Grammar struct {
	// Name identifies the profile (e.g. "9040").
	Name string `yaml:"name"`

	// LengthWidth is the size of the payload length field in bytes.
	// The length is big-endian on all known families.
	LengthWidth int `yaml:"length_width"`

	// Checksum selects the trailing integrity byte scheme
	// (ChecksumXOR or ChecksumNone).
	Checksum string `yaml:"checksum"`

	// MaxPayload bounds the declared payload length of a frame.
	// Anything larger is treated as malformed rather than allocated.
	MaxPayload int `yaml:"max_payload"`

	// Enq, Ack and Nak are the control bytes. They default to the
	// values shared by every documented family but are configurable
	// for captured variants.
	Enq byte `yaml:"enq"`
	Ack byte `yaml:"ack"`
	Nak byte `yaml:"nak"`
}

// DefaultGrammar returns the 9040 profile, the most common family and
// the layout the original V24 documentation describes.
func DefaultGrammar() Grammar {
	return Grammar9040()
}

// Grammar9040 returns the wire grammar of the 9040 series.
func Grammar9040() Grammar {
	return Grammar{
		Name:        "9040",
		LengthWidth: 2,
		Checksum:    ChecksumXOR,
		MaxPayload:  1024,
		Enq:         ENQ,
		Ack:         ACK,
		Nak:         NAK,
	}
}

// Grammar9042 returns the wire grammar of the 9042 series. The 9042
// shares the 9040 framing but accepts longer message payloads.
func Grammar9042() Grammar {
	g := Grammar9040()
	g.Name = "9042"
	g.MaxPayload = 2048
	return g
}

// GrammarIP65 returns the wire grammar of the IP65/Contrast variants.
func GrammarIP65() Grammar {
	g := Grammar9040()
	g.Name = "ip65"
	return g
}

// Profiles returns the built-in grammar profiles keyed by name.
func Profiles() map[string]Grammar {
	return map[string]Grammar{
		"9040":     Grammar9040(),
		"9042":     Grammar9042(),
		"ip65":     GrammarIP65(),
		"contrast": GrammarIP65(),
	}
}

// Lookup resolves a profile name to its built-in grammar.
func Lookup(name string) (Grammar, error) {
	g, ok := Profiles()[name]
	if !ok {
		return Grammar{}, NewInvalidArgumentError(fmt.Sprintf("unknown grammar profile %q", name))
	}
	return g, nil
}

// Validate checks that the grammar is internally consistent. Encode
// and Decode call it on every use; a zero Grammar is rejected.
func (g Grammar) Validate() error {
	if g.LengthWidth < 1 || g.LengthWidth > 4 {
		return NewInvalidArgumentError(fmt.Sprintf("grammar %q: length width %d out of range [1,4]", g.Name, g.LengthWidth))
	}
	switch g.Checksum {
	case ChecksumXOR, ChecksumNone:
	default:
		return NewInvalidArgumentError(fmt.Sprintf("grammar %q: unknown checksum scheme %q", g.Name, g.Checksum))
	}
	if g.MaxPayload <= 0 {
		return NewInvalidArgumentError(fmt.Sprintf("grammar %q: max payload must be positive", g.Name))
	}
	if max := 1<<(8*g.LengthWidth) - 1; g.MaxPayload > max {
		return NewInvalidArgumentError(fmt.Sprintf("grammar %q: max payload %d not representable in %d-byte length field", g.Name, g.MaxPayload, g.LengthWidth))
	}
	if g.Enq == g.Ack || g.Enq == g.Nak || g.Ack == g.Nak {
		return NewInvalidArgumentError(fmt.Sprintf("grammar %q: control bytes must be distinct", g.Name))
	}
	return nil
}

// checksumLen returns the size of the trailing integrity marker.
func (g Grammar) checksumLen() int {
	if g.Checksum == ChecksumXOR {
		return 1
	}
	return 0
}

// xor folds a byte slice with XOR, the integrity scheme of every
// documented family.
func xor(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// LoadGrammar reads a grammar profile from a YAML file. Fields left
// unset fall back to the default profile so a file only needs to name
// what differs from the 9040 layout.
func LoadGrammar(path string) (Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grammar{}, fmt.Errorf("failed to read grammar profile: %w", err)
	}
	g := DefaultGrammar()
	g.Name = ""
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Grammar{}, fmt.Errorf("failed to parse grammar profile %s: %w", path, err)
	}
	if g.Name == "" {
		g.Name = "custom"
	}
	if err := g.Validate(); err != nil {
		return Grammar{}, err
	}
	return g, nil
}

// SaveGrammar writes a grammar profile as YAML, the counterpart of
// LoadGrammar for capturing a validated custom layout.
func SaveGrammar(path string, g Grammar) error {
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal grammar profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write grammar profile: %w", err)
	}
	return nil
}
