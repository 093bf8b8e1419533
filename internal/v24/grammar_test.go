package v24

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGrammar_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Grammar)
		wantErr bool
	}{
		{name: "default profile", mutate: func(g *Grammar) {}},
		{name: "zero grammar", mutate: func(g *Grammar) { *g = Grammar{} }, wantErr: true},
		{name: "length width too wide", mutate: func(g *Grammar) { g.LengthWidth = 5 }, wantErr: true},
		{name: "unknown checksum", mutate: func(g *Grammar) { g.Checksum = "crc16" }, wantErr: true},
		{name: "no checksum", mutate: func(g *Grammar) { g.Checksum = ChecksumNone }},
		{name: "negative max payload", mutate: func(g *Grammar) { g.MaxPayload = -1 }, wantErr: true},
		{name: "max payload overflows length field", mutate: func(g *Grammar) {
			g.LengthWidth = 1
			g.MaxPayload = 300
		}, wantErr: true},
		{name: "colliding control bytes", mutate: func(g *Grammar) { g.Nak = g.Ack }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGrammar()
			tt.mutate(&g)
			err := g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"9040", "9042", "ip65", "contrast"} {
		g, err := Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q) error = %v", name, err)
			continue
		}
		if err := g.Validate(); err != nil {
			t.Errorf("profile %q invalid: %v", name, err)
		}
	}

	if _, err := Lookup("9999"); !IsInvalidArgument(err) {
		t.Errorf("Lookup(unknown) error = %v, want invalid argument", err)
	}
}

func TestGrammar9042_LongerPayloads(t *testing.T) {
	if g40, g42 := Grammar9040(), Grammar9042(); g42.MaxPayload <= g40.MaxPayload {
		t.Errorf("9042 max payload = %d, want larger than 9040's %d", g42.MaxPayload, g40.MaxPayload)
	}
}

func TestLoadGrammar_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.yaml")

	want := Grammar9042()
	want.Name = "bench-9042"
	if err := SaveGrammar(path, want); err != nil {
		t.Fatalf("SaveGrammar() error = %v", err)
	}

	got, err := LoadGrammar(path)
	if err != nil {
		t.Fatalf("LoadGrammar() error = %v", err)
	}
	if got != want {
		t.Errorf("LoadGrammar() = %+v, want %+v", got, want)
	}
}

func TestLoadGrammar_PartialFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.yaml")
	// Only the checksum differs from the default profile.
	if err := os.WriteFile(path, []byte("checksum: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGrammar(path)
	if err != nil {
		t.Fatalf("LoadGrammar() error = %v", err)
	}
	if g.Checksum != ChecksumNone {
		t.Errorf("checksum = %q, want none", g.Checksum)
	}
	if g.LengthWidth != DefaultGrammar().LengthWidth {
		t.Errorf("length width = %d, want default %d", g.LengthWidth, DefaultGrammar().LengthWidth)
	}
	if g.Name != "custom" {
		t.Errorf("name = %q, want custom", g.Name)
	}
}

func TestLoadGrammar_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.yaml")
	if err := os.WriteFile(path, []byte("length_width: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadGrammar(path); !IsInvalidArgument(err) {
		t.Errorf("LoadGrammar() error = %v, want invalid argument", err)
	}
}
