package secrets

import (
	"errors"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}

	sealed, err := s.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		t.Errorf("Seal() = %q, want %q prefix", sealed, sealedPrefix)
	}
	if strings.Contains(sealed, "hunter2") {
		t.Errorf("Seal() leaked plaintext: %q", sealed)
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != "hunter2" {
		t.Errorf("Open() = %q, want %q", opened, "hunter2")
	}
}

func TestOpenPlainValuePassesThrough(t *testing.T) {
	s, _ := NewSealer(testSecret)

	got, err := s.Open("legacy-api-key")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "legacy-api-key" {
		t.Errorf("Open() = %q, want %q", got, "legacy-api-key")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	a, _ := NewSealer(testSecret)
	b, _ := NewSealer(strings.Repeat("z", 32))

	sealed, err := a.Seal("secret")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := b.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open() error = %v, want ErrDecrypt", err)
	}
}

func TestSealEmpty(t *testing.T) {
	s, _ := NewSealer(testSecret)
	got, err := s.Seal("")
	if err != nil || got != "" {
		t.Errorf("Seal(\"\") = %q, %v; want empty, nil", got, err)
	}
}

func TestNewSealerRejectsShortSecret(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Error("NewSealer() expected error for short secret")
	}
}
