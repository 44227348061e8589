package auth

import (
	"bytes"
	"errors"
	"testing"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestSealer(t *testing.T, secret string) *Sealer {
	t.Helper()
	s, err := NewSealer(secret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestNewSealer_ShortSecret(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Fatal("NewSealer() should reject secrets shorter than 16 chars")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s := newTestSealer(t, testSecret)
	plaintext := []byte("x-access-token-abc123")

	sealed, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed value contains the plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	s := newTestSealer(t, testSecret)

	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))

	// Same plaintext, same key: the random nonce must still make the output differ.
	if bytes.Equal(a, b) {
		t.Error("Seal() produced identical output twice")
	}
}

func TestOpen_Failures(t *testing.T) {
	s := newTestSealer(t, testSecret)
	sealed, err := s.Seal([]byte("token"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff

	other := newTestSealer(t, "a-completely-different-secret")

	tests := []struct {
		name   string
		sealer *Sealer
		input  []byte
	}{
		{"truncated", s, sealed[:10]},
		{"tampered", s, tampered},
		{"wrong key", other, sealed},
		{"empty", s, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sealer.Open(tt.input)
			if !errors.Is(err, ErrUnseal) {
				t.Errorf("Open() error = %v, want ErrUnseal", err)
			}
		})
	}
}
