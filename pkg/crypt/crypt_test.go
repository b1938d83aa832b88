package crypt

import (
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{"", "abc", "ünïcødé ✓ token", strings.Repeat("x", 4096)} {
		enc, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptFormat(t *testing.T) {
	c := newTestCipher(t)

	enc, err := c.Encrypt("abc")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(enc, ":")
	if len(parts) != 3 {
		t.Fatalf("segments = %d, want 3", len(parts))
	}
	if len(parts[0]) != 32 {
		t.Errorf("iv hex length = %d, want 32", len(parts[0]))
	}
	if len(parts[1]) != 32 {
		t.Errorf("tag hex length = %d, want 32", len(parts[1]))
	}
	if len(parts[2]) != 6 {
		t.Errorf("ciphertext hex length = %d, want 6", len(parts[2]))
	}

	again, _ := c.Encrypt("abc")
	if again == enc {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestDecryptTamperedTag(t *testing.T) {
	c := newTestCipher(t)

	enc, err := c.Encrypt("secret-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(enc, ":")
	tag := []byte(parts[1])
	if tag[0] == '0' {
		tag[0] = '1'
	} else {
		tag[0] = '0'
	}
	tampered := parts[0] + ":" + string(tag) + ":" + parts[2]

	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("Decrypt(tampered) error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCipher(t)

	tests := []string{
		"",
		"nocolons",
		"aa:bb",
		"zz:00000000000000000000000000000000:00",
		"00000000000000000000000000000000:zz:00",
		"00000000000000000000000000000000:00000000000000000000000000000000:zz",
		"a:b:c:d",
	}
	for _, in := range tests {
		if _, err := c.Decrypt(in); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("Decrypt(%q) error = %v, want ErrDecryptionFailed", in, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := newTestCipher(t).Encrypt("abc")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	other, err := New("another-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Decrypt(enc); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("error = %v, want ErrDecryptionFailed", err)
	}
}

func TestNewEmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("error = %v, want ErrEmptySecret", err)
	}
}
