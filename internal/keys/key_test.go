package keys

import (
	"errors"
	"testing"
)

func Test(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatal(err)
	}

	plaintext := "jane@university.edu"

	encrypted, err := key.Encrypt([]byte(plaintext))
	if err != nil {
		t.Fatal(err)
	}

	decrypted, err := key.Decrypt(encrypted)
	if err != nil {
		t.Fatal(err)
	}

	if plaintext != string(decrypted) {
		t.Fatal("encrypted != decrypted")
	}

	encrypted[len(encrypted)-1] ^= 0xff
	if _, err := key.Decrypt(encrypted); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}

	if _, err := key.Decrypt([]byte("short")); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected %q, got %v", ErrCiphertextTooShort, err)
	}
}

func TestParseKey(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseKey([]byte(key.String()))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.String() != key.String() {
		t.Fatal("expected base64 key to round trip")
	}

	if _, err := ParseKey([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("expected a raw 16 byte key to parse: %v", err)
	}
	if _, err := ParseKey([]byte("please-change-me-too")); err == nil {
		t.Fatal("expected an invalid key size error")
	}
}
