package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
}

func TestDeriveKeyDifferentPassphrases(t *testing.T) {
	salt := []byte("1234567890abcdef")

	if bytes.Equal(DeriveKey("password1", salt), DeriveKey("password2", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte(`{"group":{"id":"1704110400000"},"chores":[]}`)

	enc, err := Encrypt(original, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, original) {
		t.Error("ciphertext contains plaintext")
	}
	if len(enc) < saltSize+nonceSize+len(original) {
		t.Errorf("ciphertext too short: %d bytes", len(enc))
	}

	dec, err := Decrypt(enc, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, original) {
		t.Errorf("round trip = %q, want %q", dec, original)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, _ := Encrypt([]byte("same"), "pass")
	b, _ := Encrypt([]byte("same"), "pass")
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("expected different salts per archive")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, _ := Encrypt([]byte("secret data"), "right")
	if _, err := Decrypt(enc, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, _ := Encrypt([]byte("secret data"), "pass")
	enc[len(enc)-1] ^= 0xff
	if _, err := Decrypt(enc, "pass"); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}

func TestEncryptDecryptEmpty(t *testing.T) {
	enc, err := Encrypt(nil, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := Decrypt(enc, "pass")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if len(dec) != 0 {
		t.Errorf("expected empty plaintext, got %d bytes", len(dec))
	}
}

func TestDecryptTooSmall(t *testing.T) {
	_, err := Decrypt([]byte("short"), "pass")
	if !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("err = %v, want ErrCiphertextTooShort", err)
	}
}
