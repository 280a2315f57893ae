package encryption

import (
	"bytes"
	"fmt"
	"testing"
)

func typeName(v any) string { return fmt.Sprintf("%T", v) }

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewTestEncryptor()
			if err := e.Setup("secret"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !bytes.HasPrefix(encrypted.Bytes(), testHeader) {
				t.Error("encrypted output does not start with test header")
			}

			dc, err := e.Unlock("secret")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %q, want %q", decrypted.Bytes(), tt.input)
			}
		})
	}
}

func TestTestEncryptor_UnlockChecksPassphrase(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	e.Setup("secret")
	if _, err := e.Unlock("guess"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestTestEncryptor_Deterministic(t *testing.T) {
	t.Parallel()

	input := []byte("deterministic test")
	e := NewTestEncryptor()

	var enc1, enc2 bytes.Buffer
	e.Encrypt(bytes.NewReader(input), &enc1)
	e.Encrypt(bytes.NewReader(input), &enc2)

	if !bytes.Equal(enc1.Bytes(), enc2.Bytes()) {
		t.Error("same input produced different encrypted output")
	}
}

func TestTestDecryptionContext_BadInput(t *testing.T) {
	t.Parallel()

	for name, input := range map[string][]byte{
		"invalid header": []byte("NOT_VALID_HEADER_data"),
		"truncated":      []byte("RC"),
		"empty":          nil,
	} {
		t.Run(name, func(t *testing.T) {
			dc := &TestDecryptionContext{}
			if err := dc.Decrypt(bytes.NewReader(input), &bytes.Buffer{}); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}
