package testutil

import (
	"rentcat/internal/encryption"
	"rentcat/internal/vault"
)

// NewTestMirror creates an in-memory backup mirror.
func NewTestMirror() *vault.MemoryMirror {
	return vault.NewMemoryMirror("test-mirror")
}

// NewTestEncryptor creates a header-only encryptor unlocked by passphrase.
func NewTestEncryptor(passphrase string) *encryption.TestEncryptor {
	e := encryption.NewTestEncryptor()
	e.Setup(passphrase)
	return e
}
