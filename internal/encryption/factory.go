package encryption

import (
	"fmt"

	"rentcat/internal/config"
	"rentcat/internal/rentcat"
)

// NewEncryptorFromConfig builds the encryptor for mirrored catalog backups.
// An empty type means age, which needs both key paths even before
// `rentcat keys init` has created the files.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (rentcat.Encryptor, error) {
	typ := cfg.Type
	if typ == "" {
		typ = config.EncryptionAge
	}

	switch typ {
	case config.EncryptionAge:
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("encryption: age needs public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case config.EncryptionTest:
		return NewTestEncryptor(), nil
	}
	return nil, fmt.Errorf("encryption: unknown type %q (want %q or %q)", cfg.Type, config.EncryptionAge, config.EncryptionTest)
}
