package encryption

import (
	"fmt"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// maxScryptWorkFactor matches the ceiling age's scrypt identity accepts by default.
const maxScryptWorkFactor = 22

// NewEncryptorFromConfig builds the vault encryptor. Type "none" yields a
// nil Encryptor and blobs are stored as uploaded.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (av.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("encryption type age: public_key_path and private_key_path are required")
		}
		if cfg.ScryptWorkFactor < 0 || cfg.ScryptWorkFactor > maxScryptWorkFactor {
			return nil, fmt.Errorf("encryption type age: scrypt_work_factor must be between 0 and %d", maxScryptWorkFactor)
		}
		e := NewAgeEncryptor(cfg)
		e.workFactor = cfg.ScryptWorkFactor
		return e, nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown encryption type %q (want age, test or none)", cfg.Type)
}
