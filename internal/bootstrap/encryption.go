package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/lms-session/internal/data/cryptoutil"
)

// tokenEncryptionPurpose binds session token ciphertexts to their use.
const tokenEncryptionPurpose = "session-token"

// CreateEncryptor creates an AES-GCM encryptor from the configured keys. The
// first key encrypts; every key is tried on decrypt so old keys can be rotated out.
// With no keys it returns a noop encryptor, which config validation only allows in development.
//
//nolint:ireturn // Returning interface is intentional for encryptor abstraction
func CreateEncryptor(keys []string, logger *slog.Logger) (cryptoutil.Encryptor, error) {
	if len(keys) == 0 {
		if logger != nil {
			logger.Warn("session encryption keys are empty, using noop encryptor")
		}
		return cryptoutil.NoopEncryptor{}, nil
	}

	derived := make([][]byte, 0, len(keys))
	for i, k := range keys {
		key, err := cryptoutil.DeriveKey(k)
		if err != nil {
			return nil, fmt.Errorf("session encryption key %d: %w", i, err)
		}
		derived = append(derived, key)
	}
	enc, err := cryptoutil.NewAESGCMEncryptor(tokenEncryptionPurpose, derived...)
	if err != nil {
		return nil, fmt.Errorf("create session encryptor: %w", err)
	}
	return enc, nil
}
