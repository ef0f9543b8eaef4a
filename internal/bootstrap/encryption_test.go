package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/lms-session/internal/data/cryptoutil"
)

func TestCreateEncryptor_NoKeysUsesNoop(t *testing.T) {
	enc, err := CreateEncryptor(nil, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, cryptoutil.NoopEncryptor{}, enc)
}

func TestCreateEncryptor_RotatedKeysStillDecrypt(t *testing.T) {
	old, err := CreateEncryptor([]string{"old-secret"}, discardLogger())
	require.NoError(t, err)
	sealed, err := old.Encrypt([]byte("payload"))
	require.NoError(t, err)

	rotated, err := CreateEncryptor([]string{"new-secret", "old-secret"}, discardLogger())
	require.NoError(t, err)
	plain, err := rotated.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	retired, err := CreateEncryptor([]string{"new-secret"}, discardLogger())
	require.NoError(t, err)
	_, err = retired.Decrypt(sealed)
	require.Error(t, err)
}

func TestCreateEncryptor_BlankKey(t *testing.T) {
	_, err := CreateEncryptor([]string{"  "}, discardLogger())
	require.Error(t, err)
}
