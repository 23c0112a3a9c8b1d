package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		EnvAnthropicKey: "sk-ant-test",
		EnvOpenAIKey:    "sk-test",
	}

	require.NoError(t, EncryptSecretsFile(dir, "correct horse", secrets))
	assert.True(t, SecretsFileExists(dir))

	got, err := DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "right", map[string]string{"K": "v"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestDecryptMissingFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, SecretsFileExists(dir))

	_, err := DecryptSecretsFile(dir, "pw")
	assert.Error(t, err)
}

func TestDecryptCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"K": "v"}))

	path := secretsPath(dir)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))

	_, err := DecryptSecretsFile(dir, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted")
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	// In-memory value wins over environment.
	t.Setenv("MARKY_TEST_SECRET", "from-env")
	SetDecryptedSecrets(map[string]string{"MARKY_TEST_SECRET": "from-file"})

	v, err := GetSecret("MARKY_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	// Environment serves as fallback.
	SetDecryptedSecrets(nil)
	v, err = GetSecret("MARKY_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = GetSecret("MARKY_TEST_SECRET_ABSENT")
	assert.Error(t, err)
}

func TestSetSecret(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	SetDecryptedSecrets(nil)
	SetSecret("NEW_KEY", "value")
	v, err := GetSecret("NEW_KEY")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestLoadSecretsInstallsInMemory(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"LOADED": "yes"}))
	require.NoError(t, LoadSecrets(dir, "pw"))

	v, err := GetSecret("LOADED")
	require.NoError(t, err)
	assert.Equal(t, "yes", v)
}

func TestAPIKeyName(t *testing.T) {
	assert.Equal(t, EnvAnthropicKey, APIKeyName(ProviderAnthropic))
	assert.Equal(t, EnvOpenAIKey, APIKeyName(ProviderOpenAI))
	assert.Equal(t, EnvGoogleKey, APIKeyName(ProviderGoogle))
	assert.Equal(t, "", APIKeyName(ProviderOllama))
}
