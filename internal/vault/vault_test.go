package vault

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFileVault(t *testing.T, dir string, conf *Config) *Vault {
	t.Helper()
	conf.Dir = dir
	conf.Backends = []keyring.BackendType{keyring.FileBackend}
	v, err := Open(conf)
	require.NoError(t, err)
	return v
}

func TestVault(t *testing.T) {
	dir := t.TempDir()
	v := openFileVault(t, dir, &Config{Password: "vault-pass"})

	_, err := v.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	want := &Credentials{URL: "http://192.168.0.1/cgi-bin", Username: "admin", Password: "hunter2"}
	require.NoError(t, v.Set(want))

	// reopen to read it back from disk
	v = openFileVault(t, dir, &Config{Password: "vault-pass"})
	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, v.Remove())
	_, err = v.Get()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, v.Remove())
}

func TestVaultPrompt(t *testing.T) {
	dir := t.TempDir()
	var prompts []string
	prompt := func(msg string) (string, error) {
		prompts = append(prompts, msg)
		return "typed", nil
	}
	v := openFileVault(t, dir, &Config{Prompt: prompt})
	require.NoError(t, v.Set(&Credentials{Password: "x"}))
	_, err := v.Get()
	require.NoError(t, err)

	require.NotEmpty(t, prompts)
	assert.Contains(t, prompts[0], "encrypt")
}

func TestVaultNoPassword(t *testing.T) {
	v := openFileVault(t, t.TempDir(), &Config{})
	assert.Error(t, v.Set(&Credentials{Password: "x"}))
}
