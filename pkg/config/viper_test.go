package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	v, err := Load(t.TempDir(), "does-not-exist")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	body := "server:\n  port: 9000\nchat:\n  request_timeout: 3s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.yaml"), []byte(body), 0o600))

	t.Setenv("SERVER_PORT", "9100")

	v, err := Load(dir, "chat")
	require.NoError(t, err)
	require.Equal(t, 9100, v.GetInt("server.port"))
	require.Equal(t, 3*time.Second, Duration(v, "chat.request_timeout", time.Second))
	require.Equal(t, time.Second, Duration(v, "chat.missing", time.Second))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := Load(dir, "bad")
	require.Error(t, err)
}
