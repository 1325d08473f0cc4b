package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, `config.toml`)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return dir, path
}

func TestApp_demo(t *testing.T) {
	_, path := writeConfig(t, `
log_level = "err"

[[threads]]
name = "a"

[[threads]]
name = "b"
lock_os_thread = false
`)
	require.NoError(t, newApp().Run([]string{`msgloop`, `--config`, path, `demo`, `-n`, `4`}))
}

func TestApp_demo_noNotifications(t *testing.T) {
	require.NoError(t, newApp().Run([]string{`msgloop`, `--log-level`, `disabled`, `demo`, `-n`, `0`}))
}

func TestApp_commit(t *testing.T) {
	dir, path := writeConfig(t, `log_level = "err"`)
	out := filepath.Join(dir, `state.json`)
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"err\"\ncommit_path = "+quote(out)+"\n"), 0o600))

	require.NoError(t, newApp().Run([]string{`msgloop`, `-c`, path, `commit`, `-u`, `3`, `--interval`, `20ms`}))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"updates":3`)
	assert.Contains(t, string(b), `"label":"msgloop"`)
}

func TestApp_commit_flush(t *testing.T) {
	dir, path := writeConfig(t, `log_level = "err"`)
	out := filepath.Join(dir, `flushed.json`)
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"err\"\ncommit_path = "+quote(out)+"\n"), 0o600))

	require.NoError(t, newApp().Run([]string{`msgloop`, `-c`, path, `commit`, `-u`, `2`, `--flush`}))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"updates":2`)
}

func TestApp_invalidConfig(t *testing.T) {
	_, path := writeConfig(t, `log_level = "shouty"`)
	assert.Error(t, newApp().Run([]string{`msgloop`, `-c`, path, `demo`}))
}

func TestState_serialize(t *testing.T) {
	b, err := (&state{label: "quote\"d", updates: 7}).serialize()
	require.NoError(t, err)
	assert.Equal(t, "{\"label\":\"quote\\\"d\",\"updates\":7,\"updated_at\":\"0001-01-01T00:00:00Z\"}\n", string(b))
}

func quote(s string) string {
	return `'` + s + `'`
}
