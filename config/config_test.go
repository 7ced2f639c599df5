package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("BB_STR", "  hello ")
	t.Setenv("BB_INT", "42")
	t.Setenv("BB_BAD_INT", "x")
	t.Setenv("BB_TTL", "90")
	t.Setenv("BB_LIST", "https://a.test, ,https://b.test")

	assert.Equal(t, "hello", Get("BB_STR", "def"))
	assert.Equal(t, "def", Get("BB_MISSING", "def"))
	assert.Equal(t, 42, Int("BB_INT", 1))
	assert.Equal(t, 1, Int("BB_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, Seconds("BB_TTL", time.Hour))
	assert.Equal(t, time.Hour, Seconds("BB_MISSING", time.Hour))
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, List("BB_LIST"))
	assert.Equal(t, []string{"x"}, List("BB_MISSING", "x"))
}

func TestLoadEnv_DoesNotOverrideAndIgnoresMissingFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(f, []byte("BB_FROM_FILE=file\nBB_PRESET=file\n"), 0o600))
	t.Setenv("BB_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("BB_FROM_FILE") })

	LoadEnv(f, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "file", os.Getenv("BB_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("BB_PRESET"))
}
