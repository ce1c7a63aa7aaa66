package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestInitializeAndLoad(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize(BackendBolt)
	require.NoError(t, err)
	assert.Equal(t, BackendBolt, cfg.Backend)
	assert.Equal(t, "schemafire.db", cfg.DatabaseFile)
	assert.Equal(t, 5, cfg.MaxAttempts)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.DatabasePath(), loaded.DatabasePath())
}

func TestInitialize_SQLiteDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, "schemafire.sqlite", cfg.DatabaseFile)
}

func TestInitialize_AlreadyExists(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Initialize(BackendBolt)
	require.NoError(t, err)

	_, err = Initialize(BackendBolt)
	assert.Error(t, err)
}

func TestInitialize_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Initialize("postgres")
	require.Error(t, err)
	// cleanup must not leave a half-initialized directory behind
	_, statErr := os.Stat(filepath.Join(dir, Dir))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFindRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)
	_, err := Initialize(BackendBolt)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	found, err := FindRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, Dir), found)
}

func TestLoad_NotAWorkspace(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{Backend: BackendBolt}).Validate())
	assert.NoError(t, (&Config{Backend: BackendSQLite}).Validate())
	assert.Error(t, (&Config{Backend: "redis"}).Validate())
}
