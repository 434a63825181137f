package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, true))
	defer Close()

	Info("hello %s", "world")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestNamedWithoutInit(t *testing.T) {
	l := Named("detector")
	require.NotNil(t, l)
	l.Debugf("usable before Init")
}

func TestCheckAndCleanKeepsCurrentLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, false))
	defer Close()

	archive := filepath.Join(dir, LogFileName+".1")
	require.NoError(t, os.WriteFile(archive, make([]byte, MaxLogDirSize+1), 0o644))

	checkAndClean()

	_, err := os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, LogFileName))
	assert.NoError(t, err)
}
