package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()

	path := filepath.Join(t.TempDir(), "apkchannel.log")
	require.NoError(t, Setup("warn", path))
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
	log.Info().Msg("hidden")
	log.Warn().Str("channel", "huawei").Msg("shown")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"channel":"huawei"`)
	assert.Contains(t, lines[0], `"message":"shown"`)
}

func TestSetupBadLevel(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()
	assert.Error(t, Setup("loud", "-"))
}

func TestFileWriterReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	w, err := OpenFile(path)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	require.NoError(t, os.Rename(path, path+".1"))
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)

	b, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(b))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(b))

	require.NoError(t, w.Close())
	_, err = w.Write([]byte("three\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
