package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, "уровень %q", in)
		assert.Equal(t, want, got, "уровень %q", in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerConsoleThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := newConsoleLogger("game", &buf)

	l.Debug("скрыто %d", 1)
	l.Info("игрок %s подключен", "alice")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[INFO] [game] игрок alice подключен")

	l.SetConsoleLevel(DEBUG)
	l.Debug("видно")
	assert.Contains(t, buf.String(), "[DEBUG] [game] видно")
	assert.True(t, l.Enabled(DEBUG))
	assert.False(t, l.Enabled(TRACE))
}

func TestLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("")

	l, err := NewLogger("broadcast")
	require.NoError(t, err)
	l.SetOutput(&bytes.Buffer{})

	l.Trace("только в файл")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "broadcast_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TRACE] [broadcast] только в файл")
}

func TestLoggerManagerReusesComponents(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger), consoleLevel: WARN}

	a, err := lm.GetLogger("network")
	require.NoError(t, err)
	b, err := lm.GetLogger("network")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.False(t, a.Enabled(INFO))
	assert.Equal(t, []string{"network"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("network", DEBUG, DEBUG))
	assert.True(t, a.Enabled(DEBUG))
	assert.Error(t, lm.SetLogLevel("missing", DEBUG, DEBUG))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}
