package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/arena-shooter/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsMatchEngine(t *testing.T) {
	t.Setenv("ARENA_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, game.DefaultTuning(), cfg.Game.Tuning())
	assert.True(t, cfg.Auth.AllowAnonymous)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9000
game:
  arena_width: 20
  fire_interval: 500ms
supervisor:
  max_restarts: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.GetHTTPPort())
	tuning := cfg.Game.Tuning()
	assert.Equal(t, 20.0, tuning.ArenaSize[0])
	assert.Equal(t, 10.0, tuning.ArenaSize[1])
	assert.Equal(t, 500*time.Millisecond, tuning.FireInterval)
	assert.Equal(t, 128, tuning.TickRate)
	assert.Equal(t, 2, cfg.Supervisor.Policy().MaxRestarts)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv("ARENA_CONFIG", writeConfig(t, "logging:\n  level: debug\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestHTTPPortFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("ARENA_HTTP_PORT", "")
	assert.Equal(t, 8080, s.GetHTTPPort())

	t.Setenv("ARENA_HTTP_PORT", "7070")
	assert.Equal(t, 7070, s.GetHTTPPort())

	t.Setenv("ARENA_HTTP_PORT", "junk")
	assert.Equal(t, 8080, s.GetHTTPPort())
}

func TestValidateRejectsNonsense(t *testing.T) {
	t.Setenv("ARENA_JWT_SECRET", "")
	cases := map[string]func(*Config){
		"negative radius":   func(c *Config) { c.Game.PlayerRadius = -1 },
		"zero tick rate":    func(c *Config) { c.Game.TickRate = 0 },
		"tiny arena":        func(c *Config) { c.Game.ArenaWidth = 0.1 },
		"short secret":      func(c *Config) { c.Auth.JWTSecret = "short" },
		"no way to log in":  func(c *Config) { c.Auth.AllowAnonymous = false },
		"bad backoff":       func(c *Config) { c.Supervisor.InitialBackoff = 0 },
		"bad log level":     func(c *Config) { c.Logging.Level = "loud" },
		"port out of range": func(c *Config) { c.Server.HTTPPort = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "game: [1, 2"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSectionConversions(t *testing.T) {
	cfg := Default()
	cfg.EventBus.URL = "nats://127.0.0.1:4222"
	js := cfg.EventBus.JetStream()
	assert.Equal(t, "nats://127.0.0.1:4222", js.URL)
	assert.Equal(t, 24*time.Hour, js.Retention)

	cfg.Redis.Addr = "127.0.0.1:6379"
	assert.Equal(t, "arena:", cfg.Redis.Leaderboard().KeyPrefix)
	assert.Equal(t, "arena-shooter", cfg.Telemetry.Observability().ServiceName)
}
