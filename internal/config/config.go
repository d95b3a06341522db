package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/leaderboard"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/observability"
	"github.com/annel0/arena-shooter/internal/supervisor"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("некорректная конфигурация")

// Config корневая структура конфигурации сервера арены.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Game       GameConfig       `yaml:"game"`
	Auth       AuthConfig       `yaml:"auth"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Redis      RedisConfig      `yaml:"redis"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GetHTTPPort возвращает HTTP порт с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "ARENA_HTTP_PORT", 8080)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// GameConfig игровые константы
type GameConfig struct {
	ArenaWidth          float64       `yaml:"arena_width"`
	ArenaHeight         float64       `yaml:"arena_height"`
	TickRate            int           `yaml:"tick_rate"`
	ReportRate          int           `yaml:"report_rate"`
	PlayerRadius        float64       `yaml:"player_radius"`
	ProjectileRadius    float64       `yaml:"projectile_radius"`
	ProjectileSpeed     float64       `yaml:"projectile_speed"`
	BaseSpeed           float64       `yaml:"base_speed"`
	SprintSpeed         float64       `yaml:"sprint_speed"`
	SneakSpeed          float64       `yaml:"sneak_speed"`
	ControlAcceleration float64       `yaml:"control_acceleration"`
	FireInterval        time.Duration `yaml:"fire_interval"`
	SpawnMargin         float64       `yaml:"spawn_margin"`
	Seed                int64         `yaml:"seed"` // 0: от текущего времени
}

// Tuning переводит секцию в константы движка.
func (g GameConfig) Tuning() game.Tuning {
	return game.Tuning{
		ArenaSize:           mgl64.Vec2{g.ArenaWidth, g.ArenaHeight},
		TickRate:            g.TickRate,
		ReportRate:          g.ReportRate,
		PlayerRadius:        g.PlayerRadius,
		ProjectileRadius:    g.ProjectileRadius,
		ProjectileSpeed:     g.ProjectileSpeed,
		BaseSpeed:           g.BaseSpeed,
		SprintSpeed:         g.SprintSpeed,
		SneakSpeed:          g.SneakSpeed,
		ControlAcceleration: g.ControlAcceleration,
		FireInterval:        g.FireInterval,
		SpawnMargin:         g.SpawnMargin,
	}
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"` // fallback: ARENA_JWT_SECRET
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowAnonymous bool          `yaml:"allow_anonymous"`
}

// Secret ключ из конфига или окружения
func (a *AuthConfig) Secret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("ARENA_JWT_SECRET")
}

// EventBusConfig пустой URL: шина в памяти процесса.
type EventBusConfig struct {
	URL        string `yaml:"url"`
	Stream     string `yaml:"stream"`
	Subject    string `yaml:"subject"`
	Retention  int    `yaml:"retention_hours"`
	BufferSize int    `yaml:"buffer_size"`
}

// JetStream параметры подключения к NATS
func (e EventBusConfig) JetStream() eventbus.JetStreamConfig {
	return eventbus.JetStreamConfig{
		URL:       e.URL,
		Stream:    e.Stream,
		Subject:   e.Subject,
		Retention: time.Duration(e.Retention) * time.Hour,
	}
}

// RedisConfig пустой Addr: таблица лидеров в памяти.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Leaderboard параметры Redis-таблицы лидеров
func (r RedisConfig) Leaderboard() leaderboard.RedisConfig {
	return leaderboard.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, KeyPrefix: r.KeyPrefix}
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

// Observability параметры трассировки
func (t TelemetryConfig) Observability() observability.Config {
	return observability.Config{
		Enabled:     t.Enabled,
		ServiceName: t.ServiceName,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
	}
}

type SupervisorConfig struct {
	MaxRestarts    int           `yaml:"max_restarts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	ResetAfter     time.Duration `yaml:"reset_after"`
}

// Policy политика перезапуска циклов
func (s SupervisorConfig) Policy() supervisor.Policy {
	return supervisor.Policy{
		MaxRestarts:    s.MaxRestarts,
		InitialBackoff: s.InitialBackoff,
		MaxBackoff:     s.MaxBackoff,
		ResetAfter:     s.ResetAfter,
	}
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`   // Пусто: только консоль
	Level string `yaml:"level"` // Порог консоли
}

// Default конфигурация по умолчанию.
func Default() *Config {
	t := game.DefaultTuning()
	p := supervisor.DefaultPolicy()
	return &Config{
		Server: ServerConfig{ShutdownTimeout: 10 * time.Second},
		Game: GameConfig{
			ArenaWidth:          t.ArenaSize[0],
			ArenaHeight:         t.ArenaSize[1],
			TickRate:            t.TickRate,
			ReportRate:          t.ReportRate,
			PlayerRadius:        t.PlayerRadius,
			ProjectileRadius:    t.ProjectileRadius,
			ProjectileSpeed:     t.ProjectileSpeed,
			BaseSpeed:           t.BaseSpeed,
			SprintSpeed:         t.SprintSpeed,
			SneakSpeed:          t.SneakSpeed,
			ControlAcceleration: t.ControlAcceleration,
			FireInterval:        t.FireInterval,
			SpawnMargin:         t.SpawnMargin,
		},
		Auth:      AuthConfig{TokenTTL: 24 * time.Hour, AllowAnonymous: true},
		EventBus:  EventBusConfig{Retention: 24, BufferSize: 1024},
		Redis:     RedisConfig{KeyPrefix: "arena:"},
		Telemetry: TelemetryConfig{ServiceName: "arena-shooter"},
		Supervisor: SupervisorConfig{
			MaxRestarts:    p.MaxRestarts,
			InitialBackoff: p.InitialBackoff,
			MaxBackoff:     p.MaxBackoff,
			ResetAfter:     p.ResetAfter,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load читает YAML файл поверх значений по умолчанию.
// Если path == "", берётся ARENA_CONFIG; без файла возвращаются дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate отклоняет бессмысленные значения.
func (c *Config) Validate() error {
	if err := c.Game.Tuning().Validate(); err != nil {
		return fmt.Errorf("%w: game: %v", ErrInvalidConfig, err)
	}
	if p := c.Server.HTTPPort; p < 0 || p > 65535 {
		return fmt.Errorf("%w: server.http_port %d", ErrInvalidConfig, p)
	}
	if secret := c.Auth.Secret(); secret != "" && len(secret) < 32 {
		return fmt.Errorf("%w: auth.jwt_secret короче 32 байт", ErrInvalidConfig)
	}
	if c.Auth.Secret() == "" && !c.Auth.AllowAnonymous {
		return fmt.Errorf("%w: без jwt_secret нужен allow_anonymous", ErrInvalidConfig)
	}
	s := c.Supervisor
	if s.MaxRestarts < 0 || s.InitialBackoff <= 0 || s.MaxBackoff < s.InitialBackoff {
		return fmt.Errorf("%w: supervisor %+v", ErrInvalidConfig, s)
	}
	if c.EventBus.BufferSize <= 0 {
		return fmt.Errorf("%w: eventbus.buffer_size должен быть > 0", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}
	return nil
}
