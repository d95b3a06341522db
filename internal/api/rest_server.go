package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/arena-shooter/internal/auth"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/leaderboard"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Arena то, что HTTP-слой читает из движка
type Arena interface {
	PlayAreaDimensions() mgl64.Vec2
	Tuning() game.Tuning
	Stats(ctx context.Context) (game.Stats, error)
}

// Connections WebSocket-хаб
type Connections interface {
	ClientCount() int
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// RestServer HTTP-поверхность сервера арены
type RestServer struct {
	router   *gin.Engine
	arena    Arena
	hub      Connections
	board    leaderboard.Board
	resolver *auth.Resolver
	metrics  *ServerMetrics
	addr     string
	log      *logging.Logger
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr     string // ":8080"
	Arena    Arena
	Hub      Connections
	Board    leaderboard.Board
	Resolver *auth.Resolver

	// Метрики HTTP регистрируются в Registerer, /metrics отдаёт Gatherer
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	router.Use(otelgin.Middleware("arena_api"))
	router.Use(middleware.NewRequestLogger(nil).Handler())

	promMw := middleware.NewPrometheusMiddleware("arena_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:   router,
		arena:    config.Arena,
		hub:      config.Hub,
		board:    config.Board,
		resolver: config.Resolver,
		metrics:  NewServerMetrics(),
		addr:     config.Addr,
		log:      logging.GetComponentLogger("http"),
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(corsMiddleware())

	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/ws", gin.WrapF(rs.hub.HandleConnection))

	api := rs.router.Group("/api")
	{
		api.GET("/arena", rs.handleArena)
		api.GET("/stats", rs.handleStats)
		api.GET("/leaderboard", rs.handleLeaderboard)
		api.POST("/token", rs.handleToken)
	}

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/me", rs.handleMe)
	}
}

// Handler корневой http.Handler
func (rs *RestServer) Handler() http.Handler { return rs.router }

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ArenaInfo константы арены для клиентов
type ArenaInfo struct {
	Size             game.Vector `json:"size"`
	TickRate         int         `json:"tickRate"`
	ReportRate       int         `json:"reportRate"`
	PlayerRadius     float64     `json:"playerRadius"`
	ProjectileRadius float64     `json:"projectileRadius"`
	ProjectileSpeed  float64     `json:"projectileSpeed"`
	FireIntervalMs   int64       `json:"fireIntervalMs"`
}

func (rs *RestServer) handleArena(c *gin.Context) {
	t := rs.arena.Tuning()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Параметры арены",
		Data: ArenaInfo{
			Size:             game.VectorOf(rs.arena.PlayAreaDimensions()),
			TickRate:         t.TickRate,
			ReportRate:       t.ReportRate,
			PlayerRadius:     t.PlayerRadius,
			ProjectileRadius: t.ProjectileRadius,
			ProjectileSpeed:  t.ProjectileSpeed,
			FireIntervalMs:   t.FireInterval.Milliseconds(),
		},
	})
}

// handleStats статистика симуляции, подключений и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	engineStats, err := rs.arena.Stats(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, game.ErrEngineStopped) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	memoryMB := rs.metrics.GetMemoryUsage()
	cpuPercent, cpuErr := rs.metrics.GetCPUUsage()
	server := gin.H{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"server_time": time.Now().Unix(),
	}
	if cpuErr == nil {
		server["cpu_percent"] = fmt.Sprintf("%.2f", cpuPercent)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: gin.H{
			"engine":         engineStats,
			"connections":    rs.hub.ClientCount(),
			"server":         server,
			"memory_details": rs.metrics.GetDetailedMemoryStats(),
		},
	})
}

func (rs *RestServer) handleLeaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "limit должен быть от 1 до 100",
			})
			return
		}
		limit = n
	}

	entries, err := rs.board.Top(c.Request.Context(), limit)
	if err != nil {
		rs.log.Error("Чтение таблицы лидеров: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Таблица лидеров",
		Data:    entries,
	})
}

// TokenRequest запрос гостевого токена
type TokenRequest struct {
	Username string `json:"username" binding:"required"`
}

// TokenResponse ответ с токеном
type TokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message"`
}

// handleToken выдаёт гостевой токен с новым user_id. Доступно только
// при разрешённом анонимном входе.
func (rs *RestServer) handleToken(c *gin.Context) {
	if rs.resolver == nil || rs.resolver.Issuer() == nil || !rs.resolver.AllowAnonymous() {
		c.JSON(http.StatusForbidden, TokenResponse{
			Success: false,
			Message: "Гостевой вход отключён",
		})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, TokenResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}
	if err := auth.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, TokenResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	userID := uuid.NewString()
	token, err := rs.resolver.Issuer().Issue(userID, req.Username)
	if err != nil {
		rs.log.Error("Выпуск токена: %v", err)
		c.JSON(http.StatusInternalServerError, TokenResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Token:   token,
		UserID:  userID,
		Message: "Токен выдан",
	})
}

func (rs *RestServer) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Текущий пользователь",
		Data: gin.H{
			"user_id":  c.GetString("user_id"),
			"username": c.GetString("username"),
		},
	})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Run слушает addr до отмены ctx, затем корректно закрывает соединения.
func (rs *RestServer) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              rs.addr,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rs.log.Info("🌐 HTTP сервер слушает %s", rs.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http сервер: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("остановка http сервера: %w", err)
	}
	rs.log.Info("HTTP сервер остановлен")
	return nil
}
