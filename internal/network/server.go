package network

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/arena-shooter/internal/auth"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second // Должен быть меньше pongWait
	maxMessageSize = 4096
	sendBuffer     = 256
)

// ErrHubClosed хаб остановлен
var ErrHubClosed = errors.New("хаб подключений остановлен")

// MessageHandler обрабатывает события подключений и входящие сообщения.
type MessageHandler interface {
	OnClientConnect(ctx context.Context, client *Client) error
	HandleMessage(ctx context.Context, client *Client, env protocol.Envelope) error
	OnClientDisconnect(ctx context.Context, client *Client)
}

// Client подключённый по WebSocket клиент
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	id       string
	identity auth.Identity
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// ID уникальный идентификатор подключения
func (c *Client) ID() string { return c.id }

// Identity разрешённый пользователь подключения
func (c *Client) Identity() auth.Identity { return c.identity }

// Send ставит кадр в очередь отправки. false, если очередь переполнена
// или клиент уже отключается.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// SendMessage кодирует и отправляет сообщение.
func (c *Client) SendMessage(msgType string, payload any) error {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	if !c.Send(frame) {
		return errors.New("очередь отправки клиента переполнена")
	}
	return nil
}

func (c *Client) close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// HubConfig параметры хаба
type HubConfig struct {
	AllowedOrigins []string // Пусто: принимать любые
}

// Hub держит WebSocket-подключения и рассылает им кадры.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	handler  MessageHandler
	resolver *auth.Resolver
	upgrader websocket.Upgrader
	log      *logging.Logger
	metrics  *hubMetrics

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создаёт хаб. reg может быть nil.
func NewHub(handler MessageHandler, resolver *auth.Resolver, cfg HubConfig, reg prometheus.Registerer) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:  make(map[string]*Client),
		handler:  handler,
		resolver: resolver,
		log:      logging.GetNetworkLogger(),
		metrics:  newHubMetrics(reg),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   4096,
		EnableCompression: true,
		CheckOrigin:       originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleConnection разрешает пользователя и поднимает WebSocket.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	identity, err := h.resolver.Resolve(r)
	if err != nil {
		h.log.Debug("Отказ в подключении с %s: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Ошибка апгрейда соединения: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		id:       uuid.NewString(),
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := h.handler.OnClientConnect(ctx, client); err != nil {
		h.log.Warn("Подключение %s отклонено обработчиком: %v", client.id, err)
		client.close()
		return
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.metrics.connections.Inc()
	h.log.Info("Клиент подключён: %s (%s)", client.id, identity.UserID)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.id]
	delete(h.clients, client.id)
	h.mu.Unlock()

	client.close()
	if !ok {
		return
	}
	h.metrics.connections.Dec()

	// Контекст клиента уже отменён, поэтому берём контекст хаба
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.handler.OnClientDisconnect(ctx, client)
	h.log.Info("Клиент отключён: %s (%s)", client.id, client.identity.UserID)
}

// readPump читает сообщения клиента до ошибки или закрытия.
func (h *Hub) readPump(client *Client) {
	defer h.unregister(client)

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("Ошибка чтения от %s: %v", client.id, err)
			}
			return
		}

		env, err := protocol.DecodeEnvelope(message)
		if err != nil {
			h.metrics.messages.WithLabelValues("invalid").Inc()
			_ = client.SendMessage(protocol.MsgError, protocol.ErrorReply{Message: err.Error()})
			continue
		}
		h.metrics.messages.WithLabelValues(env.Type).Inc()

		if err := h.handler.HandleMessage(client.ctx, client, env); err != nil {
			h.log.Debug("Сообщение %s от %s: %v", env.Type, client.id, err)
			_ = client.SendMessage(protocol.MsgError, protocol.ErrorReply{Request: env.Type, Message: err.Error()})
		}
	}
}

// writePump единственный писатель в соединение.
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast отправляет кадр всем подключениям. Клиенты с переполненной
// очередью отключаются: они не успевают за потоком снапшотов.
func (h *Hub) Broadcast(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}

	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients {
		if !client.Send(frame) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.metrics.dropped.Inc()
		h.log.Warn("Клиент %s не успевает, отключаем", client.id)
		client.close()
	}
	return nil
}

// ClientCount число подключений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов и перестаёт принимать новых.
func (h *Hub) Close() {
	h.cancel()
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.cancel()
	}
}
