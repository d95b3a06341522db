package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/arena-shooter/internal/logging"
)

// ErrUnknownConnection подключение не зарегистрировано
var ErrUnknownConnection = errors.New("неизвестное подключение")

// PlayerGateway сторона игры, в которую реестр добавляет и из которой
// удаляет игроков (game.Engine).
type PlayerGateway interface {
	AddPlayer(ctx context.Context, id, name string) (bool, error)
	RemovePlayer(ctx context.Context, id string) (bool, error)
}

// Registry связывает подключения с идентичностями. Одна идентичность
// может временно иметь несколько подключений (переподключение).
// mu никогда не удерживается во время обращения к игре. Добавление и
// удаление игроков упорядочены через gameMu, чтобы отложенное удаление
// после последнего отключения не стёрло игрока нового подключения.
type Registry struct {
	gameMu      sync.Mutex
	mu          sync.RWMutex
	connections map[string]string   // connection → user
	users       map[string][]string // user → connections
	game        PlayerGateway
	log         *logging.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(game PlayerGateway) *Registry {
	return &Registry{
		connections: make(map[string]string),
		users:       make(map[string][]string),
		game:        game,
		log:         logging.GetNetworkLogger(),
	}
}

// RegisterConnection привязывает подключение к идентичности.
func (r *Registry) RegisterConnection(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.connections[connID]; ok {
		if prev == userID {
			return
		}
		r.detachLocked(connID, prev)
	}
	r.connections[connID] = userID
	r.users[userID] = append(r.users[userID], connID)
}

// UnregisterConnection забывает подключение. Если это было последнее
// подключение идентичности, её игрок покидает арену.
func (r *Registry) UnregisterConnection(ctx context.Context, connID string) (string, error) {
	r.mu.Lock()
	userID, ok := r.connections[connID]
	if !ok {
		r.mu.Unlock()
		return "", nil
	}
	last := r.detachLocked(connID, userID)
	r.mu.Unlock()

	if !last {
		r.log.Debug("Подключение %s закрыто, у %s остались другие", connID, userID)
		return userID, nil
	}

	r.gameMu.Lock()
	defer r.gameMu.Unlock()
	// Пока ждали очереди, идентичность могла переподключиться
	if r.hasConnections(userID) {
		r.log.Debug("%s переподключился, игрок остаётся", userID)
		return userID, nil
	}
	if _, err := r.game.RemovePlayer(ctx, userID); err != nil {
		return userID, fmt.Errorf("удаление игрока %s: %w", userID, err)
	}
	return userID, nil
}

func (r *Registry) hasConnections(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// detachLocked возвращает true, если у пользователя не осталось подключений.
func (r *Registry) detachLocked(connID, userID string) bool {
	delete(r.connections, connID)
	conns := r.users[userID]
	for i, c := range conns {
		if c == connID {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.users, userID)
		return true
	}
	r.users[userID] = conns
	return false
}

// TryAddPlayer вводит в игру идентичность подключения. Повторный вызов
// для уже играющей идентичности ничего не делает.
func (r *Registry) TryAddPlayer(ctx context.Context, connID, name string) (bool, error) {
	userID, ok := r.UserOf(connID)
	if !ok {
		return false, ErrUnknownConnection
	}
	r.gameMu.Lock()
	defer r.gameMu.Unlock()
	added, err := r.game.AddPlayer(ctx, userID, name)
	if err != nil {
		return false, fmt.Errorf("добавление игрока %s: %w", userID, err)
	}
	return added, nil
}

// RemovePlayer выводит из игры идентичность подключения; само подключение
// остаётся зарегистрированным.
func (r *Registry) RemovePlayer(ctx context.Context, connID string) (bool, error) {
	userID, ok := r.UserOf(connID)
	if !ok {
		return false, ErrUnknownConnection
	}
	r.gameMu.Lock()
	defer r.gameMu.Unlock()
	removed, err := r.game.RemovePlayer(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("удаление игрока %s: %w", userID, err)
	}
	return removed, nil
}

// UserOf идентичность подключения
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.connections[connID]
	return userID, ok
}

// Connections подключения идентичности, отсортированные
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.users[userID]...)
	sort.Strings(out)
	return out
}

// Count число активных подключений
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
