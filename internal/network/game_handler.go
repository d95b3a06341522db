package network

import (
	"context"
	"fmt"

	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/protocol"
	"github.com/annel0/arena-shooter/internal/session"
	"github.com/go-gl/mathgl/mgl64"
)

// Game операции движка, которые вызывает обработчик сообщений
type Game interface {
	SetInputs(ctx context.Context, id string, inputs map[string]bool) error
	Fire(ctx context.Context, id string, target mgl64.Vec2) error
	Revive(ctx context.Context, id string) (bool, error)
	PlayAreaDimensions() mgl64.Vec2
}

// GameHandler переводит сообщения подключения в операции игры.
type GameHandler struct {
	game     Game
	sessions *session.Registry
	log      *logging.Logger
}

// NewGameHandler создаёт обработчик.
func NewGameHandler(g Game, sessions *session.Registry) *GameHandler {
	return &GameHandler{
		game:     g,
		sessions: sessions,
		log:      logging.GetNetworkLogger(),
	}
}

// OnClientConnect привязывает подключение к пользователю. В игру он
// входит только после registerUser.
func (gh *GameHandler) OnClientConnect(_ context.Context, client *Client) error {
	gh.sessions.RegisterConnection(client.ID(), client.Identity().UserID)
	return nil
}

// OnClientDisconnect отвязывает подключение; последнее подключение
// пользователя уводит его игрока с арены.
func (gh *GameHandler) OnClientDisconnect(ctx context.Context, client *Client) {
	if _, err := gh.sessions.UnregisterConnection(ctx, client.ID()); err != nil {
		gh.log.Warn("Отключение %s: %v", client.ID(), err)
	}
}

// HandleMessage обрабатывает входящее сообщение клиента.
func (gh *GameHandler) HandleMessage(ctx context.Context, client *Client, env protocol.Envelope) error {
	userID := client.Identity().UserID

	switch env.Type {
	case protocol.MsgRegisterUser:
		name := client.Identity().Name
		if len(env.Payload) > 0 {
			req, err := protocol.DecodePayload[protocol.RegisterUser](env)
			if err != nil {
				return err
			}
			if req.Name != "" {
				name = req.Name
			}
		}
		added, err := gh.sessions.TryAddPlayer(ctx, client.ID(), name)
		if err != nil {
			return err
		}
		if added {
			gh.log.Debug("Игрок %s (%s) вошёл в арену", userID, name)
		}
		return nil

	case protocol.MsgUnregisterUser:
		_, err := gh.sessions.RemovePlayer(ctx, client.ID())
		return err

	case protocol.MsgUpdateControlState:
		req, err := protocol.DecodePayload[protocol.ControlState](env)
		if err != nil {
			return err
		}
		return gh.game.SetInputs(ctx, userID, req.Controls)

	case protocol.MsgSendProjectile:
		req, err := protocol.DecodePayload[protocol.SendProjectile](env)
		if err != nil {
			return err
		}
		return gh.game.Fire(ctx, userID, req.Target.Vec2())

	case protocol.MsgRevive:
		_, err := gh.game.Revive(ctx, userID)
		return err

	case protocol.MsgGetPlayAreaDimensions:
		return client.SendMessage(protocol.MsgPlayAreaDimensions, game.VectorOf(gh.game.PlayAreaDimensions()))

	case protocol.MsgGetID:
		return client.SendMessage(protocol.MsgID, protocol.IDReply{ID: userID})

	default:
		return fmt.Errorf("неизвестный тип сообщения: %s", env.Type)
	}
}
