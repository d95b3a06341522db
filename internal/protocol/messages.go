package protocol

import (
	"encoding/json"

	"github.com/annel0/arena-shooter/internal/game"
)

// Типы сообщений клиент → сервер
const (
	MsgRegisterUser          = "registerUser"
	MsgUnregisterUser        = "unregisterUser"
	MsgUpdateControlState    = "updateControlState"
	MsgSendProjectile        = "sendProjectile"
	MsgRevive                = "revive"
	MsgGetPlayAreaDimensions = "getPlayAreaDimensions"
	MsgGetID                 = "getId"
)

// Типы сообщений сервер → клиент
const (
	MsgGameStateReport    = "GameStateReport"
	MsgPlayAreaDimensions = "playAreaDimensions"
	MsgID                 = "id"
	MsgError              = "error"
)

// Envelope конверт любого сообщения в обе стороны.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RegisterUser payload необязателен; имя по умолчанию берётся из идентичности.
type RegisterUser struct {
	Name string `json:"name,omitempty"`
}

// ControlState состояние кнопок: ось → нажата.
type ControlState struct {
	Controls map[string]bool `json:"controls"`
}

// SendProjectile точка прицеливания в координатах арены.
type SendProjectile struct {
	Target game.Vector `json:"target"`
}

// IDReply ответ на getId
type IDReply struct {
	ID string `json:"id"`
}

// ErrorReply сообщение об ошибке обработки запроса
type ErrorReply struct {
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}
