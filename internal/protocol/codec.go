package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage пустой кадр
	ErrEmptyMessage = errors.New("пустое сообщение")
	// ErrEmptyPayload у сообщения нет полезной нагрузки
	ErrEmptyPayload = errors.New("пустая полезная нагрузка")
)

// Encode упаковывает payload в конверт. payload может быть nil для
// сообщений без данных.
func Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, errors.New("тип сообщения не задан")
	}
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("сериализация %s: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodeEnvelope разбирает конверт, не трогая payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("разбор конверта: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("в конверте нет типа")
	}
	return env, nil
}

// DecodePayload разбирает payload конверта в T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return out, fmt.Errorf("%s: %w", env.Type, ErrEmptyPayload)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("разбор %s: %w", env.Type, err)
	}
	return out, nil
}
