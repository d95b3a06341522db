package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс ключей
}

// RedisBoard хранит убийства в sorted set, смерти и имена в хешах.
// Несколько серверов арены могут писать в одну таблицу.
type RedisBoard struct {
	client    *redis.Client
	killsKey  string
	deathsKey string
	namesKey  string
}

// NewRedisBoard подключается к Redis и проверяет соединение.
func NewRedisBoard(ctx context.Context, cfg RedisConfig) (*RedisBoard, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "arena:leaderboard:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("подключение к Redis %s: %w", cfg.Addr, err)
	}
	return newRedisBoard(client, cfg.KeyPrefix), nil
}

func newRedisBoard(client *redis.Client, prefix string) *RedisBoard {
	return &RedisBoard{
		client:    client,
		killsKey:  prefix + "kills",
		deathsKey: prefix + "deaths",
		namesKey:  prefix + "names",
	}
}

func (b *RedisBoard) RecordDefeat(ctx context.Context, victimID, killerID string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, b.deathsKey, victimID, 1)
		// Игрок без убийств тоже должен попасть в таблицу
		pipe.ZAddNX(ctx, b.killsKey, &redis.Z{Score: 0, Member: victimID})
		if killerID != "" && killerID != victimID {
			pipe.ZIncrBy(ctx, b.killsKey, 1, killerID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("запись поражения %s: %w", victimID, err)
	}
	return nil
}

func (b *RedisBoard) SetName(ctx context.Context, playerID, name string) error {
	if name == "" {
		return nil
	}
	if err := b.client.HSet(ctx, b.namesKey, playerID, name).Err(); err != nil {
		return fmt.Errorf("имя игрока %s: %w", playerID, err)
	}
	return nil
}

func (b *RedisBoard) Top(ctx context.Context, n int) ([]Entry, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	ranked, err := b.client.ZRevRangeWithScores(ctx, b.killsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("чтение таблицы лидеров: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]string, len(ranked))
	for i, z := range ranked {
		ids[i] = fmt.Sprint(z.Member)
	}
	deaths, err := b.client.HMGet(ctx, b.deathsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("чтение смертей: %w", err)
	}
	names, err := b.client.HMGet(ctx, b.namesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("чтение имён: %w", err)
	}

	out := make([]Entry, len(ranked))
	for i, z := range ranked {
		e := Entry{PlayerID: ids[i], Name: ids[i], Kills: int64(z.Score)}
		if s, ok := deaths[i].(string); ok {
			e.Deaths, _ = strconv.ParseInt(s, 10, 64)
		}
		if s, ok := names[i].(string); ok && s != "" {
			e.Name = s
		}
		out[i] = e
	}
	sortEntries(out)
	return out, nil
}

// Close закрывает клиент Redis
func (b *RedisBoard) Close() error {
	return b.client.Close()
}
