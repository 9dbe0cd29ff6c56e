package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// keyPrefix отделяет ключи дедупликации от остальных данных в Redis.
const keyPrefix = "monitor:dedup:"

// RedisDedup реализует domain.Deduplicator через Redis: ключ ставится SET NX
// с TTL, равным окну, и Redis сам удаляет устаревшие записи.
type RedisDedup struct {
	client  redis.Cmdable
	window  time.Duration
	timeout time.Duration
	log     zerolog.Logger
}

var _ domain.Deduplicator = (*RedisDedup)(nil)

// NewRedisDedup создаёт хранилище дедупликации поверх Redis.
func NewRedisDedup(client redis.Cmdable, window time.Duration, log zerolog.Logger) *RedisDedup {
	return &RedisDedup{client: client, window: window, timeout: 2 * time.Second, log: log}
}

// ShouldProcess возвращает true, если ключа ещё нет. При недоступности Redis
// событие пропускается дальше.
func (d *RedisDedup) ShouldProcess(fingerprint, payload string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ok, err := d.client.SetNX(ctx, keyPrefix+fingerprint, payload, d.window).Result()
	if err != nil {
		d.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("dedup: redis недоступен, пропускаем проверку")
		return true
	}
	return ok
}

// Sweep ничего не делает: записи истекают по TTL.
func (d *RedisDedup) Sweep(time.Duration) int { return 0 }

// Ping проверяет соединение при старте.
func (d *RedisDedup) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
