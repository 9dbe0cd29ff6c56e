package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// MaxBatchSize ограничивает число id в одном вызове удаления.
const MaxBatchSize = 100

// DeleterConfig задаёт размер пачек и паузы между вызовами.
type DeleterConfig struct {
	BatchSize  int
	ChunkDelay time.Duration
	ItemDelay  time.Duration
}

// DefaultDeleterConfig возвращает значения по умолчанию.
func DefaultDeleterConfig() DeleterConfig {
	return DeleterConfig{BatchSize: MaxBatchSize, ChunkDelay: time.Second, ItemDelay: 200 * time.Millisecond}
}

// Deleter удаляет сообщения пачками, а при сбое пачки по одному.
type Deleter struct {
	backend domain.MessageDeleter
	retry   *Retrier
	cfg     DeleterConfig
	sleep   SleepFunc
	log     zerolog.Logger
}

// NewDeleter создаёт удаляльщик. sleep может быть nil.
func NewDeleter(backend domain.MessageDeleter, retry *Retrier, cfg DeleterConfig, sleep SleepFunc, log zerolog.Logger) *Deleter {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Deleter{backend: backend, retry: retry, cfg: cfg, sleep: sleep, log: log}
}

// DeleteBatch пытается удалить все ids одним вызовом. При ошибке каждый id
// удаляется отдельно, успехи и сбои считаются независимо.
func (d *Deleter) DeleteBatch(ctx context.Context, chat domain.Chat, ids []int) domain.DeleteResult {
	if len(ids) == 0 {
		return domain.DeleteResult{}
	}
	err := d.retry.Do(ctx, "delete_batch", func(ctx context.Context) error {
		return d.backend.DeleteMessages(ctx, chat, ids)
	})
	if err == nil {
		return domain.DeleteResult{Deleted: len(ids)}
	}
	if ctx.Err() != nil {
		return domain.DeleteResult{Failed: len(ids)}
	}
	d.log.Warn().Err(err).Int64("chat", chat.ID).Str("title", chat.Title).Int("count", len(ids)).Msg("cleanup: пачка не удалена, удаляем по одному")

	var res domain.DeleteResult
	for i, id := range ids {
		if i > 0 {
			if serr := d.sleep(ctx, d.cfg.ItemDelay); serr != nil {
				res.Failed += len(ids) - i
				return res
			}
		}
		err := d.retry.Do(ctx, "delete_one", func(ctx context.Context) error {
			return d.backend.DeleteMessages(ctx, chat, []int{id})
		})
		if err != nil {
			res.Failed++
			d.log.Error().Err(err).Int64("chat", chat.ID).Int("message", id).Msg("cleanup: не удалось удалить сообщение")
			continue
		}
		res.Deleted++
	}
	return res
}

// DeleteAll делит ids на пачки по BatchSize с паузой между ними.
func (d *Deleter) DeleteAll(ctx context.Context, chat domain.Chat, ids []int) domain.DeleteResult {
	var total domain.DeleteResult
	for i, chunk := range Chunks(ids, d.cfg.BatchSize) {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.ChunkDelay); err != nil {
				total.Failed += len(ids) - total.Deleted - total.Failed
				return total
			}
		}
		total = total.Add(d.DeleteBatch(ctx, chat, chunk))
	}
	return total
}

// Chunks делит ids на части не длиннее size.
func Chunks(ids []int, size int) [][]int {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]int
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
