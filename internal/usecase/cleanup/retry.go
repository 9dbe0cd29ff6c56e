package cleanup

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
)

// SleepFunc приостанавливает выполнение на d или до отмены ctx.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep реализует SleepFunc на таймере.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy задаёт повторы для временных ошибок.
type RetryPolicy struct {
	// TransientRetries задаёт, сколько раз повторять временную ошибку.
	TransientRetries int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// DefaultRetryPolicy возвращает политику по умолчанию.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{TransientRetries: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

// Retrier выполняет вызовы бэкенда с ожиданием FLOOD_WAIT и бэкоффом.
type Retrier struct {
	policy RetryPolicy
	sleep  SleepFunc
	log    zerolog.Logger
}

// NewRetrier создаёт Retrier. Если sleep равен nil, используется Sleep.
func NewRetrier(policy RetryPolicy, sleep SleepFunc, log zerolog.Logger) *Retrier {
	def := DefaultRetryPolicy()
	if policy.TransientRetries < 0 {
		policy.TransientRetries = 0
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = def.MaxBackoff
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Retrier{policy: policy, sleep: sleep, log: log}
}

func (r *Retrier) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialBackoff
	b.MaxInterval = r.policy.MaxBackoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do вызывает fn до успеха. FLOOD_WAIT выжидается ровно указанное время без
// ограничения числа повторов; временные ошибки повторяются с экспоненциальной
// паузой не более TransientRetries раз. Остальные ошибки возвращаются сразу.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := r.newBackOff()
	transient := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if wait, ok := domain.AsFloodWait(err); ok {
			metrics.ObserveFloodWait(wait)
			r.log.Warn().Str("op", op).Dur("wait", wait).Msg("cleanup: FLOOD_WAIT, ждём")
			if serr := r.sleep(ctx, wait); serr != nil {
				return serr
			}
			continue
		}

		if !domain.IsTransient(err) || transient >= r.policy.TransientRetries {
			return err
		}
		transient++
		delay := b.NextBackOff()
		r.log.Warn().Err(err).Str("op", op).Int("attempt", transient).Dur("delay", delay).Msg("cleanup: временная ошибка, повтор")
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

type retryingHistory struct {
	next  domain.HistoryReader
	retry *Retrier
}

// WithRetry оборачивает чтение истории в Retrier.
func WithRetry(next domain.HistoryReader, retry *Retrier) domain.HistoryReader {
	return &retryingHistory{next: next, retry: retry}
}

func (h *retryingHistory) RecentMessages(ctx context.Context, chat domain.Chat, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := h.retry.Do(ctx, "recent_messages", func(ctx context.Context) error {
		var err error
		out, err = h.next.RecentMessages(ctx, chat, limit)
		return err
	})
	return out, err
}

func (h *retryingHistory) SearchOwn(ctx context.Context, chat domain.Chat, page domain.HistoryPage) ([]domain.Message, error) {
	var out []domain.Message
	err := h.retry.Do(ctx, "search_own", func(ctx context.Context) error {
		var err error
		out, err = h.next.SearchOwn(ctx, chat, page)
		return err
	})
	return out, err
}

type retryingSender struct {
	next  domain.Sender
	retry *Retrier
}

type retryingBulkSender struct {
	retryingSender
	bulk domain.BulkSender
}

// WithRetrySender оборачивает отправку уведомлений в Retrier. Если next умеет
// массовое удаление, результат тоже реализует domain.BulkSender.
func WithRetrySender(next domain.Sender, retry *Retrier) domain.Sender {
	base := retryingSender{next: next, retry: retry}
	if bulk, ok := next.(domain.BulkSender); ok {
		return &retryingBulkSender{retryingSender: base, bulk: bulk}
	}
	return &base
}

func (s *retryingSender) Send(ctx context.Context, target domain.Target, html string) (int, error) {
	var id int
	err := s.retry.Do(ctx, "send", func(ctx context.Context) error {
		var err error
		id, err = s.next.Send(ctx, target, html)
		return err
	})
	return id, err
}

func (s *retryingSender) Delete(ctx context.Context, target domain.Target, id int) error {
	return s.retry.Do(ctx, "delete", func(ctx context.Context) error {
		return s.next.Delete(ctx, target, id)
	})
}

func (s *retryingBulkSender) DeleteMany(ctx context.Context, target domain.Target, ids []int) error {
	return s.retry.Do(ctx, "delete_many", func(ctx context.Context) error {
		return s.bulk.DeleteMany(ctx, target, ids)
	})
}
