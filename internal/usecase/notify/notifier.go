package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/adapters/telegram"
	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
)

// Notifier рассылает совпадения по целевым каналам и ведёт журнал отправок.
type Notifier struct {
	sender domain.Sender
	record *DispatchRecord
	limit  int
	log    zerolog.Logger
}

// NewNotifier создаёт рассыльщик. Журнал принадлежит вызывающей стороне.
func NewNotifier(sender domain.Sender, record *DispatchRecord, log zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, record: record, limit: telegram.MessageLimit, log: log}
}

// WithSplitLimit задаёт максимальную длину одной части уведомления.
func (n *Notifier) WithSplitLimit(limit int) *Notifier {
	n.limit = limit
	return n
}

// Notify отправляет уведомление в каждую цель независимо и возвращает число
// целей, получивших все части. Ошибка одной цели не влияет на другие.
func (n *Notifier) Notify(ctx context.Context, msg domain.Message, res domain.Classification, targets []domain.Target) int {
	parts := telegram.SplitHTML(FormatNotification(msg, res), n.limit)
	if len(parts) == 0 || len(targets) == 0 {
		return 0
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target domain.Target) {
			defer wg.Done()
			if n.deliver(ctx, target, parts, msg) {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()

	metrics.AddNotifications(success, len(targets)-success)
	return success
}

func (n *Notifier) deliver(ctx context.Context, target domain.Target, parts []string, msg domain.Message) bool {
	for i, part := range parts {
		id, err := n.sender.Send(ctx, target, part)
		if err != nil {
			n.log.Error().Err(err).
				Str("target", target.Raw).
				Int64("chat", msg.Chat.ID).
				Int("message", msg.ID).
				Int("part", i).
				Msg("notify: не удалось отправить уведомление")
			return false
		}
		n.record.Append(target.Normalized, id)
	}
	n.log.Debug().Str("target", target.Raw).Int64("chat", msg.Chat.ID).Int("message", msg.ID).Int("parts", len(parts)).Msg("notify: уведомление отправлено")
	return true
}
