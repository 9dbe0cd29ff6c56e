package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
)

// RetractResult описывает итог одного срабатывания отзыва.
type RetractResult struct {
	Triggered bool
	Trigger   string
	Deleted   int
	Failed    int
}

// Retractor удаляет ранее отправленные уведомления по ключевым словам отзыва.
type Retractor struct {
	sender   domain.Sender
	record   *DispatchRecord
	triggers []string
	targets  []domain.Target
	log      zerolog.Logger
}

// NewRetractor создаёт движок отзыва. Пустые триггеры игнорируются.
func NewRetractor(sender domain.Sender, record *DispatchRecord, triggers []string, targets []domain.Target, log zerolog.Logger) *Retractor {
	clean := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t != "" {
			clean = append(clean, t)
		}
	}
	return &Retractor{sender: sender, record: record, triggers: clean, targets: targets, log: log}
}

// Match возвращает первый триггер, который буквально входит в текст.
func (r *Retractor) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, t := range r.triggers {
		if strings.Contains(text, t) {
			return t, true
		}
	}
	return "", false
}

// MaybeRetract при совпадении триггера удаляет все записанные уведомления в
// каждом целевом канале и очищает записи.
func (r *Retractor) MaybeRetract(ctx context.Context, text string) RetractResult {
	trigger, ok := r.Match(text)
	if !ok {
		return RetractResult{}
	}
	res := RetractResult{Triggered: true, Trigger: trigger}
	for _, target := range r.targets {
		ids := r.record.Take(target.Normalized)
		if len(ids) == 0 {
			continue
		}
		deleted, failed := r.retractTarget(ctx, target, ids)
		res.Deleted += deleted
		res.Failed += failed
	}
	metrics.AddRetracted(res.Deleted, res.Failed)
	r.log.Info().Str("trigger", trigger).Int("deleted", res.Deleted).Int("failed", res.Failed).Msg("notify: уведомления отозваны")
	return res
}

func (r *Retractor) retractTarget(ctx context.Context, target domain.Target, ids []int) (int, int) {
	if bulk, ok := r.sender.(domain.BulkSender); ok {
		err := bulk.DeleteMany(ctx, target, ids)
		if err == nil {
			return len(ids), 0
		}
		r.log.Warn().Err(err).Str("target", target.Raw).Int("count", len(ids)).Msg("notify: массовое удаление не удалось, удаляем по одному")
	}
	deleted, failed := 0, 0
	for _, id := range ids {
		if err := r.sender.Delete(ctx, target, id); err != nil {
			failed++
			r.log.Error().Err(err).Str("target", target.Raw).Int("message", id).Msg("notify: не удалось удалить уведомление")
			continue
		}
		deleted++
	}
	return deleted, failed
}
