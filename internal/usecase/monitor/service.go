package monitor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
	"tg-monitor-bot/internal/usecase/classify"
	"tg-monitor-bot/internal/usecase/dedup"
	"tg-monitor-bot/internal/usecase/notify"
)

// Health хранит состояние соединения с бэкендом для /healthz.
type Health struct {
	connected atomic.Bool
}

// Set выставляет состояние соединения.
func (h *Health) Set(connected bool) {
	h.connected.Store(connected)
	metrics.SetConnected(connected)
}

// Connected сообщает, активно ли соединение.
func (h *Health) Connected() bool { return h.connected.Load() }

// Deps содержит зависимости сервиса мониторинга.
type Deps struct {
	Classifier *classify.Classifier
	Notifier   *notify.Notifier
	Retractor  *notify.Retractor
	Record     *notify.DispatchRecord
	Targets    []domain.Target
	Identity   classify.Identity
	Health     *Health
}

// Service обрабатывает входящие события: отзыв, классификацию и рассылку.
type Service struct {
	deps Deps
	log  zerolog.Logger
}

// NewService создаёт сервис.
func NewService(deps Deps, log zerolog.Logger) *Service {
	if deps.Health == nil {
		deps.Health = &Health{}
	}
	return &Service{deps: deps, log: log}
}

// Health возвращает состояние соединения.
func (s *Service) Health() *Health { return s.deps.Health }

// Handle обрабатывает одно событие.
func (s *Service) Handle(ctx context.Context, ev domain.Event) error {
	switch ev.Kind {
	case domain.EventNewMessage:
		if ev.Message == nil {
			return fmt.Errorf("monitor: событие %s без сообщения", ev.Kind)
		}
		s.handleMessage(ctx, *ev.Message, dedup.Fingerprint(*ev.Message))
		return nil
	case domain.EventEditedMessage:
		if ev.Message == nil {
			return fmt.Errorf("monitor: событие %s без сообщения", ev.Kind)
		}
		s.handleMessage(ctx, *ev.Message, dedup.Fingerprint(*ev.Message))
		return nil
	case domain.EventConnectionState:
		s.deps.Health.Set(ev.Connected)
		if ev.Connected {
			s.log.Info().Msg("monitor: соединение установлено")
		} else {
			s.log.Warn().Msg("monitor: соединение потеряно")
		}
		return nil
	default:
		return fmt.Errorf("monitor: неизвестный тип события %d", ev.Kind)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg domain.Message, fingerprint string) {
	res := s.deps.Classifier.Classify(msg, fingerprint)
	metrics.IncClassified(res.Reason)

	if res.Retractable && s.deps.Retractor != nil && !s.isOwnNotification(msg) {
		s.deps.Retractor.MaybeRetract(ctx, msg.Text)
	}

	if !res.Forward {
		s.log.Debug().Int64("chat", msg.Chat.ID).Int("message", msg.ID).Str("reason", res.Reason).Msg("monitor: сообщение пропущено")
		return
	}
	sent := s.deps.Notifier.Notify(ctx, msg, res, s.deps.Targets)
	s.log.Info().
		Int64("chat", msg.Chat.ID).
		Str("chat_title", msg.Chat.Title).
		Int("message", msg.ID).
		Int("targets", len(s.deps.Targets)).
		Int("sent", sent).
		Msg("monitor: совпадение переслано")
}

// isOwnNotification отсекает уведомления, которые разослал сам монитор.
func (s *Service) isOwnNotification(msg domain.Message) bool {
	if s.deps.Identity.BotID != 0 && msg.SenderID == s.deps.Identity.BotID {
		return true
	}
	if s.deps.Record == nil {
		return false
	}
	return s.deps.Record.Contains(domain.NormalizeID(msg.Chat.ID), msg.ID)
}

// Gate принимает события до того, как сервис создан: пока аккаунт не
// авторизован и SelfID неизвестен, сообщения отбрасываются, а состояние
// соединения всё равно попадает в Health.
type Gate struct {
	health *Health
	svc    atomic.Pointer[Service]
}

var _ domain.EventHandler = (*Gate)(nil)

// NewGate создаёт шлюз поверх общего Health.
func NewGate(health *Health) *Gate {
	return &Gate{health: health}
}

// Attach подключает сервис; события после этого идут в него.
func (g *Gate) Attach(svc *Service) { g.svc.Store(svc) }

// Handle передаёт событие сервису или обрабатывает состояние соединения сам.
func (g *Gate) Handle(ctx context.Context, ev domain.Event) error {
	if svc := g.svc.Load(); svc != nil {
		return svc.Handle(ctx, ev)
	}
	if ev.Kind == domain.EventConnectionState {
		g.health.Set(ev.Connected)
	}
	return nil
}
