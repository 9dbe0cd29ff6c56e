package botapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
)

// API описывает часть tgbotapi.BotAPI, которой пользуется отправитель.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender доставляет уведомления через Bot API и удаляет их по одному.
type Sender struct {
	api   API
	botID int64
	log   zerolog.Logger
}

var _ domain.Sender = (*Sender)(nil)

// New создаёт отправителя по токену бота.
func New(token string, log zerolog.Logger) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("botapi: %w", err)
	}
	return &Sender{api: bot, botID: bot.Self.ID, log: log}, nil
}

// NewWithAPI оборачивает готовый клиент Bot API.
func NewWithAPI(api API, botID int64, log zerolog.Logger) *Sender {
	return &Sender{api: api, botID: botID, log: log}
}

// BotID возвращает id бота, от имени которого идут уведомления.
func (s *Sender) BotID() int64 { return s.botID }

// Send отправляет HTML-сообщение в канал.
func (s *Sender) Send(ctx context.Context, target domain.Target, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if target.BotChatID == 0 {
		return 0, fmt.Errorf("%w: %q не является числовым id чата", domain.ErrPeerNotFound, target.Raw)
	}
	msg := tgbotapi.NewMessage(target.BotChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	start := time.Now()
	sent, err := s.api.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", target.Raw, start, err)
	if err != nil {
		return 0, classifyError(err)
	}
	return sent.MessageID, nil
}

// Delete удаляет одно сообщение бота.
func (s *Sender) Delete(ctx context.Context, target domain.Target, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	resp, err := s.api.Request(tgbotapi.NewDeleteMessage(target.BotChatID, id))
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", target.Raw, start, err)
	if err != nil {
		return classifyError(err)
	}
	if resp != nil && !resp.Ok {
		return fmt.Errorf("botapi: deleteMessage %d: %s", id, resp.Description)
	}
	return nil
}

// classifyError переводит ошибки Bot API в доменную таксономию.
func classifyError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return &domain.FloodWaitError{Wait: time.Duration(apiErr.RetryAfter) * time.Second, Err: err}
		}
		if apiErr.Code >= 500 {
			return domain.Transient(err)
		}
		return err
	}
	return domain.Transient(err)
}
