package classify

import (
	"strings"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// Причины решений классификатора; используются в логах и метриках.
const (
	ReasonForward      = "forward"
	ReasonPrivate      = "private_chat"
	ReasonNoChatID     = "no_chat_id"
	ReasonDenied       = "denied"
	ReasonOwnMessage   = "own_message"
	ReasonNotMonitored = "not_monitored"
	ReasonEmpty        = "empty"
	ReasonNoKeyword    = "no_keyword"
	ReasonDuplicate    = "duplicate"
)

// mediaPlaceholder подставляется вместо текста у медиа без подписи.
const mediaPlaceholder = "[медиа]"

// Identity содержит собственные идентификаторы аккаунта и бота уведомлений.
type Identity struct {
	SelfID int64
	BotID  int64
}

// Classifier решает, пересылать ли входящее сообщение.
type Classifier struct {
	rules Rules
	self  Identity
	dedup domain.Deduplicator
	sent  SentFunc
	log   zerolog.Logger
}

// SentFunc сообщает, было ли сообщение id в чате chat отправлено монитором.
type SentFunc func(chat string, id int) bool

// NewClassifier создаёт классификатор. Хранилище дедупликации принадлежит
// вызывающей стороне.
func NewClassifier(rules Rules, self Identity, dedup domain.Deduplicator, log zerolog.Logger) *Classifier {
	return &Classifier{rules: rules, self: self, dedup: dedup, log: log}
}

// WithSentLookup подключает проверку собственных уведомлений в каналах
// доставки.
func (c *Classifier) WithSentLookup(sent SentFunc) *Classifier {
	c.sent = sent
	return c
}

// Rules возвращает действующий набор правил.
func (c *Classifier) Rules() Rules { return c.rules }

// Classify применяет правила по порядку; первое сработавшее решает исход.
// fingerprint используется как ключ дедупликации события.
func (c *Classifier) Classify(msg domain.Message, fingerprint string) domain.Classification {
	if msg.Chat.Kind == domain.ChatKindPrivate {
		return domain.Classification{Reason: ReasonPrivate}
	}

	chatID := domain.NormalizeID(msg.Chat.ID)
	if chatID == "" {
		return domain.Classification{Reason: ReasonNoChatID}
	}
	migratedFrom := domain.NormalizeID(msg.MigratedFromID)
	if c.rules.Denied(chatID) || c.rules.Denied(migratedFrom) {
		return domain.Classification{Reason: ReasonDenied}
	}

	text := displayText(msg)
	res := domain.Classification{Text: text}

	if c.rules.NotifyChannel(chatID) {
		res.Retractable = true
		if c.isOwn(msg) || c.isOwnPost(chatID, msg) {
			res.Reason = ReasonOwnMessage
			return res
		}
	}

	if !c.rules.Monitored(chatID, migratedFrom) {
		res.Reason = ReasonNotMonitored
		return res
	}
	res.Retractable = true

	if text == "" {
		c.log.Warn().Int64("chat", msg.Chat.ID).Int("message", msg.ID).Msg("classify: сообщение без текста и медиа пропущено")
		res.Reason = ReasonEmpty
		return res
	}

	if _, ok := c.rules.MatchKeywords(domain.NormalizeID(msg.SenderID), text); !ok {
		res.Reason = ReasonNoKeyword
		return res
	}

	if c.dedup != nil && !c.dedup.ShouldProcess(fingerprint, truncate(text, 256)) {
		c.log.Debug().Str("fingerprint", fingerprint).Str("chat_title", msg.Chat.Title).Msg("classify: повтор в окне дедупликации")
		res.Reason = ReasonDuplicate
		return res
	}

	res.Forward = true
	res.Reason = ReasonForward
	res.Payload = ExtractLottery(text, c.rules.Lottery())
	return res
}

func (c *Classifier) isOwn(msg domain.Message) bool {
	if msg.Out {
		return true
	}
	if msg.SenderID == 0 {
		return false
	}
	return msg.SenderID == c.self.SelfID || (c.self.BotID != 0 && msg.SenderID == c.self.BotID)
}

func displayText(msg domain.Message) string {
	text := strings.TrimSpace(msg.Text)
	if text != "" {
		return text
	}
	if msg.HasMedia {
		return mediaPlaceholder
	}
	return ""
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// isOwnPost распознаёт уведомления в канале доставки: пост канала без
// from_id подписан самим каналом, а отправленные id есть в журнале рассылки.
func (c *Classifier) isOwnPost(chatID string, msg domain.Message) bool {
	if msg.Chat.Kind == domain.ChatKindChannel && msg.SenderID == msg.Chat.ID {
		return true
	}
	return c.sent != nil && c.sent(chatID, msg.ID)
}
