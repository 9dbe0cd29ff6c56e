package domain

import "time"

// ChatKind описывает тип чата на стороне Telegram.
type ChatKind int

const (
	// ChatKindUnknown: тип не удалось определить.
	ChatKindUnknown ChatKind = iota
	// ChatKindPrivate: личная переписка один на один.
	ChatKindPrivate
	// ChatKindGroup: обычная (legacy) группа.
	ChatKindGroup
	// ChatKindSupergroup: супергруппа (megagroup).
	ChatKindSupergroup
	// ChatKindChannel: broadcast-канал.
	ChatKindChannel
)

// String возвращает человекочитаемое имя типа чата для логов.
func (k ChatKind) String() string {
	switch k {
	case ChatKindPrivate:
		return "private"
	case ChatKindGroup:
		return "group"
	case ChatKindSupergroup:
		return "supergroup"
	case ChatKindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// IsChannelLike сообщает, адресуется ли чат через InputChannel.
func (k ChatKind) IsChannelLike() bool {
	return k == ChatKindSupergroup || k == ChatKindChannel
}

// Chat описывает диалог, известный бэкенду.
type Chat struct {
	ID         int64
	AccessHash int64
	Kind       ChatKind
	Title      string
	Username   string
}

// Message представляет входящее сообщение в нейтральном для транспорта виде.
type Message struct {
	ID             int
	Chat           Chat
	MigratedFromID int64
	SenderID       int64
	SenderName     string
	SenderIsBot    bool
	Out            bool
	Date           time.Time
	EditDate       time.Time
	Text           string
	HasMedia       bool
	Service        bool
}

// Target описывает канал доставки уведомлений в том виде, в каком он задан в конфиге.
type Target struct {
	Raw        string
	BotChatID  int64
	Normalized string
}

// Prize описывает строку призов розыгрыша вида «название × количество».
type Prize struct {
	Name  string
	Count int
}

// PayloadKind различает формат структурированного сообщения.
type PayloadKind string

const (
	// PayloadLottery: розыгрыш с призами.
	PayloadLottery PayloadKind = "lottery"
	// PayloadRedPacket: красный конверт с суммой и количеством долей.
	PayloadRedPacket PayloadKind = "red_packet"
)

// LotteryPayload содержит поля, извлечённые из сообщения о розыгрыше.
type LotteryPayload struct {
	Kind          PayloadKind
	CreatedAt     string
	Creator       string
	Prizes        []Prize
	Keyword       string
	AutoDrawCount int
	TotalAmount   string
	Shares        int
}

// Classification описывает решение классификатора по одному сообщению.
type Classification struct {
	Forward     bool
	Retractable bool
	Reason      string
	Text        string
	Payload     *LotteryPayload
}

// Candidate описывает собственное сообщение с истёкшим сроком хранения.
type Candidate struct {
	Chat     Chat
	ID       int
	SentAt   time.Time
	SenderID int64
}

// DeleteResult описывает итог удаления набора сообщений.
type DeleteResult struct {
	Deleted int
	Failed  int
}

// Add суммирует результаты.
func (r DeleteResult) Add(other DeleteResult) DeleteResult {
	return DeleteResult{Deleted: r.Deleted + other.Deleted, Failed: r.Failed + other.Failed}
}
