package domain

import (
	"context"
	"time"
)

// DialogLister перечисляет диалоги текущего аккаунта.
type DialogLister interface {
	Dialogs(ctx context.Context) ([]Chat, error)
}

// HistoryPage задаёт параметры одной страницы поиска собственных сообщений.
type HistoryPage struct {
	MaxDate  time.Time
	OffsetID int
	Limit    int
}

// HistoryReader читает историю чата.
type HistoryReader interface {
	// RecentMessages возвращает последние limit сообщений, новые первыми.
	RecentMessages(ctx context.Context, chat Chat, limit int) ([]Message, error)
	// SearchOwn возвращает страницу сообщений, отправленных текущим аккаунтом,
	// строго старше page.MaxDate (если задан), новые первыми.
	SearchOwn(ctx context.Context, chat Chat, page HistoryPage) ([]Message, error)
}

// MessageDeleter удаляет сообщения в чате с revoke=true.
type MessageDeleter interface {
	DeleteMessages(ctx context.Context, chat Chat, ids []int) error
}

// Backend объединяет операции бэкенда, нужные для очистки истории.
type Backend interface {
	DialogLister
	HistoryReader
	MessageDeleter
}

// Sender доставляет уведомления в целевой канал.
type Sender interface {
	// Send отправляет HTML-текст и возвращает id созданного сообщения.
	Send(ctx context.Context, target Target, html string) (int, error)
	// Delete удаляет одно ранее отправленное сообщение.
	Delete(ctx context.Context, target Target, id int) error
}

// BulkSender умеет удалять несколько сообщений за один вызов.
type BulkSender interface {
	Sender
	DeleteMany(ctx context.Context, target Target, ids []int) error
}

// Deduplicator отсекает повторную обработку одного и того же события.
type Deduplicator interface {
	// ShouldProcess возвращает true при первом появлении fingerprint в окне.
	ShouldProcess(fingerprint, payload string) bool
	// Sweep удаляет записи старше window и возвращает их количество.
	Sweep(window time.Duration) int
}

// EventHandler принимает входящие события бэкенда.
type EventHandler interface {
	Handle(ctx context.Context, ev Event) error
}
