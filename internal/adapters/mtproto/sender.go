package mtproto

import (
	"context"
	"fmt"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"

	"tg-monitor-bot/internal/domain"
)

// ClientSender отправляет уведомления от имени аккаунта.
type ClientSender struct {
	client *Client
	sender *message.Sender
}

var _ domain.BulkSender = (*ClientSender)(nil)

// NewClientSender создаёт отправителя поверх подключённого клиента.
func NewClientSender(c *Client) *ClientSender {
	return &ClientSender{client: c, sender: message.NewSender(c.api)}
}

// Send отправляет HTML-текст и возвращает id созданного сообщения.
func (s *ClientSender) Send(ctx context.Context, target domain.Target, text string) (int, error) {
	chat, err := s.targetChat(ctx, target)
	if err != nil {
		return 0, err
	}
	res, err := s.sender.To(inputPeer(chat)).NoWebpage().StyledText(ctx, html.String(nil, text))
	if err != nil {
		return 0, classifyError(fmt.Errorf("send to %s: %w", target.Raw, err))
	}
	id, ok := sentMessageID(res)
	if !ok {
		return 0, fmt.Errorf("send to %s: id сообщения не найден в ответе", target.Raw)
	}
	return id, nil
}

// Delete удаляет одно уведомление.
func (s *ClientSender) Delete(ctx context.Context, target domain.Target, id int) error {
	return s.DeleteMany(ctx, target, []int{id})
}

// DeleteMany удаляет несколько уведомлений одним вызовом.
func (s *ClientSender) DeleteMany(ctx context.Context, target domain.Target, ids []int) error {
	chat, err := s.targetChat(ctx, target)
	if err != nil {
		return err
	}
	return s.client.DeleteMessages(ctx, chat, ids)
}

// targetChat ищет канал уведомлений в кэше и при промахе перечитывает диалоги.
func (s *ClientSender) targetChat(ctx context.Context, target domain.Target) (domain.Chat, error) {
	if chat, ok := s.lookup(target); ok {
		return chat, nil
	}
	if _, err := s.client.Dialogs(ctx); err != nil {
		return domain.Chat{}, err
	}
	if chat, ok := s.lookup(target); ok {
		return chat, nil
	}
	return domain.Chat{}, fmt.Errorf("%w: %s", domain.ErrPeerNotFound, target.Raw)
}

func (s *ClientSender) lookup(target domain.Target) (domain.Chat, bool) {
	if target.BotChatID != 0 {
		if chat, ok := s.client.peers.get(target.BotChatID); ok {
			return chat, true
		}
	}
	for _, id := range []int64{ChannelChatID(parseDigits(target.Normalized)), GroupChatID(parseDigits(target.Normalized))} {
		if chat, ok := s.client.peers.get(id); ok {
			return chat, true
		}
	}
	return domain.Chat{}, false
}

func sentMessageID(res tg.UpdatesClass) (int, bool) {
	switch u := res.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, true
	case *tg.Updates:
		return idFromUpdates(u.Updates)
	case *tg.UpdatesCombined:
		return idFromUpdates(u.Updates)
	}
	return 0, false
}

func idFromUpdates(updates []tg.UpdateClass) (int, bool) {
	for _, upd := range updates {
		switch v := upd.(type) {
		case *tg.UpdateMessageID:
			return v.ID, true
		case *tg.UpdateNewChannelMessage:
			return v.Message.GetID(), true
		case *tg.UpdateNewMessage:
			return v.Message.GetID(), true
		}
	}
	return 0, false
}

func parseDigits(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
