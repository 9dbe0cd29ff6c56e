package mtproto

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"tg-monitor-bot/internal/domain"
)

const (
	historyPageLimit = 100
	dialogsPageLimit = 100
)

// Dialogs перечисляет все диалоги аккаунта и запоминает их access hash.
func (c *Client) Dialogs(ctx context.Context) ([]domain.Chat, error) {
	var (
		out        []domain.Chat
		seen       = make(map[int64]struct{})
		offsetDate int
		offsetID   int
		offsetPeer tg.InputPeerClass = &tg.InputPeerEmpty{}
	)
	for {
		res, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			OffsetPeer: offsetPeer,
			Limit:      dialogsPageLimit,
		})
		if err != nil {
			return out, classifyError(fmt.Errorf("messages.getDialogs: %w", err))
		}
		page, ok := res.AsModified()
		if !ok {
			return out, nil
		}
		ents := entitiesOf(page.GetChats(), page.GetUsers())
		c.peers.remember(ents)

		dialogs := page.GetDialogs()
		var last *tg.Dialog
		for _, d := range dialogs {
			dialog, ok := d.(*tg.Dialog)
			if !ok {
				continue
			}
			last = dialog
			chat := c.peers.chatOf(dialog.Peer, ents)
			if chat.ID == 0 {
				continue
			}
			if _, dup := seen[chat.ID]; dup {
				continue
			}
			seen[chat.ID] = struct{}{}
			out = append(out, chat)
		}

		if _, complete := res.(*tg.MessagesDialogs); complete || len(dialogs) < dialogsPageLimit || last == nil {
			return out, nil
		}
		lastChat := c.peers.chatOf(last.Peer, ents)
		nextDate := topMessageDate(page.GetMessages(), last)
		if nextDate == 0 || (nextDate == offsetDate && last.TopMessage == offsetID) {
			return out, nil
		}
		offsetDate, offsetID, offsetPeer = nextDate, last.TopMessage, inputPeer(lastChat)
	}
}

func topMessageDate(messages []tg.MessageClass, dialog *tg.Dialog) int {
	for _, m := range messages {
		switch v := m.(type) {
		case *tg.Message:
			if v.ID == dialog.TopMessage && samePeer(v.PeerID, dialog.Peer) {
				return v.Date
			}
		case *tg.MessageService:
			if v.ID == dialog.TopMessage && samePeer(v.PeerID, dialog.Peer) {
				return v.Date
			}
		}
	}
	return 0
}

func samePeer(a, b tg.PeerClass) bool {
	switch x := a.(type) {
	case *tg.PeerUser:
		y, ok := b.(*tg.PeerUser)
		return ok && x.UserID == y.UserID
	case *tg.PeerChat:
		y, ok := b.(*tg.PeerChat)
		return ok && x.ChatID == y.ChatID
	case *tg.PeerChannel:
		y, ok := b.(*tg.PeerChannel)
		return ok && x.ChannelID == y.ChannelID
	}
	return false
}

// RecentMessages читает последние limit сообщений чата, новые первыми.
func (c *Client) RecentMessages(ctx context.Context, chat domain.Chat, limit int) ([]domain.Message, error) {
	chat = c.resolve(chat)
	peer := inputPeer(chat)
	var (
		out    []domain.Message
		offset int
	)
	for len(out) < limit {
		res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offset,
			Limit:    min(historyPageLimit, limit-len(out)),
		})
		if err != nil {
			return out, classifyError(fmt.Errorf("messages.getHistory %d: %w", chat.ID, err))
		}
		msgs := c.messagesOf(res)
		if len(msgs) == 0 {
			break
		}
		out = append(out, msgs...)
		next := msgs[len(msgs)-1].ID
		if next == offset || len(msgs) < historyPageLimit {
			break
		}
		offset = next
	}
	return out, nil
}

// SearchOwn возвращает страницу сообщений текущего аккаунта в чате.
func (c *Client) SearchOwn(ctx context.Context, chat domain.Chat, page domain.HistoryPage) ([]domain.Message, error) {
	chat = c.resolve(chat)
	req := &tg.MessagesSearchRequest{
		Peer:     inputPeer(chat),
		FromID:   &tg.InputPeerSelf{},
		Filter:   &tg.InputMessagesFilterEmpty{},
		OffsetID: page.OffsetID,
		Limit:    page.Limit,
	}
	if !page.MaxDate.IsZero() {
		req.MaxDate = int(page.MaxDate.Unix())
	}
	res, err := c.api.MessagesSearch(ctx, req)
	if err != nil {
		return nil, classifyError(fmt.Errorf("messages.search %d: %w", chat.ID, err))
	}
	return c.messagesOf(res), nil
}

// DeleteMessages удаляет сообщения у всех участников.
func (c *Client) DeleteMessages(ctx context.Context, chat domain.Chat, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	chat = c.resolve(chat)
	var err error
	if chat.Kind.IsChannelLike() {
		_, err = c.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: rawPeerID(chat), AccessHash: chat.AccessHash},
			ID:      ids,
		})
	} else {
		_, err = c.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{Revoke: true, ID: ids})
	}
	if err != nil {
		return classifyError(fmt.Errorf("delete messages %d: %w", chat.ID, err))
	}
	return nil
}

// resolve дополняет чат данными из кэша (access hash, тип).
func (c *Client) resolve(chat domain.Chat) domain.Chat {
	cached, ok := c.peers.get(chat.ID)
	if !ok {
		return chat
	}
	if chat.AccessHash == 0 {
		chat.AccessHash = cached.AccessHash
	}
	if chat.Kind == domain.ChatKindUnknown {
		chat.Kind = cached.Kind
	}
	if chat.Title == "" {
		chat.Title = cached.Title
	}
	return chat
}

func (c *Client) messagesOf(res tg.MessagesMessagesClass) []domain.Message {
	page, ok := res.AsModified()
	if !ok {
		return nil
	}
	ents := entitiesOf(page.GetChats(), page.GetUsers())
	c.peers.remember(ents)
	return c.peers.convertAll(page.GetMessages(), ents, c.SelfID())
}
