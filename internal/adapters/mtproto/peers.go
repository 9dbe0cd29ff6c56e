package mtproto

import (
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"tg-monitor-bot/internal/domain"
)

// channelShift переводит id канала MTProto в формат Bot API (-100…).
const channelShift = 1_000_000_000_000

// ChannelChatID возвращает id канала в формате Bot API.
func ChannelChatID(channelID int64) int64 { return -(channelShift + channelID) }

// GroupChatID возвращает id обычной группы в формате Bot API.
func GroupChatID(chatID int64) int64 { return -chatID }

// rawPeerID возвращает id MTProto для чата в формате Bot API.
func rawPeerID(chat domain.Chat) int64 {
	switch {
	case chat.Kind.IsChannelLike():
		return -chat.ID - channelShift
	case chat.Kind == domain.ChatKindGroup:
		return -chat.ID
	default:
		return chat.ID
	}
}

// peerCache запоминает access hash и метаданные чатов из диалогов и апдейтов,
// а также старые id мигрировавших групп.
type peerCache struct {
	mu       sync.RWMutex
	chats    map[int64]domain.Chat
	migrated map[int64]int64
}

func newPeerCache() *peerCache {
	return &peerCache{chats: make(map[int64]domain.Chat), migrated: make(map[int64]int64)}
}

func (p *peerCache) put(chat domain.Chat) {
	if chat.ID == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.chats[chat.ID]; ok && chat.AccessHash == 0 {
		chat.AccessHash = prev.AccessHash
	}
	p.chats[chat.ID] = chat
}

func (p *peerCache) get(id int64) (domain.Chat, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	chat, ok := p.chats[id]
	return chat, ok
}

func (p *peerCache) setMigrated(channel, legacy int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.migrated[channel] = legacy
}

func (p *peerCache) migratedFrom(channel int64) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.migrated[channel]
}

// inputPeer строит InputPeer по известному чату.
func inputPeer(chat domain.Chat) tg.InputPeerClass {
	raw := rawPeerID(chat)
	switch {
	case chat.Kind.IsChannelLike():
		return &tg.InputPeerChannel{ChannelID: raw, AccessHash: chat.AccessHash}
	case chat.Kind == domain.ChatKindGroup:
		return &tg.InputPeerChat{ChatID: raw}
	default:
		return &tg.InputPeerUser{UserID: raw, AccessHash: chat.AccessHash}
	}
}

func channelChat(ch *tg.Channel) domain.Chat {
	kind := domain.ChatKindChannel
	if ch.Megagroup {
		kind = domain.ChatKindSupergroup
	}
	return domain.Chat{
		ID:         ChannelChatID(ch.ID),
		AccessHash: ch.AccessHash,
		Kind:       kind,
		Title:      ch.Title,
		Username:   ch.Username,
	}
}

func groupChat(c *tg.Chat) domain.Chat {
	return domain.Chat{ID: GroupChatID(c.ID), Kind: domain.ChatKindGroup, Title: c.Title}
}

func userChat(u *tg.User) domain.Chat {
	return domain.Chat{ID: u.ID, AccessHash: u.AccessHash, Kind: domain.ChatKindPrivate, Title: userName(u), Username: u.Username}
}

func userName(u *tg.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}

// entitiesOf собирает tg.Entities из ответа с сообщениями.
func entitiesOf(chats []tg.ChatClass, users []tg.UserClass) tg.Entities {
	ents := tg.Entities{
		Users:    make(map[int64]*tg.User),
		Chats:    make(map[int64]*tg.Chat),
		Channels: make(map[int64]*tg.Channel),
	}
	for _, c := range chats {
		switch v := c.(type) {
		case *tg.Chat:
			ents.Chats[v.ID] = v
		case *tg.Channel:
			ents.Channels[v.ID] = v
		}
	}
	for _, u := range users {
		if v, ok := u.(*tg.User); ok {
			ents.Users[v.ID] = v
		}
	}
	return ents
}

// remember кладёт все сущности ответа в кэш.
func (p *peerCache) remember(ents tg.Entities) {
	for _, ch := range ents.Channels {
		p.put(channelChat(ch))
	}
	for _, c := range ents.Chats {
		p.put(groupChat(c))
	}
	for _, u := range ents.Users {
		p.put(userChat(u))
	}
}

// chatOf находит чат по peer сообщения, сначала в сущностях, затем в кэше.
func (p *peerCache) chatOf(peer tg.PeerClass, ents tg.Entities) domain.Chat {
	switch v := peer.(type) {
	case *tg.PeerChannel:
		if ch, ok := ents.Channels[v.ChannelID]; ok {
			chat := channelChat(ch)
			p.put(chat)
			return chat
		}
		if chat, ok := p.get(ChannelChatID(v.ChannelID)); ok {
			return chat
		}
		return domain.Chat{ID: ChannelChatID(v.ChannelID), Kind: domain.ChatKindSupergroup}
	case *tg.PeerChat:
		if c, ok := ents.Chats[v.ChatID]; ok {
			chat := groupChat(c)
			p.put(chat)
			return chat
		}
		if chat, ok := p.get(GroupChatID(v.ChatID)); ok {
			return chat
		}
		return domain.Chat{ID: GroupChatID(v.ChatID), Kind: domain.ChatKindGroup}
	case *tg.PeerUser:
		if u, ok := ents.Users[v.UserID]; ok {
			chat := userChat(u)
			p.put(chat)
			return chat
		}
		if chat, ok := p.get(v.UserID); ok {
			return chat
		}
		return domain.Chat{ID: v.UserID, Kind: domain.ChatKindPrivate}
	default:
		return domain.Chat{}
	}
}

// convert переводит сообщение MTProto в доменное. selfID нужен, чтобы
// определить автора в личных чатах без from_id.
func (p *peerCache) convert(raw tg.MessageClass, ents tg.Entities, selfID int64) (domain.Message, bool) {
	switch m := raw.(type) {
	case *tg.Message:
		chat := p.chatOf(m.PeerID, ents)
		msg := domain.Message{
			ID:       m.ID,
			Chat:     chat,
			Out:      m.Out,
			Date:     time.Unix(int64(m.Date), 0),
			Text:     m.Message,
			HasMedia: m.Media != nil,
		}
		if edit, ok := m.GetEditDate(); ok {
			msg.EditDate = time.Unix(int64(edit), 0)
		}
		p.fillSender(&msg, m.FromID, ents, selfID)
		if chat.Kind.IsChannelLike() {
			msg.MigratedFromID = p.migratedFrom(chat.ID)
		}
		return msg, true
	case *tg.MessageService:
		chat := p.chatOf(m.PeerID, ents)
		if action, ok := m.Action.(*tg.MessageActionChannelMigrateFrom); ok && chat.Kind.IsChannelLike() {
			p.setMigrated(chat.ID, GroupChatID(action.ChatID))
		}
		msg := domain.Message{
			ID:      m.ID,
			Chat:    chat,
			Out:     m.Out,
			Date:    time.Unix(int64(m.Date), 0),
			Service: true,
		}
		p.fillSender(&msg, m.FromID, ents, selfID)
		return msg, true
	default:
		return domain.Message{}, false
	}
}

func (p *peerCache) fillSender(msg *domain.Message, from tg.PeerClass, ents tg.Entities, selfID int64) {
	if from == nil {
		switch {
		case msg.Out:
			msg.SenderID = selfID
		case msg.Chat.Kind == domain.ChatKindPrivate:
			msg.SenderID = msg.Chat.ID
			msg.SenderName = msg.Chat.Title
		case msg.Chat.Kind == domain.ChatKindChannel:
			msg.SenderID = msg.Chat.ID
			msg.SenderName = msg.Chat.Title
		}
		return
	}
	switch v := from.(type) {
	case *tg.PeerUser:
		msg.SenderID = v.UserID
		if u, ok := ents.Users[v.UserID]; ok {
			msg.SenderName = userName(u)
			msg.SenderIsBot = u.Bot
		}
	case *tg.PeerChannel:
		msg.SenderID = ChannelChatID(v.ChannelID)
		if ch, ok := ents.Channels[v.ChannelID]; ok {
			msg.SenderName = ch.Title
		}
	case *tg.PeerChat:
		msg.SenderID = GroupChatID(v.ChatID)
	}
}

func (p *peerCache) convertAll(raw []tg.MessageClass, ents tg.Entities, selfID int64) []domain.Message {
	out := make([]domain.Message, 0, len(raw))
	for _, m := range raw {
		if msg, ok := p.convert(m, ents, selfID); ok {
			out = append(out, msg)
		}
	}
	return out
}
