package mtproto

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tg-monitor-bot/internal/domain"
)

func TestChatIDConversions(t *testing.T) {
	if got := ChannelChatID(1234567890); got != -1001234567890 {
		t.Fatalf("ChannelChatID = %d", got)
	}
	chat := domain.Chat{ID: -1001234567890, Kind: domain.ChatKindSupergroup}
	if raw := rawPeerID(chat); raw != 1234567890 {
		t.Fatalf("rawPeerID(channel) = %d", raw)
	}
	if raw := rawPeerID(domain.Chat{ID: -42, Kind: domain.ChatKindGroup}); raw != 42 {
		t.Fatalf("rawPeerID(group) = %d", raw)
	}
	if domain.NormalizeID(ChannelChatID(777)) != "777" {
		t.Fatalf("id канала должен нормализоваться к исходному")
	}
}

func TestConvertChannelMessage(t *testing.T) {
	p := newPeerCache()
	ents := tg.Entities{
		Users:    map[int64]*tg.User{10: {ID: 10, FirstName: "Alice", Bot: false}},
		Chats:    map[int64]*tg.Chat{},
		Channels: map[int64]*tg.Channel{555: {ID: 555, AccessHash: 99, Title: "Lotto", Megagroup: true, Username: "lotto"}},
	}
	raw := &tg.Message{
		ID:      7,
		PeerID:  &tg.PeerChannel{ChannelID: 555},
		FromID:  &tg.PeerUser{UserID: 10},
		Date:    1_700_000_000,
		Message: "开奖",
	}
	msg, ok := p.convert(raw, ents, 1)
	if !ok {
		t.Fatalf("ожидали сообщение")
	}
	if msg.Chat.ID != -1000000000555 || msg.Chat.Kind != domain.ChatKindSupergroup || msg.Chat.AccessHash != 99 {
		t.Fatalf("unexpected chat: %+v", msg.Chat)
	}
	if msg.SenderID != 10 || msg.SenderName != "Alice" || msg.Text != "开奖" || !msg.Date.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if cached, ok := p.get(msg.Chat.ID); !ok || cached.AccessHash != 99 {
		t.Fatalf("чат должен попасть в кэш")
	}
}

func TestConvertLearnsMigration(t *testing.T) {
	p := newPeerCache()
	ents := tg.Entities{Channels: map[int64]*tg.Channel{555: {ID: 555, Megagroup: true}}}
	service := &tg.MessageService{
		ID:     1,
		PeerID: &tg.PeerChannel{ChannelID: 555},
		Action: &tg.MessageActionChannelMigrateFrom{Title: "old", ChatID: 4985438208},
	}
	if msg, ok := p.convert(service, ents, 1); !ok || !msg.Service {
		t.Fatalf("служебное сообщение должно помечаться Service")
	}
	msg, _ := p.convert(&tg.Message{ID: 2, PeerID: &tg.PeerChannel{ChannelID: 555}, Message: "hi"}, ents, 1)
	if msg.MigratedFromID != -4985438208 {
		t.Fatalf("ожидали старый id группы, получили %d", msg.MigratedFromID)
	}
}

func TestConvertOutgoingWithoutFrom(t *testing.T) {
	p := newPeerCache()
	msg, _ := p.convert(&tg.Message{ID: 3, Out: true, PeerID: &tg.PeerChat{ChatID: 42}, Message: "x"}, tg.Entities{}, 77)
	if msg.SenderID != 77 || msg.Chat.ID != -42 || msg.Chat.Kind != domain.ChatKindGroup {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestClassifyError(t *testing.T) {
	flood := tgerr.New(420, "FLOOD_WAIT_12")
	if wait, ok := domain.AsFloodWait(classifyError(flood)); !ok || wait != 12*time.Second {
		t.Fatalf("FLOOD_WAIT должен превращаться в FloodWaitError: %v %v", wait, ok)
	}
	if !domain.IsTransient(classifyError(tgerr.New(500, "INTERNAL"))) {
		t.Fatalf("5xx должна считаться временной ошибкой")
	}
	if !errors.Is(classifyError(fmt.Errorf("wrap: %w", tgerr.New(400, "CHANNEL_PRIVATE"))), domain.ErrPeerNotFound) {
		t.Fatalf("CHANNEL_PRIVATE должна считаться ошибкой резолва чата")
	}
	plain := tgerr.New(400, "MESSAGE_ID_INVALID")
	if got := classifyError(plain); domain.IsTransient(got) || errors.Is(got, domain.ErrPeerNotFound) {
		t.Fatalf("прочие ошибки не классифицируются: %v", got)
	}
}

func TestSentMessageID(t *testing.T) {
	if id, ok := sentMessageID(&tg.UpdateShortSentMessage{ID: 5}); !ok || id != 5 {
		t.Fatalf("short sent: %d %v", id, ok)
	}
	upd := &tg.Updates{Updates: []tg.UpdateClass{&tg.UpdateMessageID{ID: 9, RandomID: 1}}}
	if id, ok := sentMessageID(upd); !ok || id != 9 {
		t.Fatalf("updates: %d %v", id, ok)
	}
	if _, ok := sentMessageID(&tg.UpdatesTooLong{}); ok {
		t.Fatalf("id не должен находиться")
	}
}
