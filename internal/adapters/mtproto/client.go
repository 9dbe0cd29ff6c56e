package mtproto

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// Options задаёт параметры подключения MTProto.
type Options struct {
	APIID   int
	APIHash string
	Session session.Storage
	// RPS ограничивает частоту всех RPC, 0 снимает ограничение.
	RPS float64
	// Handler получает события апдейтов. Может быть nil для одноразовых команд.
	Handler domain.EventHandler
}

// Client реализует бэкенд на gotd.
type Client struct {
	client    *telegram.Client
	api       *tg.Client
	handler   domain.EventHandler
	peers     *peerCache
	selfID    atomic.Int64
	connected atomic.Bool
	log       zerolog.Logger
}

var _ domain.Backend = (*Client)(nil)

// New создаёт клиента. Подключение происходит в Run.
func New(opts Options, log zerolog.Logger) *Client {
	c := &Client{handler: opts.Handler, peers: newPeerCache(), log: log}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		return c.emit(ctx, domain.EventNewMessage, u.Message, e)
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return c.emit(ctx, domain.EventNewMessage, u.Message, e)
	})
	dispatcher.OnEditMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditMessage) error {
		return c.emit(ctx, domain.EventEditedMessage, u.Message, e)
	})
	dispatcher.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditChannelMessage) error {
		return c.emit(ctx, domain.EventEditedMessage, u.Message, e)
	})

	updates := telegram.UpdateHandlerFunc(func(ctx context.Context, u tg.UpdatesClass) error {
		if short, ok := u.(*tg.UpdateShortChatMessage); ok {
			return c.emitShort(ctx, short)
		}
		return dispatcher.Handle(ctx, u)
	})

	c.client = telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		SessionStorage: opts.Session,
		UpdateHandler:  updates,
		Middlewares:    []telegram.Middleware{limitAndObserve(newLimiter(opts.RPS))},
		OnDead:         c.onDead,
	})
	c.api = c.client.API()
	return c
}

// SelfID возвращает id текущего аккаунта; известен после подключения.
func (c *Client) SelfID() int64 { return c.selfID.Load() }

// Run подключается, проверяет авторизацию и выполняет fn. Соединение
// закрывается после возврата fn.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("mtproto: статус авторизации: %w", err)
		}
		if !status.Authorized {
			return ErrNotAuthorized
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("mtproto: получение профиля: %w", err)
		}
		c.selfID.Store(self.ID)
		c.peers.put(userChat(self))
		c.log.Info().Int64("self", self.ID).Str("username", self.Username).Msg("mtproto: подключено")
		c.setConnected(ctx, true)
		defer c.setConnected(context.WithoutCancel(ctx), false)
		return fn(ctx)
	})
}

func (c *Client) onDead() {
	c.log.Warn().Msg("mtproto: соединение потеряно")
	c.setConnected(context.Background(), false)
}

func (c *Client) setConnected(ctx context.Context, connected bool) {
	if c.connected.Swap(connected) == connected {
		return
	}
	c.dispatch(ctx, domain.ConnectionEvent(connected))
}

func (c *Client) emit(ctx context.Context, kind domain.EventKind, raw tg.MessageClass, ents tg.Entities) error {
	c.setConnected(ctx, true)
	msg, ok := c.peers.convert(raw, ents, c.SelfID())
	if !ok {
		return nil
	}
	if kind == domain.EventEditedMessage {
		c.dispatch(ctx, domain.EditedMessageEvent(msg))
		return nil
	}
	c.dispatch(ctx, domain.NewMessageEvent(msg))
	return nil
}

func (c *Client) emitShort(ctx context.Context, u *tg.UpdateShortChatMessage) error {
	c.setConnected(ctx, true)
	chat, ok := c.peers.get(GroupChatID(u.ChatID))
	if !ok {
		chat = domain.Chat{ID: GroupChatID(u.ChatID), Kind: domain.ChatKindGroup}
	}
	msg := domain.Message{
		ID:       u.ID,
		Chat:     chat,
		SenderID: u.FromID,
		Out:      u.Out,
		Date:     time.Unix(int64(u.Date), 0),
		Text:     u.Message,
	}
	if sender, ok := c.peers.get(u.FromID); ok {
		msg.SenderName = sender.Title
	}
	c.dispatch(ctx, domain.NewMessageEvent(msg))
	return nil
}

func (c *Client) dispatch(ctx context.Context, ev domain.Event) {
	if c.handler == nil {
		return
	}
	if err := c.handler.Handle(ctx, ev); err != nil {
		c.log.Error().Err(err).Str("event", ev.Kind.String()).Msg("mtproto: ошибка обработки события")
	}
}
