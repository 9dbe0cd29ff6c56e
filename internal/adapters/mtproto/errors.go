package mtproto

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/gotd/td/tgerr"

	"tg-monitor-bot/internal/domain"
)

// ErrNotAuthorized возвращается, если сессия не авторизована.
var ErrNotAuthorized = errors.New("mtproto: сессия не авторизована")

var peerErrors = []string{
	"PEER_ID_INVALID",
	"CHANNEL_INVALID",
	"CHANNEL_PRIVATE",
	"CHAT_ID_INVALID",
	"CHAT_FORBIDDEN",
	"USER_ID_INVALID",
}

// classifyError переводит ошибку gotd в доменную таксономию.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &domain.FloodWaitError{Wait: wait, Err: err}
	}
	if rpcErr, ok := tgerr.As(err); ok {
		if rpcErr.Code >= 500 {
			return domain.Transient(err)
		}
		if rpcErr.IsOneOf(peerErrors...) {
			return fmt.Errorf("%w: %w", domain.ErrPeerNotFound, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.Transient(err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.Transient(err)
	}
	return err
}
