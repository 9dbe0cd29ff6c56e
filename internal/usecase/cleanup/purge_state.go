package cleanup

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// PurgeState описывает состояние полной очистки.
type PurgeState int

const (
	StateIdle PurgeState = iota
	StateConnecting
	StateEnumerating
	StateFetching
	StateDeleting
	StateChatFailed
	StateReporting
	StateClosing
	StateDone
)

func (s PurgeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateEnumerating:
		return "enumerating"
	case StateFetching:
		return "fetching"
	case StateDeleting:
		return "deleting"
	case StateChatFailed:
		return "chat_failed"
	case StateReporting:
		return "reporting"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// PurgeRun отслеживает переходы одной полной очистки.
type PurgeRun struct {
	ID      string
	state   PurgeState
	log     zerolog.Logger
	onState func(PurgeState, *domain.Chat)
}

// NewPurgeRun создаёт запуск в состоянии Idle. onState может быть nil.
func NewPurgeRun(log zerolog.Logger, onState func(PurgeState, *domain.Chat)) *PurgeRun {
	id := uuid.NewString()
	return &PurgeRun{ID: id, state: StateIdle, log: log.With().Str("run", id).Logger(), onState: onState}
}

// State возвращает текущее состояние.
func (r *PurgeRun) State() PurgeState { return r.state }

// Enter переводит запуск в состояние верхнего уровня.
func (r *PurgeRun) Enter(state PurgeState) {
	r.transition(state, nil)
}

// EnterChat переводит запуск в состояние обработки конкретного чата.
func (r *PurgeRun) EnterChat(state PurgeState, chat domain.Chat) {
	r.transition(state, &chat)
}

func (r *PurgeRun) transition(state PurgeState, chat *domain.Chat) {
	ev := r.log.Debug().Str("from", r.state.String()).Str("to", state.String())
	if chat != nil {
		ev = ev.Int64("chat", chat.ID).Str("title", chat.Title)
	}
	ev.Msg("purge: смена состояния")
	r.state = state
	if r.onState != nil {
		r.onState(state, chat)
	}
}
