package domain

// EventKind перечисляет закрытый набор типов событий монитора.
type EventKind int

const (
	// EventNewMessage: новое сообщение в любом чате.
	EventNewMessage EventKind = iota + 1
	// EventEditedMessage: сообщение было отредактировано.
	EventEditedMessage
	// EventConnectionState: изменилось состояние соединения с бэкендом.
	EventConnectionState
)

// String возвращает имя типа события для логов и метрик.
func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "new_message"
	case EventEditedMessage:
		return "edited_message"
	case EventConnectionState:
		return "connection_state"
	default:
		return "unknown"
	}
}

// Event описывает входящее событие. Message заполнен для EventNewMessage и
// EventEditedMessage, Connected заполнен для EventConnectionState.
type Event struct {
	Kind      EventKind
	Message   *Message
	Connected bool
}

// NewMessageEvent создаёт событие о новом сообщении.
func NewMessageEvent(msg Message) Event {
	return Event{Kind: EventNewMessage, Message: &msg}
}

// EditedMessageEvent создаёт событие о редактировании.
func EditedMessageEvent(msg Message) Event {
	return Event{Kind: EventEditedMessage, Message: &msg}
}

// ConnectionEvent создаёт событие о смене состояния соединения.
func ConnectionEvent(connected bool) Event {
	return Event{Kind: EventConnectionState, Connected: connected}
}
