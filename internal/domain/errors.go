package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransient помечает временные ошибки бэкенда (таймауты, 5xx).
	ErrTransient = errors.New("transient backend error")
	// ErrPeerNotFound возвращается, когда чат или пользователь не резолвится.
	ErrPeerNotFound = errors.New("peer not resolved")
	// ErrUnsupported возвращается для операций, которые транспорт не поддерживает.
	ErrUnsupported = errors.New("operation not supported")
)

// FloodWaitError возвращается, когда бэкенд требует подождать Wait перед повтором.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s: %v", e.Wait, e.Err)
}

func (e *FloodWaitError) Unwrap() error { return e.Err }

// AsFloodWait извлекает требуемую паузу из цепочки ошибок.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}

// Transient оборачивает ошибку как временную.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient сообщает, имеет ли смысл повторять вызов с бэкоффом.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
