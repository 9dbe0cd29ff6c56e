package dedup

import (
	"sync"
	"time"

	"tg-monitor-bot/internal/domain"
)

// DefaultWindow используется, если окно не задано или задано неположительным.
const DefaultWindow = 60 * time.Minute

type entry struct {
	firstSeenAt time.Time
	payload     string
}

// Store хранит отпечатки событий в памяти в пределах окна.
type Store struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]entry
}

var _ domain.Deduplicator = (*Store)(nil)

// NewStore создаёт хранилище. Если now равен nil, используется time.Now.
func NewStore(window time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{window: SafeWindow(window), now: now, entries: make(map[string]entry)}
}

// SafeWindow возвращает рабочее окно дедупликации.
func SafeWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return DefaultWindow
	}
	return window
}

// Window возвращает действующее окно.
func (s *Store) Window() time.Duration { return s.window }

// ShouldProcess возвращает false, если отпечаток уже встречался в окне.
// Запись старше окна считается отсутствующей, даже если sweep ещё не прошёл.
func (s *Store) ShouldProcess(fingerprint, payload string) bool {
	if fingerprint == "" {
		return true
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[fingerprint]; ok && now.Sub(e.firstSeenAt) <= s.window {
		return false
	}
	s.entries[fingerprint] = entry{firstSeenAt: now, payload: payload}
	return true
}

// Sweep удаляет записи, чей возраст превысил window.
func (s *Store) Sweep(window time.Duration) int {
	window = SafeWindow(window)
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.firstSeenAt) > window {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len возвращает число записей.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Payload возвращает сохранённое содержимое записи.
func (s *Store) Payload(fingerprint string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fingerprint]
	return e.payload, ok
}
