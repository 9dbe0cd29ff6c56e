package expiry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

// Config задаёт границы двух проходов сканера.
type Config struct {
	// RecentLimit задаёт, сколько последних сообщений читает быстрый проход.
	RecentLimit int
	// Horizon задаёт, насколько глубже cutoff заходит быстрый проход.
	Horizon time.Duration
	// MaxPages ограничивает число страниц поиска, 0 снимает ограничение.
	MaxPages int
	// PageSize задаёт размер страницы поиска собственных сообщений.
	PageSize int
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{RecentLimit: 200, Horizon: 10 * time.Minute, MaxPages: 5, PageSize: 100}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RecentLimit <= 0 {
		c.RecentLimit = def.RecentLimit
	}
	if c.Horizon <= 0 {
		c.Horizon = def.Horizon
	}
	if c.MaxPages < 0 {
		c.MaxPages = def.MaxPages
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	return c
}

// Cutoff возвращает момент, раньше которого сообщения считаются просроченными.
// Неположительный возраст отключает очистку: ok == false.
func Cutoff(now time.Time, autoDeleteMinutes int) (time.Time, bool) {
	if autoDeleteMinutes <= 0 {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(autoDeleteMinutes) * time.Minute), true
}

// Expired сообщает, просрочено ли сообщение. Граница строгая.
func Expired(sentAt, cutoff time.Time) bool {
	return sentAt.Before(cutoff)
}

// Scanner ищет собственные сообщения, у которых истёк срок хранения.
type Scanner struct {
	history domain.HistoryReader
	cfg     Config
	log     zerolog.Logger
}

// NewScanner создаёт сканер.
func NewScanner(history domain.HistoryReader, cfg Config, log zerolog.Logger) *Scanner {
	return &Scanner{history: history, cfg: cfg.withDefaults(), log: log}
}

// Scan объединяет быстрый проход по последним сообщениям и постраничный поиск
// по истории. Результат отсортирован по id и не содержит повторов.
func (s *Scanner) Scan(ctx context.Context, chat domain.Chat, selfID int64, cutoff time.Time) ([]domain.Candidate, error) {
	recent, recentErr := s.recent(ctx, chat, selfID, cutoff)
	if recentErr != nil {
		s.log.Warn().Err(recentErr).Int64("chat", chat.ID).Str("title", chat.Title).Msg("expiry: быстрый проход не удался")
	}

	horizon := cutoff.Add(-s.cfg.Horizon)
	historical, histErr := s.search(ctx, chat, selfID, horizon, s.cfg.MaxPages, func(m domain.Message) bool {
		return Expired(m.Date, cutoff)
	})
	if histErr != nil {
		s.log.Warn().Err(histErr).Int64("chat", chat.ID).Str("title", chat.Title).Msg("expiry: поиск по истории не удался")
	}
	if recentErr != nil && histErr != nil {
		return nil, fmt.Errorf("scan chat %d: %w", chat.ID, recentErr)
	}

	return merge(recent, historical), nil
}

// ScanAll возвращает все собственные сообщения чата без учёта возраста.
func (s *Scanner) ScanAll(ctx context.Context, chat domain.Chat, selfID int64) ([]domain.Candidate, error) {
	all, err := s.search(ctx, chat, selfID, time.Time{}, 0, func(domain.Message) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("scan chat %d: %w", chat.ID, err)
	}
	return merge(all), nil
}

// recent читает последние сообщения, новые первыми, и останавливается, как
// только сообщения становятся старше cutoff на величину горизонта.
func (s *Scanner) recent(ctx context.Context, chat domain.Chat, selfID int64, cutoff time.Time) ([]domain.Candidate, error) {
	msgs, err := s.history.RecentMessages(ctx, chat, s.cfg.RecentLimit)
	if err != nil {
		return nil, err
	}
	floor := cutoff.Add(-s.cfg.Horizon)
	var out []domain.Candidate
	for _, m := range msgs {
		if !Expired(m.Date, cutoff) {
			continue
		}
		if m.Date.Before(floor) {
			break
		}
		if deletable(m, selfID) {
			out = append(out, candidate(chat, m))
		}
	}
	return out, nil
}

func (s *Scanner) search(ctx context.Context, chat domain.Chat, selfID int64, maxDate time.Time, maxPages int, keep func(domain.Message) bool) ([]domain.Candidate, error) {
	var (
		out    []domain.Candidate
		offset int
	)
	for page := 0; maxPages == 0 || page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msgs, err := s.history.SearchOwn(ctx, chat, domain.HistoryPage{MaxDate: maxDate, OffsetID: offset, Limit: s.cfg.PageSize})
		if err != nil {
			return out, err
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			if deletable(m, selfID) && keep(m) {
				out = append(out, candidate(chat, m))
			}
		}
		last := msgs[len(msgs)-1].ID
		if last <= 0 || last == offset || len(msgs) < s.cfg.PageSize {
			break
		}
		offset = last
	}
	return out, nil
}

// deletable оставляет собственные несервисные сообщения с текстом или медиа.
func deletable(m domain.Message, selfID int64) bool {
	if m.Service {
		return false
	}
	if !m.Out && (selfID == 0 || m.SenderID != selfID) {
		return false
	}
	return m.Text != "" || m.HasMedia
}

func candidate(chat domain.Chat, m domain.Message) domain.Candidate {
	return domain.Candidate{Chat: chat, ID: m.ID, SentAt: m.Date, SenderID: m.SenderID}
}

func merge(sets ...[]domain.Candidate) []domain.Candidate {
	seen := make(map[int]struct{})
	var out []domain.Candidate
	for _, set := range sets {
		for _, c := range set {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs возвращает id кандидатов в исходном порядке.
func IDs(candidates []domain.Candidate) []int {
	ids := make([]int, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
