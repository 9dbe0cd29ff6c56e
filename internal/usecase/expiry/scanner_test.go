package expiry

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
)

const self int64 = 7

type fakeHistory struct {
	recent     []domain.Message
	own        []domain.Message
	recentErr  error
	searchErr  error
	pages      []domain.HistoryPage
	recentSeen int
}

func (f *fakeHistory) RecentMessages(_ context.Context, _ domain.Chat, limit int) ([]domain.Message, error) {
	f.recentSeen = limit
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

// SearchOwn эмулирует поиск: новые первыми, строго старше MaxDate и OffsetID.
func (f *fakeHistory) SearchOwn(_ context.Context, _ domain.Chat, page domain.HistoryPage) ([]domain.Message, error) {
	f.pages = append(f.pages, page)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	sorted := append([]domain.Message(nil), f.own...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	var out []domain.Message
	for _, m := range sorted {
		if !page.MaxDate.IsZero() && !m.Date.Before(page.MaxDate) {
			continue
		}
		if page.OffsetID > 0 && m.ID >= page.OffsetID {
			continue
		}
		out = append(out, m)
		if len(out) == page.Limit {
			break
		}
	}
	return out, nil
}

func ownText(id int, at time.Time) domain.Message {
	return domain.Message{ID: id, SenderID: self, Out: true, Date: at, Text: "msg"}
}

func TestRecentPassBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cutoff, ok := Cutoff(now, 10)
	if !ok {
		t.Fatalf("положительный возраст должен включать очистку")
	}
	h := &fakeHistory{recent: []domain.Message{
		ownText(4, now.Add(-599*time.Second)),
		ownText(3, now.Add(-600*time.Second)),
		ownText(2, now.Add(-601*time.Second)),
	}}
	s := NewScanner(h, Config{}, zerolog.Nop())

	got, err := s.Scan(context.Background(), domain.Chat{ID: 1}, self, cutoff)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("ожидали только сообщение T-601s, получили %+v", got)
	}
	if h.recentSeen != 200 {
		t.Fatalf("лимит быстрого прохода по умолчанию 200, получили %d", h.recentSeen)
	}
}

func TestRecentPassStopsAtHorizon(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cutoff, _ := Cutoff(now, 10)
	h := &fakeHistory{recent: []domain.Message{
		ownText(9, cutoff.Add(-time.Minute)),
		ownText(8, cutoff.Add(-11*time.Minute)),
		ownText(7, cutoff.Add(-12*time.Minute)),
	}}
	s := NewScanner(h, Config{Horizon: 10 * time.Minute}, zerolog.Nop())
	got, err := s.recent(context.Background(), domain.Chat{ID: 1}, self, cutoff)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != 9 {
		t.Fatalf("быстрый проход должен остановиться на горизонте: %+v", got)
	}
}

func TestScanFiltersAndMerges(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cutoff, _ := Cutoff(now, 60)
	justExpired := cutoff.Add(-time.Minute)
	old := cutoff.Add(-2 * time.Hour)

	foreign := domain.Message{ID: 20, SenderID: 99, Date: justExpired, Text: "чужое"}
	service := ownText(21, justExpired)
	service.Service = true
	empty := ownText(22, justExpired)
	empty.Text = ""
	media := ownText(23, justExpired)
	media.Text = ""
	media.HasMedia = true

	h := &fakeHistory{
		recent: []domain.Message{media, empty, service, foreign, ownText(19, justExpired)},
		own:    []domain.Message{ownText(19, justExpired), ownText(5, old), ownText(3, old)},
	}
	s := NewScanner(h, Config{PageSize: 1, MaxPages: 10}, zerolog.Nop())
	got, err := s.Scan(context.Background(), domain.Chat{ID: 1}, self, cutoff)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []int{3, 5, 19, 23}
	ids := IDs(got)
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if h.pages[0].MaxDate != cutoff.Add(-10*time.Minute) {
		t.Fatalf("поиск должен исключать сообщения моложе горизонта: %v", h.pages[0].MaxDate)
	}
}

func TestSearchRespectsPageBound(t *testing.T) {
	old := time.Unix(1_600_000_000, 0)
	h := &fakeHistory{}
	for id := 1; id <= 10; id++ {
		h.own = append(h.own, ownText(id, old))
	}
	s := NewScanner(h, Config{PageSize: 2, MaxPages: 2}, zerolog.Nop())
	got, err := s.Scan(context.Background(), domain.Chat{ID: 1}, self, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 4 || len(h.pages) != 2 {
		t.Fatalf("ожидали 2 страницы по 2 сообщения: got=%d pages=%d", len(got), len(h.pages))
	}
	if h.pages[1].OffsetID != 9 {
		t.Fatalf("вторая страница должна начинаться после id 9, offset=%d", h.pages[1].OffsetID)
	}
}

func TestScanAllIgnoresAge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	h := &fakeHistory{own: []domain.Message{ownText(1, now.Add(-time.Hour)), ownText(2, now)}}
	s := NewScanner(h, Config{PageSize: 1, MaxPages: 1}, zerolog.Nop())
	got, err := s.ScanAll(context.Background(), domain.Chat{ID: 1}, self)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("полная очистка не ограничена страницами и возрастом: %+v", got)
	}
}

func TestScanFailsOnlyWhenBothPassesFail(t *testing.T) {
	boom := errors.New("CHANNEL_PRIVATE")
	now := time.Unix(1_700_000_000, 0)
	cutoff, _ := Cutoff(now, 1)

	h := &fakeHistory{recentErr: boom, own: []domain.Message{ownText(1, cutoff.Add(-time.Hour))}}
	got, err := NewScanner(h, Config{}, zerolog.Nop()).Scan(context.Background(), domain.Chat{ID: 1}, self, cutoff)
	if err != nil || len(got) != 1 {
		t.Fatalf("поиск должен компенсировать сбой быстрого прохода: %v %+v", err, got)
	}

	h = &fakeHistory{recentErr: boom, searchErr: boom}
	if _, err := NewScanner(h, Config{}, zerolog.Nop()).Scan(context.Background(), domain.Chat{ID: 1}, self, cutoff); !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку, получили %v", err)
	}
}

func TestCutoffDisabled(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		if _, ok := Cutoff(time.Now(), minutes); ok {
			t.Fatalf("возраст %d должен отключать очистку", minutes)
		}
	}
}
