package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/usecase/expiry"
)

type fakeSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slept = append(f.slept, d)
	return ctx.Err()
}

func (f *fakeSleeper) total() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum time.Duration
	for _, d := range f.slept {
		sum += d
	}
	return sum
}

// fakeBackend хранит сообщения по чатам и эмулирует удаление.
type fakeBackend struct {
	mu        sync.Mutex
	chats     []domain.Chat
	messages  map[int64][]domain.Message
	bulkErr   error
	badIDs    map[int]bool
	failScan  map[int64]bool
	errQueue  []error
	calls     [][]int
	attempted map[int]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages:  map[int64][]domain.Message{},
		badIDs:    map[int]bool{},
		failScan:  map[int64]bool{},
		attempted: map[int]int{},
	}
}

func (f *fakeBackend) Dialogs(context.Context) ([]domain.Chat, error) {
	return f.chats, nil
}

func (f *fakeBackend) RecentMessages(_ context.Context, chat domain.Chat, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScan[chat.ID] {
		return nil, domain.ErrPeerNotFound
	}
	msgs := append([]domain.Message(nil), f.messages[chat.ID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeBackend) SearchOwn(_ context.Context, chat domain.Chat, page domain.HistoryPage) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScan[chat.ID] {
		return nil, domain.ErrPeerNotFound
	}
	msgs := append([]domain.Message(nil), f.messages[chat.ID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	var out []domain.Message
	for _, m := range msgs {
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

func (f *fakeBackend) DeleteMessages(_ context.Context, _ domain.Chat, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]int(nil), ids...))
	if len(f.errQueue) > 0 {
		err := f.errQueue[0]
		f.errQueue = f.errQueue[1:]
		if err != nil {
			return err
		}
	}
	if len(ids) > 1 && f.bulkErr != nil {
		return f.bulkErr
	}
	for _, id := range ids {
		f.attempted[id]++
		if f.badIDs[id] {
			return fmt.Errorf("MESSAGE_DELETE_FORBIDDEN: %d", id)
		}
	}
	return nil
}

func newDeleter(b *fakeBackend, sleeper *fakeSleeper) *Deleter {
	retry := NewRetrier(DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())
	return NewDeleter(b, retry, DefaultDeleterConfig(), sleeper.Sleep, zerolog.Nop())
}

func TestDeleteBatchFallsBackToSingleItems(t *testing.T) {
	b := newFakeBackend()
	b.bulkErr = errors.New("MESSAGE_ID_INVALID")
	b.badIDs[2] = true
	b.badIDs[4] = true
	sleeper := &fakeSleeper{}

	res := newDeleter(b, sleeper).DeleteBatch(context.Background(), domain.Chat{ID: 1}, []int{1, 2, 3, 4, 5})
	if res.Deleted != 3 || res.Failed != 2 {
		t.Fatalf("ожидали {3 2}, получили %+v", res)
	}
	for id := 1; id <= 5; id++ {
		if b.attempted[id] != 1 {
			t.Fatalf("id %d должен быть удалён ровно один раз, попыток: %d", id, b.attempted[id])
		}
	}
	if len(sleeper.slept) != 4 {
		t.Fatalf("между одиночными удалениями ожидали 4 паузы, получили %v", sleeper.slept)
	}
}

func TestFloodWaitSleepsExactDuration(t *testing.T) {
	b := newFakeBackend()
	b.errQueue = []error{
		&domain.FloodWaitError{Wait: 7 * time.Second, Err: errors.New("FLOOD_WAIT_7")},
		&domain.FloodWaitError{Wait: 3 * time.Second, Err: errors.New("FLOOD_WAIT_3")},
	}
	sleeper := &fakeSleeper{}

	res := newDeleter(b, sleeper).DeleteBatch(context.Background(), domain.Chat{ID: 1}, []int{1, 2})
	if res.Deleted != 2 || res.Failed != 0 {
		t.Fatalf("после FLOOD_WAIT пачка должна удалиться целиком: %+v", res)
	}
	if len(sleeper.slept) != 2 || sleeper.slept[0] != 7*time.Second || sleeper.slept[1] != 3*time.Second {
		t.Fatalf("ожидали паузы [7s 3s], получили %v", sleeper.slept)
	}
	if len(b.calls) != 3 {
		t.Fatalf("ожидали три вызова одной и той же пачки, получили %v", b.calls)
	}
}

func TestFloodWaitRetriesAreUncapped(t *testing.T) {
	calls := 0
	sleeper := &fakeSleeper{}
	r := NewRetrier(RetryPolicy{TransientRetries: 1}, sleeper.Sleep, zerolog.Nop())
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls <= 10 {
			return &domain.FloodWaitError{Wait: time.Second}
		}
		return nil
	})
	if err != nil || calls != 11 {
		t.Fatalf("FLOOD_WAIT не ограничен числом повторов: err=%v calls=%d", err, calls)
	}
	if sleeper.total() != 10*time.Second {
		t.Fatalf("ожидали суммарную паузу 10s, получили %s", sleeper.total())
	}
}

func TestTransientRetriesAreCapped(t *testing.T) {
	calls := 0
	sleeper := &fakeSleeper{}
	r := NewRetrier(RetryPolicy{TransientRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Minute}, sleeper.Sleep, zerolog.Nop())
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return domain.Transient(errors.New("timeout"))
	})
	if !domain.IsTransient(err) {
		t.Fatalf("ожидали временную ошибку, получили %v", err)
	}
	if calls != 4 {
		t.Fatalf("ожидали 1 попытку и 3 повтора, получили %d вызовов", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range want {
		if sleeper.slept[i] != d {
			t.Fatalf("пауза %d = %s, want %s", i, sleeper.slept[i], d)
		}
	}
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	r := NewRetrier(DefaultRetryPolicy(), (&fakeSleeper{}).Sleep, zerolog.Nop())
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return domain.ErrPeerNotFound
	})
	if !errors.Is(err, domain.ErrPeerNotFound) || calls != 1 {
		t.Fatalf("постоянная ошибка не повторяется: err=%v calls=%d", err, calls)
	}
}

func TestDeleteAllSplitsIntoChunks(t *testing.T) {
	b := newFakeBackend()
	sleeper := &fakeSleeper{}
	ids := make([]int, 250)
	for i := range ids {
		ids[i] = i + 1
	}
	res := newDeleter(b, sleeper).DeleteAll(context.Background(), domain.Chat{ID: 1}, ids)
	if res.Deleted != 250 {
		t.Fatalf("ожидали 250 удалений, получили %+v", res)
	}
	if len(b.calls) != 3 || len(b.calls[0]) != 100 || len(b.calls[2]) != 50 {
		t.Fatalf("ожидали пачки 100/100/50, получили %d вызовов", len(b.calls))
	}
	if len(sleeper.slept) != 2 || sleeper.slept[0] != time.Second {
		t.Fatalf("между пачками ожидали 2 паузы по 1s: %v", sleeper.slept)
	}
}

func ownMessage(id int, at time.Time) domain.Message {
	return domain.Message{ID: id, SenderID: 7, Out: true, Date: at, Text: "hello"}
}

func newOrchestrator(b *fakeBackend, sleeper *fakeSleeper) *Orchestrator {
	retry := NewRetrier(DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())
	scanner := expiry.NewScanner(WithRetry(b, retry), expiry.Config{PageSize: 100, MaxPages: 5}, zerolog.Nop())
	deleter := NewDeleter(b, retry, DefaultDeleterConfig(), sleeper.Sleep, zerolog.Nop())
	return NewOrchestrator(b, scanner, deleter, retry, OrchestratorConfig{Concurrency: 2, ChatDelay: 2 * time.Second}, sleeper.Sleep, zerolog.Nop())
}

func TestSweepHonoursExclusionsAndSkipsFailedChats(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cutoff, _ := expiry.Cutoff(now, 10)
	b := newFakeBackend()
	b.chats = []domain.Chat{{ID: 1, Title: "a"}, {ID: -1002, Title: "b", Kind: domain.ChatKindSupergroup}, {ID: 3, Title: "c"}, {ID: 4, Title: "broken"}}
	b.messages[1] = []domain.Message{ownMessage(10, cutoff.Add(-time.Minute)), ownMessage(11, now)}
	b.messages[-1002] = []domain.Message{ownMessage(20, cutoff.Add(-time.Hour))}
	b.messages[3] = []domain.Message{ownMessage(30, cutoff.Add(-time.Hour))}
	b.failScan[4] = true

	report, err := newOrchestrator(b, &fakeSleeper{}).Sweep(context.Background(), 7, cutoff, map[string]struct{}{"3": {}})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Chats != 3 || report.FailedChats != 1 {
		t.Fatalf("неожиданный счёт чатов: %+v", report)
	}
	if report.Result.Deleted != 2 || report.Candidates != 2 {
		t.Fatalf("ожидали удаление id 10 и 20: %+v", report)
	}
	if b.attempted[30] != 0 || b.attempted[11] != 0 {
		t.Fatalf("исключённый чат и свежие сообщения не трогаем: %v", b.attempted)
	}
	if report.RunID == "" {
		t.Fatalf("у прохода должен быть идентификатор")
	}
}

func TestPurgeStateMachineAndReport(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newFakeBackend()
	b.chats = []domain.Chat{{ID: 1, Title: "a"}, {ID: 2, Title: "broken"}, {ID: 3, Title: "c"}, {ID: 4, Title: "skip"}}
	b.messages[1] = []domain.Message{ownMessage(10, now), ownMessage(11, now.Add(-time.Hour))}
	b.messages[3] = []domain.Message{ownMessage(30, now)}
	b.messages[4] = []domain.Message{ownMessage(40, now)}
	b.failScan[2] = true
	sleeper := &fakeSleeper{}

	var states []PurgeState
	run := NewPurgeRun(zerolog.Nop(), func(s PurgeState, _ *domain.Chat) { states = append(states, s) })
	report, err := newOrchestrator(b, sleeper).Purge(context.Background(), run, 7, PurgeOptions{All: true, Exclude: map[string]struct{}{"4": {}}})
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(report.Chats) != 3 || report.FailedChats() != 1 {
		t.Fatalf("ожидали 3 чата, один с ошибкой: %+v", report)
	}
	if report.Total.Deleted != 3 || report.Found != 3 {
		t.Fatalf("неожиданный итог: %+v", report)
	}
	if report.Chats[1].Result.Deleted != 0 {
		t.Fatalf("упавший чат считается как 0 удалённых")
	}
	want := []PurgeState{StateEnumerating, StateFetching, StateDeleting, StateFetching, StateChatFailed, StateFetching, StateDeleting, StateReporting}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
	chatDelays := 0
	for _, d := range sleeper.slept {
		if d == 2*time.Second {
			chatDelays++
		}
	}
	if chatDelays != 2 {
		t.Fatalf("между тремя чатами ожидали 2 паузы, получили %v", sleeper.slept)
	}
}

func TestPurgeDryRunAndOnly(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newFakeBackend()
	b.chats = []domain.Chat{{ID: -1001, Title: "a", Kind: domain.ChatKindChannel}, {ID: 2, Title: "b"}}
	b.messages[-1001] = []domain.Message{ownMessage(1, now), ownMessage(2, now)}
	b.messages[2] = []domain.Message{ownMessage(3, now)}

	orch := newOrchestrator(b, &fakeSleeper{})
	report, err := orch.Purge(context.Background(), NewPurgeRun(zerolog.Nop(), nil), 7, PurgeOptions{Only: map[string]struct{}{"1": {}}, DryRun: true})
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(report.Chats) != 1 || report.Found != 2 || report.Total.Deleted != 0 {
		t.Fatalf("dry-run должен лишь посчитать сообщения выбранного чата: %+v", report)
	}
	if len(b.calls) != 0 {
		t.Fatalf("dry-run не удаляет: %v", b.calls)
	}

	if _, err := orch.Purge(context.Background(), NewPurgeRun(zerolog.Nop(), nil), 7, PurgeOptions{}); !errors.Is(err, ErrNoChatsSelected) {
		t.Fatalf("без --all и --only ожидали ErrNoChatsSelected, получили %v", err)
	}
}
