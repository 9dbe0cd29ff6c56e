package dedup

import (
	"testing"
	"time"

	"tg-monitor-bot/internal/domain"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestShouldProcessWithinWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	window := 10 * time.Minute
	store := NewStore(window, clock.Now)

	if !store.ShouldProcess("100:55", "первое") {
		t.Fatal("первое появление должно приниматься")
	}
	for _, offset := range []time.Duration{0, time.Second, 5 * time.Minute, window - time.Second} {
		at := &fakeClock{now: clock.now.Add(offset)}
		store.now = at.Now
		if store.ShouldProcess("100:55", "повтор") {
			t.Fatalf("повтор через %s должен отклоняться", offset)
		}
	}
	store.now = (&fakeClock{now: clock.now.Add(window + time.Second)}).Now
	if !store.ShouldProcess("100:55", "снова") {
		t.Fatal("после окна отпечаток должен приниматься снова")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewStore(time.Minute, clock.Now)
	store.ShouldProcess("a", "")
	clock.Advance(30 * time.Second)
	store.ShouldProcess("b", "")
	clock.Advance(45 * time.Second)

	if removed := store.Sweep(time.Minute); removed != 1 {
		t.Fatalf("ожидали удаление 1 записи, получили %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("ожидали 1 оставшуюся запись, получили %d", store.Len())
	}
	if _, ok := store.Payload("b"); !ok {
		t.Fatal("свежая запись должна остаться")
	}
}

func TestNonPositiveWindowFallsBack(t *testing.T) {
	store := NewStore(0, nil)
	if store.Window() != DefaultWindow {
		t.Fatalf("ожидали окно по умолчанию, получили %s", store.Window())
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store.now = clock.Now
	store.ShouldProcess("x", "")
	clock.Advance(time.Minute)
	if removed := store.Sweep(-5 * time.Minute); removed != 0 {
		t.Fatalf("отрицательное окно не должно очищать всё подряд, удалено %d", removed)
	}
}

func TestFingerprint(t *testing.T) {
	msg := domain.Message{ID: 55, Chat: domain.Chat{ID: -1001234}}
	if got := Fingerprint(msg); got != "1234:55" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
	noID := domain.Message{Chat: domain.Chat{ID: 7}, Text: " Hello "}
	if Fingerprint(noID) != Fingerprint(domain.Message{Chat: domain.Chat{ID: 7}, Text: "hello"}) {
		t.Fatal("content hash must ignore case and surrounding spaces")
	}
	edited := msg
	edited.EditDate = time.Unix(1_700_000_100, 0)
	edited.Text = "changed"
	if Fingerprint(edited) != Fingerprint(msg) {
		t.Fatal("an edit must share the fingerprint of the original message")
	}
}
