package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	if err := s.Every("bad", 0, func(context.Context) {}); err == nil {
		t.Fatalf("ожидали ошибку для нулевого интервала")
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	started := make(chan struct{})
	var finished atomic.Bool
	var once atomic.Bool
	if err := s.Every("slow", time.Second, func(ctx context.Context) {
		if once.Swap(true) {
			return
		}
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("задача не запустилась")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !finished.Load() {
		t.Fatalf("Stop вернулся до завершения задачи")
	}
}
