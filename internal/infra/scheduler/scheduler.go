package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job описывает периодическую задачу. ctx отменяется при остановке планировщика.
type Job func(ctx context.Context)

// Scheduler запускает периодические задачи поверх robfig/cron. Запуск,
// попавший на ещё работающий предыдущий, пропускается.
type Scheduler struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// New создаёт планировщик. Задачи получают контекст, производный от ctx.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	jobCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		c: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    jobCtx,
		cancel: cancel,
		log:    log,
	}
}

// Every регистрирует задачу с фиксированным интервалом.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: %s: интервал должен быть положительным", name)
	}
	_, err := s.c.AddFunc("@every "+interval.String(), func() {
		start := time.Now()
		job(s.ctx)
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("scheduler: задача выполнена")
	})
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	s.log.Info().Str("job", name).Dur("interval", interval).Msg("scheduler: задача зарегистрирована")
	return nil
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() { s.c.Start() }

// Stop прекращает новые запуски и ждёт текущие задачи до истечения ctx.
// Если ждать дольше нельзя, контекст задач отменяется.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler: задачи не завершились: %w", ctx.Err())
	}
}

// cronLogger направляет журнал cron в zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
