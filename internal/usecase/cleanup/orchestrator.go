package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/metrics"
	"tg-monitor-bot/internal/usecase/expiry"
)

// ErrNoChatsSelected возвращается, если для полной очистки не выбран ни один чат.
var ErrNoChatsSelected = errors.New("не выбраны чаты для очистки")

// Scanner находит кандидатов на удаление в одном чате.
type Scanner interface {
	Scan(ctx context.Context, chat domain.Chat, selfID int64, cutoff time.Time) ([]domain.Candidate, error)
	ScanAll(ctx context.Context, chat domain.Chat, selfID int64) ([]domain.Candidate, error)
}

var _ Scanner = (*expiry.Scanner)(nil)

// OrchestratorConfig задаёт параллелизм и паузы.
type OrchestratorConfig struct {
	Concurrency int
	ChatDelay   time.Duration
}

// Orchestrator распределяет сканирование и удаление по чатам.
type Orchestrator struct {
	dialogs domain.DialogLister
	scanner Scanner
	deleter *Deleter
	retry   *Retrier
	cfg     OrchestratorConfig
	sleep   SleepFunc
	log     zerolog.Logger
}

// NewOrchestrator создаёт оркестратор. sleep может быть nil.
func NewOrchestrator(dialogs domain.DialogLister, scanner Scanner, deleter *Deleter, retry *Retrier, cfg OrchestratorConfig, sleep SleepFunc, log zerolog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Orchestrator{dialogs: dialogs, scanner: scanner, deleter: deleter, retry: retry, cfg: cfg, sleep: sleep, log: log}
}

// SweepReport описывает итог одного периодического прохода.
type SweepReport struct {
	RunID       string
	Chats       int
	FailedChats int
	Candidates  int
	Result      domain.DeleteResult
}

type chatCandidates struct {
	chat  domain.Chat
	items []domain.Candidate
}

// Sweep сканирует все диалоги, кроме exclude, с ограниченным параллелизмом и
// затем последовательно удаляет найденные сообщения.
func (o *Orchestrator) Sweep(ctx context.Context, selfID int64, cutoff time.Time, exclude map[string]struct{}) (SweepReport, error) {
	start := time.Now()
	defer metrics.ObserveSweep("sweep", start)

	report := SweepReport{RunID: uuid.NewString()}
	log := o.log.With().Str("run", report.RunID).Logger()

	chats, err := o.listDialogs(ctx)
	if err != nil {
		return report, err
	}
	chats = filterChats(chats, nil, exclude)
	report.Chats = len(chats)

	var (
		mu    sync.Mutex
		found []chatCandidates
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for _, chat := range chats {
		g.Go(func() error {
			items, err := o.scanner.Scan(gctx, chat, selfID, cutoff)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.FailedChats++
				log.Error().Err(err).Int64("chat", chat.ID).Str("title", chat.Title).Msg("cleanup: сканирование чата не удалось")
				return nil
			}
			if len(items) > 0 {
				found = append(found, chatCandidates{chat: chat, items: items})
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, batch := range found {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Candidates += len(batch.items)
		res := o.deleter.DeleteAll(ctx, batch.chat, expiry.IDs(batch.items))
		report.Result = report.Result.Add(res)
		log.Info().Int64("chat", batch.chat.ID).Str("title", batch.chat.Title).Int("deleted", res.Deleted).Int("failed", res.Failed).Msg("cleanup: просроченные сообщения удалены")
	}

	metrics.AddCleanup("sweep", report.Result.Deleted, report.Result.Failed)
	log.Info().Int("chats", report.Chats).Int("failed_chats", report.FailedChats).Int("deleted", report.Result.Deleted).Int("failed", report.Result.Failed).Dur("took", time.Since(start)).Msg("cleanup: проход завершён")
	return report, nil
}

// PurgeOptions задаёт выбор чатов для полной очистки.
type PurgeOptions struct {
	All     bool
	Only    map[string]struct{}
	Exclude map[string]struct{}
	DryRun  bool
}

// ChatReport описывает итог очистки одного чата.
type ChatReport struct {
	Chat   domain.Chat
	Found  int
	Result domain.DeleteResult
	Err    error
}

// PurgeReport описывает итог полной очистки.
type PurgeReport struct {
	RunID  string
	DryRun bool
	Chats  []ChatReport
	Found  int
	Total  domain.DeleteResult
}

// FailedChats возвращает число чатов, завершившихся ошибкой.
func (r PurgeReport) FailedChats() int {
	n := 0
	for _, c := range r.Chats {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Purge удаляет всю собственную историю в выбранных чатах. Чаты обрабатываются
// последовательно с паузой; ошибка чата не прерывает очистку остальных.
func (o *Orchestrator) Purge(ctx context.Context, run *PurgeRun, selfID int64, opts PurgeOptions) (PurgeReport, error) {
	start := time.Now()
	defer metrics.ObserveSweep("purge", start)

	report := PurgeReport{RunID: run.ID, DryRun: opts.DryRun}
	if !opts.All && len(opts.Only) == 0 {
		return report, ErrNoChatsSelected
	}

	run.Enter(StateEnumerating)
	chats, err := o.listDialogs(ctx)
	if err != nil {
		return report, err
	}
	only := opts.Only
	if opts.All {
		only = nil
	}
	chats = filterChats(chats, only, opts.Exclude)
	run.log.Info().Int("chats", len(chats)).Bool("dry_run", opts.DryRun).Msg("cleanup: чаты для очистки выбраны")

	for i, chat := range chats {
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.ChatDelay); err != nil {
				return o.finishPurge(run, report), err
			}
		}
		report.Chats = append(report.Chats, o.purgeChat(ctx, run, chat, selfID, opts.DryRun))
	}

	return o.finishPurge(run, report), ctx.Err()
}

func (o *Orchestrator) purgeChat(ctx context.Context, run *PurgeRun, chat domain.Chat, selfID int64, dryRun bool) ChatReport {
	cr := ChatReport{Chat: chat}

	run.EnterChat(StateFetching, chat)
	items, err := o.scanner.ScanAll(ctx, chat, selfID)
	if err != nil {
		cr.Err = err
		run.EnterChat(StateChatFailed, chat)
		run.log.Error().Err(err).Int64("chat", chat.ID).Str("title", chat.Title).Msg("cleanup: чат пропущен")
		return cr
	}
	cr.Found = len(items)
	if dryRun || len(items) == 0 {
		return cr
	}

	run.EnterChat(StateDeleting, chat)
	cr.Result = o.deleter.DeleteAll(ctx, chat, expiry.IDs(items))
	run.log.Info().Int64("chat", chat.ID).Str("title", chat.Title).Int("found", cr.Found).Int("deleted", cr.Result.Deleted).Int("failed", cr.Result.Failed).Msg("cleanup: чат очищен")
	return cr
}

func (o *Orchestrator) finishPurge(run *PurgeRun, report PurgeReport) PurgeReport {
	run.Enter(StateReporting)
	for _, c := range report.Chats {
		report.Found += c.Found
		report.Total = report.Total.Add(c.Result)
	}
	metrics.AddCleanup("purge", report.Total.Deleted, report.Total.Failed)
	return report
}

func (o *Orchestrator) listDialogs(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := o.retry.Do(ctx, "dialogs", func(ctx context.Context) error {
		var err error
		chats, err = o.dialogs.Dialogs(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("список диалогов: %w", err)
	}
	return chats, nil
}

// filterChats оставляет чаты из only (если задан) и убирает exclude.
func filterChats(chats []domain.Chat, only, exclude map[string]struct{}) []domain.Chat {
	out := make([]domain.Chat, 0, len(chats))
	for _, chat := range chats {
		id := domain.NormalizeID(chat.ID)
		if id == "" {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if only != nil {
			if _, ok := only[id]; !ok {
				continue
			}
		}
		out = append(out, chat)
	}
	return out
}
