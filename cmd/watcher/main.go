package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-monitor-bot/internal/adapters/botapi"
	"tg-monitor-bot/internal/adapters/mtproto"
	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/cache"
	"tg-monitor-bot/internal/infra/config"
	httpserver "tg-monitor-bot/internal/infra/http"
	applog "tg-monitor-bot/internal/infra/log"
	"tg-monitor-bot/internal/infra/metrics"
	"tg-monitor-bot/internal/infra/scheduler"
	"tg-monitor-bot/internal/usecase/classify"
	"tg-monitor-bot/internal/usecase/cleanup"
	"tg-monitor-bot/internal/usecase/dedup"
	"tg-monitor-bot/internal/usecase/expiry"
	"tg-monitor-bot/internal/usecase/monitor"
	"tg-monitor-bot/internal/usecase/notify"
)

func main() {
	cfg, err := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.Debug)
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось загрузить конфиг")
	}
	if err := cfg.Validate(config.ModeWatcher); err != nil {
		logger.Fatal().Err(err).Msg("watcher: некорректная конфигурация")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := mtproto.OpenSession(ctx, cfg.MTProto.SessionFile, cfg.MTProto.SessionString)
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось открыть MTProto-сессию")
	}

	health := &monitor.Health{}
	gate := monitor.NewGate(health)
	client := mtproto.New(mtproto.Options{
		APIID:   cfg.Telegram.APIID,
		APIHash: cfg.Telegram.APIHash,
		Session: storage,
		RPS:     cfg.MTProto.GlobalRPS,
		Handler: gate,
	}, logger.With().Str("component", "mtproto").Logger())

	retrier := cleanup.NewRetrier(cleanup.RetryPolicy{TransientRetries: cfg.Cleanup.TransientRetries}, nil, logger)

	sender, botID := newSender(cfg, client, logger)
	sender = cleanup.WithRetrySender(sender, retrier)

	dedupStore, memStore := newDedup(ctx, cfg, logger)

	ops := httpserver.NewServer(logger.With().Str("component", "http").Logger(), prometheus.DefaultGatherer, health.Connected)
	go func() {
		if err := ops.Start(cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("watcher: служебный HTTP сервер остановлен с ошибкой")
		}
	}()

	targets := domain.ParseTargets(cfg.Monitor.NotifyChannels)
	record := notify.NewDispatchRecord()

	logger.Info().Int("targets", len(targets)).Str("notifier", cfg.Telegram.Notifier).Msg("watcher: запуск")
	err = client.Run(ctx, func(ctx context.Context) error {
		identity := classify.Identity{SelfID: client.SelfID(), BotID: botID}
		rules := classify.NewRules(classify.RulesConfig{
			MonitorChats:    cfg.Monitor.MonitorChats,
			NotMonitorChats: cfg.Monitor.NotMonitorChats,
			Keywords:        cfg.Monitor.Keywords,
			TargetUsers:     cfg.Monitor.TargetUsers,
			UserKeywords:    cfg.Monitor.UserKeywords,
			LotteryKeywords: cfg.Monitor.LotteryKeywords,
			NotifyChannels:  cfg.Monitor.NotifyChannels,
		})
		svc := monitor.NewService(monitor.Deps{
			Classifier: classify.NewClassifier(rules, identity, dedupStore, logger).WithSentLookup(record.Contains),
			Notifier:   notify.NewNotifier(sender, record, logger),
			Retractor:  notify.NewRetractor(sender, record, cfg.Monitor.RetractKeywords, targets, logger),
			Record:     record,
			Targets:    targets,
			Identity:   identity,
			Health:     health,
		}, logger)
		gate.Attach(svc)

		sched := scheduler.New(context.WithoutCancel(ctx), logger)
		if err := sched.Every("dedup_sweep", cfg.Dedup.SweepInterval, func(context.Context) {
			removed := dedupStore.Sweep(dedup.SafeWindow(cfg.DedupWindow()))
			if memStore != nil {
				metrics.SetDedupEntries(memStore.Len())
			}
			if removed > 0 {
				logger.Debug().Int("removed", removed).Msg("watcher: очищены записи дедупликации")
			}
		}); err != nil {
			return err
		}

		if cfg.Cleanup.AutoDeleteMinutes > 0 {
			orch := newOrchestrator(cfg, client, retrier, logger)
			exclude := domain.NormalizeIDs(cfg.Monitor.NotMonitorChats)
			if err := sched.Every("expiry_sweep", cfg.Cleanup.SweepInterval, func(jobCtx context.Context) {
				cutoff, ok := expiry.Cutoff(time.Now(), cfg.Cleanup.AutoDeleteMinutes)
				if !ok {
					return
				}
				if _, err := orch.Sweep(jobCtx, identity.SelfID, cutoff, exclude); err != nil {
					logger.Error().Err(err).Msg("watcher: проход очистки завершился ошибкой")
				}
			}); err != nil {
				return err
			}
		}

		sched.Start()
		logger.Info().Int64("self", identity.SelfID).Int("auto_delete_minutes", cfg.Cleanup.AutoDeleteMinutes).Msg("watcher: мониторинг запущен")
		<-ctx.Done()

		logger.Info().Msg("watcher: остановка, ждём завершения задач")
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("watcher: задачи прерваны по таймауту")
		}
		return nil
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if serr := ops.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("watcher: не удалось корректно остановить HTTP сервер")
	}
	if err != nil && ctx.Err() == nil {
		cancel()
		logger.Fatal().Err(err).Msg("watcher: ошибка MTProto клиента")
	}
	logger.Info().Msg("watcher: остановлен")
}

// newSender выбирает транспорт уведомлений и возвращает id бота, если он есть.
func newSender(cfg config.AppConfig, client *mtproto.Client, logger zerolog.Logger) (domain.Sender, int64) {
	if cfg.Telegram.Notifier == config.NotifierClient {
		return mtproto.NewClientSender(client), 0
	}
	bot, err := botapi.New(cfg.Telegram.Token, logger.With().Str("component", "botapi").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось создать бота")
	}
	return bot, bot.BotID()
}

// newDedup создаёт хранилище дедупликации. Второе значение заполнено только
// для хранилища в памяти.
func newDedup(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.Deduplicator, *dedup.Store) {
	window := dedup.SafeWindow(cfg.DedupWindow())
	if cfg.Dedup.Backend != config.DedupRedis {
		store := dedup.NewStore(window, nil)
		return store, store
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Dedup.RedisAddr})
	remote := cache.NewRedisDedup(rdb, window, logger)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := remote.Ping(pingCtx); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Dedup.RedisAddr).Msg("watcher: нет подключения к Redis")
	}
	return remote, nil
}

func newOrchestrator(cfg config.AppConfig, client *mtproto.Client, retrier *cleanup.Retrier, logger zerolog.Logger) *cleanup.Orchestrator {
	scanner := expiry.NewScanner(cleanup.WithRetry(client, retrier), expiry.Config{
		RecentLimit: cfg.Cleanup.RecentLimit,
		Horizon:     cfg.Cleanup.RecencyHorizon,
		MaxPages:    cfg.Cleanup.HistoryMaxPages,
		PageSize:    cfg.Cleanup.HistoryPageSize,
	}, logger)
	deleter := cleanup.NewDeleter(client, retrier, cleanup.DeleterConfig{
		BatchSize:  cfg.Cleanup.BatchSize,
		ChunkDelay: cfg.Cleanup.ChunkDelay,
		ItemDelay:  cfg.Cleanup.ItemDelay,
	}, nil, logger)
	return cleanup.NewOrchestrator(client, scanner, deleter, retrier, cleanup.OrchestratorConfig{
		Concurrency: cfg.Cleanup.Concurrency,
	}, nil, logger)
}
