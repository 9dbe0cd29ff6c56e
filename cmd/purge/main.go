package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tg-monitor-bot/internal/adapters/mtproto"
	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/infra/config"
	applog "tg-monitor-bot/internal/infra/log"
	"tg-monitor-bot/internal/usecase/cleanup"
	"tg-monitor-bot/internal/usecase/expiry"
)

type purgeFlags struct {
	all     bool
	only    []string
	exclude []string
	dryRun  bool
}

func newRootCmd() *cobra.Command {
	var flags purgeFlags
	cmd := &cobra.Command{
		Use:           "purge",
		Short:         "Удаляет все собственные сообщения в выбранных чатах",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&flags.all, "all", false, "очистить все диалоги")
	cmd.Flags().StringSliceVar(&flags.only, "only", nil, "очистить только указанные чаты (id через запятую)")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "пропустить указанные чаты (id через запятую)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "только посчитать сообщения, ничего не удалять")
	return cmd
}

func (f purgeFlags) options() (cleanup.PurgeOptions, error) {
	opts := cleanup.PurgeOptions{
		All:     f.all,
		Only:    domain.NormalizeIDs(f.only),
		Exclude: domain.NormalizeIDs(f.exclude),
		DryRun:  f.dryRun,
	}
	if !opts.All && len(opts.Only) == 0 {
		return opts, fmt.Errorf("%w: укажите --all или --only", cleanup.ErrNoChatsSelected)
	}
	return opts, nil
}

func run(ctx context.Context, opts cleanup.PurgeOptions) error {
	cfg, err := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.Debug)
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.ModePurge); err != nil {
		return err
	}

	storage, err := mtproto.OpenSession(ctx, cfg.MTProto.SessionFile, cfg.MTProto.SessionString)
	if err != nil {
		return err
	}
	client := mtproto.New(mtproto.Options{
		APIID:   cfg.Telegram.APIID,
		APIHash: cfg.Telegram.APIHash,
		Session: storage,
		RPS:     cfg.MTProto.GlobalRPS,
	}, logger.With().Str("component", "mtproto").Logger())

	retrier := cleanup.NewRetrier(cleanup.RetryPolicy{TransientRetries: cfg.Cleanup.TransientRetries}, nil, logger)
	scanner := expiry.NewScanner(cleanup.WithRetry(client, retrier), expiry.Config{
		PageSize: cfg.Cleanup.HistoryPageSize,
	}, logger)
	deleter := cleanup.NewDeleter(client, retrier, cleanup.DeleterConfig{
		BatchSize:  cfg.Cleanup.BatchSize,
		ChunkDelay: cfg.Cleanup.ChunkDelay,
		ItemDelay:  cfg.Cleanup.ItemDelay,
	}, nil, logger)
	orch := cleanup.NewOrchestrator(client, scanner, deleter, retrier, cleanup.OrchestratorConfig{
		ChatDelay: cfg.Cleanup.PurgeChatDelay,
	}, nil, logger)

	purgeRun := cleanup.NewPurgeRun(logger, nil)
	purgeRun.Enter(cleanup.StateConnecting)

	var report cleanup.PurgeReport
	runErr := client.Run(ctx, func(ctx context.Context) error {
		var err error
		report, err = orch.Purge(ctx, purgeRun, client.SelfID(), opts)
		return err
	})
	purgeRun.Enter(cleanup.StateClosing)
	if report.RunID != "" {
		printReport(os.Stdout, report)
	}
	purgeRun.Enter(cleanup.StateDone)

	if runErr != nil {
		return runErr
	}
	if report.FailedChats() > 0 || report.Total.Failed > 0 {
		return errPartial
	}
	return nil
}

var errPartial = errors.New("purge: часть сообщений или чатов не удалось очистить")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
