package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/BatmanBruc/bat-bot-renamer/internal/batch"
	"github.com/BatmanBruc/bat-bot-renamer/internal/config"
	"github.com/BatmanBruc/bat-bot-renamer/internal/handlers"
	"github.com/BatmanBruc/bat-bot-renamer/internal/health"
	"github.com/BatmanBruc/bat-bot-renamer/internal/logger"
	"github.com/BatmanBruc/bat-bot-renamer/internal/metrics"
	"github.com/BatmanBruc/bat-bot-renamer/internal/middleware"
	"github.com/BatmanBruc/bat-bot-renamer/internal/progress"
	"github.com/BatmanBruc/bat-bot-renamer/internal/scheduler"
	"github.com/BatmanBruc/bat-bot-renamer/internal/session"
	"github.com/BatmanBruc/bat-bot-renamer/internal/telegram"
	"github.com/BatmanBruc/bat-bot-renamer/store"
)

func main() {
	app := &cli.App{
		Name:  "bat-bot-renamer",
		Usage: "Telegram bot that renames and re-sends batches of files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: "config.env",
				Usage: "dotenv file loaded before reading the environment",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides log level (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("staging dir: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return err
	}
	defer rdb.Close()
	sessionStore := store.NewRedisSessionStore(rdb, cfg.Redis.SessionTTL, cfg.Batch.MaxFiles)

	pgStore, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pgStore.Close()

	httpClient := &http.Client{Timeout: cfg.Bot.HTTPTimeout}
	b, err := bot.New(
		cfg.Bot.Token,
		bot.WithHTTPClient(cfg.Bot.PollTimeout, httpClient),
		bot.WithServerURL(cfg.Bot.APIURL),
	)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// Uploads go through SendDocument, so transfers need a bot of their own.
	transferClient := telegram.NewTransferClient()
	transferBot, err := bot.New(
		cfg.Bot.Token,
		bot.WithHTTPClient(cfg.Bot.PollTimeout, transferClient),
		bot.WithServerURL(cfg.Bot.APIURL),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer bot: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := session.NewRegistry()
	notifier := telegram.NewNotifier(b)
	reporter := progress.NewReporter(telegram.NewSink(b), cfg.Batch.ProgressInterval, cfg.Batch.MaxBackoff)
	transport := telegram.NewTransport(transferBot, cfg.Bot.APIURL, transferClient)

	processor := batch.NewProcessor(sessionStore, pgStore, transport, registry, reporter, m, batch.Config{
		StagingDir:       cfg.Batch.StagingDir,
		MinSizeRatio:     cfg.Batch.MinSizeRatio,
		FileTimeout:      cfg.Batch.FileTimeout,
		RateLimitRetries: cfg.Batch.RateLimitRetries,
		MaxBackoff:       cfg.Batch.MaxBackoff,
	})

	batchScheduler := scheduler.NewScheduler(processor, notifier, scheduler.Config{Workers: cfg.Batch.Workers})
	batchScheduler.Start()
	defer batchScheduler.Stop()

	reaper := session.NewReaper(registry, sessionStore, cfg.Session.IdleTimeout, cfg.Session.ReapSchedule, m.SessionsReaped)
	if err := reaper.Start(); err != nil {
		return err
	}
	defer reaper.Stop()

	h := handlers.NewHandlers(sessionStore, pgStore, registry, batchScheduler, notifier, m, cfg.Batch.MaxFiles)
	mw := middleware.NewMiddlewares(sessionStore, pgStore, registry, notifier)
	handlerChain := mw.EnsureSessionMiddleware(
		middleware.AnalyzeMessageMiddleware(
			h.MainHandler,
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	srv := health.NewServer(cfg.HTTP.Port, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.HTTP.Port).Msg("health server listening")
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Info().Msg("bot started, press Ctrl+C to stop")
		b.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}
