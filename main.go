package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/client"
	"github.com/aweist/whistle-bot/config"
	"github.com/aweist/whistle-bot/logging"
	"github.com/aweist/whistle-bot/metrics"
	"github.com/aweist/whistle-bot/notifier"
	"github.com/aweist/whistle-bot/scheduler"
	"github.com/aweist/whistle-bot/storage"
	"github.com/aweist/whistle-bot/web"
	"github.com/aweist/whistle-bot/whistle"
)

var version = "dev"

const historyRetention = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, recorder, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	loc := cfg.Location()
	m := metrics.New()

	db, err := storage.NewBoltStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Error initializing storage", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		out     notifier.Notifier
		inbound notifier.InboundSource
	)
	if cfg.DryRun {
		console := notifier.NewConsoleNotifier(logger.Named("console"), db, cfg.Twitter.OwnerUserID)
		go func() {
			if err := console.Listen(ctx, os.Stdin); err != nil && ctx.Err() == nil {
				logger.Warn("Console input closed", zap.Error(err))
			}
		}()
		out = console
		inbound = console
		logger.Warn("Dry run: whistles are logged, not posted; owner commands are read from stdin")
	} else {
		tw := notifier.NewTwitterNotifier(notifier.TwitterConfig{
			BaseURL:           cfg.Twitter.BaseURL,
			ConsumerKey:       cfg.Twitter.ConsumerKey,
			ConsumerSecret:    cfg.Twitter.ConsumerSecret,
			AccessToken:       cfg.Twitter.AccessToken,
			AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
			BotUserID:         cfg.Twitter.BotUserID,
		})
		out = tw
		inbound = tw
	}

	var scores scheduler.ScoreSource
	if cfg.Scores.Enabled {
		scores = client.NewScoreClient(client.ScoreClientConfig{
			BaseURL:  cfg.Scores.BaseURL,
			APIKey:   cfg.Scores.APIKey,
			Timeout:  cfg.Scores.Timeout,
			Location: loc,
		})
	}

	board := scheduler.NewStatusBoard()

	if cfg.Web.Enabled {
		srv := web.NewServer(web.ServerConfig{
			Storage:  db,
			Board:    board,
			Metrics:  m,
			Logger:   logger.Named("web"),
			Location: loc,
			TeamName: cfg.Team.Code,
			Port:     cfg.Web.Port,
		})
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("Web server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting whistle bot",
		zap.String("version", version),
		zap.String("transport", out.GetType()),
		zap.String("timezone", loc.String()),
		zap.String("schedule_file", cfg.ScheduleFile),
		zap.Bool("scores", cfg.Scores.Enabled))

	clock := scheduler.NewClock(loc)
	schedules := config.NewScheduleFile(cfg.ScheduleFile)

	var suffixes []whistle.Suffix
	if cfg.Whistle.Suffixes {
		suffixes = whistle.DefaultSuffixes
	}

	for {
		output := scheduler.NewOutput(scheduler.OutputConfig{
			Notifier: out,
			History:  db,
			Generator: whistle.NewGenerator(whistle.GeneratorConfig{
				Suffixes:  suffixes,
				RivalCode: cfg.Team.RivalCode,
				CharLimit: cfg.Whistle.PostCharLimit,
			}),
			Clock:        clock,
			Metrics:      m,
			Logger:       logger.Named("output"),
			Logs:         recorder,
			OwnerID:      cfg.Twitter.OwnerUserID,
			RecentWindow: cfg.Whistle.RecentWindow,
			MinInterval:  cfg.Whistle.MinWhistleInterval,
			DMCharLimit:  cfg.Whistle.DMCharLimit,
			Excerpt: scheduler.ExcerptConfig{
				DefaultLines: cfg.Commands.LogDefaultLines,
				MaxLines:     cfg.Commands.LogMaxLines,
				LineMaxChars: cfg.Commands.LogLineMaxChars,
			},
		})

		tracker := scheduler.NewTracker(scheduler.TrackerConfig{
			Scores:           scores,
			Output:           output,
			Clock:            clock,
			Metrics:          m,
			Logger:           logger.Named("gameday"),
			TeamCode:         cfg.Team.Code,
			FinalPeriods:     cfg.Gameday.FinalPeriods,
			SamplingInterval: cfg.Gameday.SamplingInterval,
			MaxGameDuration:  cfg.Gameday.MaxGameDuration,
		})

		var season *scheduler.SeasonPoller
		if scores != nil {
			season = scheduler.NewSeasonPoller(scores, db, cfg.Team.Code, logger.Named("season"))
		}

		bot := scheduler.NewDailyScheduler(scheduler.DailySchedulerConfig{
			Config: scheduler.Config{
				Version:          version,
				OwnerID:          cfg.Twitter.OwnerUserID,
				ErrorCooldown:    cfg.Cooldowns.Error,
				StartupDelay:     cfg.Cooldowns.Startup,
				DMDelay:          cfg.Commands.DMDelay,
				PollInterval:     cfg.Commands.PollInterval,
				MaxTootLength:    cfg.Commands.MaxTootLength,
				HistoryRetention: historyRetention,
			},
			Clock:     clock,
			Schedules: schedules,
			Store:     db,
			Output:    output,
			Tracker:   tracker,
			Ceremony:  scheduler.NewCeremonyRunner(output, clock, db, logger.Named("ceremony")),
			Season:    season,
			Inbound:   inbound,
			Board:     board,
			Metrics:   m,
			Logger:    logger.Named("scheduler"),
		})

		err := bot.Run(ctx)
		switch {
		case errors.Is(err, scheduler.ErrResetRequested):
			logger.Info("Restarting scheduler")
			continue
		case ctx.Err() != nil:
			logger.Info("Shutting down whistle bot...")
			return
		default:
			logger.Error("Scheduler stopped", zap.Error(err))
			db.Close()
			_ = logger.Sync()
			os.Exit(1)
		}
	}
}
