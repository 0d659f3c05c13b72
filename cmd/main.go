package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"vqa-bot/config"
	"vqa-bot/internal/api/telegram"
	"vqa-bot/internal/api/web"
	app "vqa-bot/internal/application"
	"vqa-bot/internal/container"
	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
	"vqa-bot/internal/infrastructure/inference"
	"vqa-bot/internal/infrastructure/storage"
	"vqa-bot/internal/infrastructure/vision"
)

// Ответы старше этого удаляются из кэша при запуске
const cacheMaxAge = 30 * 24 * time.Hour

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Кэш ответов модели
	var cache port.AnswerCache
	if cfg.CacheDBPath != "" {
		sqliteCache, err := storage.NewSQLiteAnswerCache(cfg.CacheDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CacheDBPath).Msg("failed to open answer cache")
		}
		defer sqliteCache.Close()

		if n, err := sqliteCache.Prune(ctx, cacheMaxAge); err != nil {
			log.Warn().Err(err).Msg("failed to prune answer cache")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("stale cached answers removed")
		}
		cache = sqliteCache
	}

	answerer, err := inference.New(ctx, inference.Options{
		Backend: cfg.InferenceBackend,
		BLIP: inference.BLIPOptions{
			URL:     cfg.BLIPURL,
			Token:   cfg.BLIPToken,
			Retries: cfg.BLIPRetries,
		},
		Gemini: inference.GeminiOptions{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		},
		Concurrency: cfg.InferenceConcurrency,
		Cache:       cache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create inference backend")
	}

	mode := entity.ModeSingleShot
	if cfg.HistoryEnabled {
		mode = entity.ModeConversation
	}

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		Sessions:     storage.NewMemorySessionRepository(),
		Preprocessor: vision.NewGoCVPreprocessor(cfg.MaxImageSide),
		Answerer:     answerer,
	}, app.SessionOptions{
		Mode:          mode,
		TTL:           cfg.SessionTTL,
		MaxImageBytes: cfg.MaxImageBytes,
	}, cfg.InferenceTimeout)

	log.Info().
		Str("backend", cfg.InferenceBackend).
		Str("mode", string(mode)).
		Bool("web", cfg.WebEnabled).
		Bool("telegram", cfg.TelegramToken != "").
		Msg("starting vqa bot")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return appContainer.SessionService.RunJanitor(ctx, time.Minute)
	})

	if cfg.WebEnabled {
		server := web.NewServer(appContainer, web.Options{
			MaxImageBytes:    cfg.MaxImageBytes,
			InferenceTimeout: cfg.InferenceTimeout,
		})
		g.Go(func() error {
			return server.Start(ctx, cfg.HTTPAddr)
		})
	}

	if cfg.TelegramToken != "" {
		api, err := telegram.Connect(cfg.TelegramToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create bot")
		}
		bot := telegram.NewBot(api, appContainer, telegram.Options{MaxImageBytes: cfg.MaxImageBytes})
		g.Go(func() error {
			return bot.Run(ctx, api)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("bye")
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
