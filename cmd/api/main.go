package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/csvsage/backend/internal/config"
	"github.com/zhouzirui/csvsage/backend/internal/handler"
	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
	"github.com/zhouzirui/csvsage/backend/internal/service/analyst"
	"github.com/zhouzirui/csvsage/backend/internal/service/chart"
	"github.com/zhouzirui/csvsage/backend/internal/service/session"
	"github.com/zhouzirui/csvsage/backend/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		ctx, flush := log.NewContextWithLogger(ctx, false)
		log.FromCtx(ctx).Error().Err(err).Msg("failed to load configuration")
		flush()
		os.Exit(1)
	}

	ctx, flush := log.NewContextWithLogger(ctx, cfg.Debug)
	defer flush()
	logger := log.FromCtx(ctx)

	if envErr != nil {
		logger.Warn().Err(envErr).Msg("no .env file loaded, using system environment only")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.FromCtx(ctx)

	template, err := cfg.AI.PromptTemplate()
	if err != nil {
		return err
	}
	assembler := ai.NewAssembler("", template)
	if err := assembler.Validate(); err != nil {
		return err
	}

	var completer ai.Completer
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("continuing without AI functionality")
		} else {
			completer = ai.NewChatCompleter(chatModel, ai.CompletionOptions{
				Timeout:     cfg.AI.Timeout,
				Temperature: cfg.AI.Temperature32(),
				MaxTokens:   cfg.AI.MaxTokens,
			})
			logger.Info().Str("model", cfg.AI.Model).Dur("timeout", cfg.AI.Timeout).Msg("AI service initialized")
		}
	} else {
		logger.Warn().Msg("Ark credentials not configured, query endpoint disabled")
	}

	sessions := session.NewCache(ctx, session.Options{
		Capacity: cfg.Session.Capacity,
		TTL:      cfg.Session.TTL,
	})
	analystSvc := analyst.NewService(sessions, completer, assembler, analyst.Config{
		HistoryMaxWords: cfg.Session.HistoryMaxWords,
	})

	charts, err := chart.NewService(cfg.Server.PlotsDir)
	if err != nil {
		return err
	}

	router := handler.NewRouter(*logger, analystSvc, charts, handler.Options{
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// queries wait on the model, so the write deadline must outlast it
		WriteTimeout: cfg.AI.Timeout*2 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info().Str("addr", srv.Addr).Msg("csvsage backend listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
