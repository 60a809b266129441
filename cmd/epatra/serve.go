package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epatra/internal/auth"
	"epatra/internal/db"
	"epatra/internal/enrich"
	"epatra/internal/messaging"
	"epatra/internal/metrics"
	"epatra/internal/server"
	"epatra/internal/storage"
	"epatra/internal/store"
	"epatra/internal/workflow"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server and the enrichment workers",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadConfig(cCtx.String("env-file"))
	if err != nil {
		return err
	}

	logger := newLogger(config)

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	repos := store.NewRepositories(pool)
	m := metrics.New()

	if config.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, analysis will fail")
	}

	extractor := &enrich.Router{
		Images: enrich.NewTextract(awsConfig),
		Docx:   enrich.Docx{},
	}
	analyzer := enrich.NewOpenAI(enrich.OpenAIConfig{
		APIKey:  config.OpenAIAPIKey,
		Model:   config.OpenAIModel,
		BaseURL: config.OpenAIBaseURL,
	})

	processor := workflow.New(
		logger,
		workflow.OptionsFromConfig(config),
		repos,
		repos,
		storage.New(ctx, logger, config),
		extractor,
		analyzer,
		m,
	)

	jwkCache, err := auth.NewJWKSCache(context.Background(), config.JWKSURL())
	if err != nil {
		return err
	}

	srv := server.New(
		config,
		logger,
		repos,
		processor,
		messaging.New(logger, config, repos),
		auth.NewVerifier(jwkCache, config),
		m,
	)

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to stop http server")
	}

	if err := processor.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("enrichments canceled before completion")
	}

	return nil
}
