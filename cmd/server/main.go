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

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contentforge/studio-api/internal/api"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/core/service"
	"github.com/contentforge/studio-api/internal/infrastructure/config"
	"github.com/contentforge/studio-api/internal/infrastructure/db/memory"
	mongodb "github.com/contentforge/studio-api/internal/infrastructure/db/mongo"
	redisdb "github.com/contentforge/studio-api/internal/infrastructure/db/redis"
	"github.com/contentforge/studio-api/internal/infrastructure/queue"
	"github.com/contentforge/studio-api/internal/provider"
	"github.com/contentforge/studio-api/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	gateway, err := provider.NewHTTPGateway(provider.HTTPConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Client:  &http.Client{Timeout: cfg.Provider.Timeout},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("provider gateway init failed")
	}

	// Storage is selected exactly once. When MongoDB is unreachable the
	// service comes up on the in-memory backend instead of refusing to
	// start; the readiness probe reports the degraded state.
	var (
		users           ports.UserRepository
		usage           ports.UsageRepository
		artifactStore   ports.ArtifactRepository
		transcriptStore ports.TranscriptRepository
		db              *mongo.Database
	)
	client, database, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Warn().Err(err).Msg("mongodb unreachable, starting in degraded in-memory mode")
		store := memory.NewStore()
		users = store.Users()
		usage = store.Usage()
		artifactStore = store.Artifacts()
		transcriptStore = store.Transcripts()
	} else {
		if err := mongodb.Migrate(ctx, database, log); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		users = mongodb.NewUserRepository(database)
		usage = mongodb.NewUsageRepository(client, database)
		artifactStore = mongodb.NewArtifactRepository(database)
		transcriptStore = mongodb.NewTranscriptRepository(database)
		db = database
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		}()
	}

	var (
		rdb  *redis.Client
		idem *redisdb.IdempotencyChecker
	)
	rclient, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis unreachable, replay protection disabled")
	} else {
		rdb = rclient
		idem = redisdb.NewIdempotencyChecker(rclient)
		defer rclient.Close()
	}

	ledger := service.NewLedgerService(usage, logger.Component("ledger"))
	authService := service.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Ledger.InitialGrant)
	studioService := service.NewStudioService(gateway, artifactStore, ledger, service.StudioConfig{
		TextModel:  cfg.Provider.TextModel,
		ImageModel: cfg.Provider.ImageModel,
	}, logger.Component("studio"))
	chatService := service.NewChatService(gateway, artifactStore, ledger, service.ChatConfig{
		StandardModel: cfg.Provider.TextModel,
		PremiumModel:  cfg.Provider.PremiumModel,
	}, logger.Component("chat"))
	transcriptService := service.NewTranscriptService(gateway, transcriptStore, ledger, service.TranscriptConfig{
		Model:        cfg.Provider.AudioModel,
		PollInterval: cfg.Transcribe.PollInterval,
		PollAttempts: cfg.Transcribe.PollAttempts,
	}, logger.Component("transcripts"))
	adminService := service.NewAdminService(users, usage, artifactStore, transcriptStore, ledger, logger.Component("admin"))

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := queue.NewDispatcher(cfg.Workers, service.NewAuditRecorder(logger.Component("audit")), logger.Component("dispatcher"))
	dispatcher.Start(runCtx)

	deps := api.Deps{
		JWTSecret:       cfg.Auth.JWTSecret,
		Logger:          log,
		Auth:            authService,
		Studio:          studioService,
		Chat:            chatService,
		Transcripts:     transcriptService,
		Ledger:          ledger,
		Admin:           adminService,
		Users:           users,
		Artifacts:       artifactStore,
		TranscriptStore: transcriptStore,
		Audit:           dispatcher,
		Mongo:           db,
		Redis:           rdb,
	}
	if idem != nil {
		deps.Idempotency = idem
	}

	e := api.NewRouter(deps)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-runCtx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
