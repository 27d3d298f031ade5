package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contentforge/studio-api/internal/api/handler"
	"github.com/contentforge/studio-api/internal/api/middleware"
	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// Deps carries everything the router wires into handlers. MongoDB and the
// idempotency checker are optional: nil means degraded mode.
type Deps struct {
	JWTSecret string
	Logger    zerolog.Logger

	Auth        ports.AuthService
	Studio      ports.StudioService
	Chat        ports.ChatService
	Transcripts ports.TranscriptService
	Ledger      ports.LedgerService
	Admin       ports.AdminService

	Users           ports.UserRepository
	Artifacts       ports.ArtifactRepository
	TranscriptStore ports.TranscriptRepository

	Idempotency handler.IdempotencyChecker
	Audit       handler.AuditSink

	Mongo *mongo.Database
	Redis *redis.Client
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("studio"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	studioHandler := handler.NewStudioHandler(d.Studio, d.Idempotency, d.Audit, d.Logger)
	chatHandler := handler.NewChatHandler(d.Chat, d.Audit, d.Logger)
	transcriptHandler := handler.NewTranscriptHandler(d.Transcripts, d.TranscriptStore, d.Audit, d.Logger)
	usageHandler := handler.NewUsageHandler(d.Ledger, d.Idempotency, d.Logger)
	adminHandler := handler.NewAdminHandler(d.Admin)
	artifactHandler := handler.NewArtifactHandler(d.Artifacts)

	// --- Public routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Mongo, d.Redis)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Authenticated routes: valid token, approved and unexpired account ---
	auth := middleware.Auth(d.JWTSecret)
	active := middleware.ActiveUser(d.Users)

	api := e.Group("/api", auth, active)

	api.POST("/studio/research", studioHandler.Research)
	api.POST("/studio/infographic", studioHandler.CreateInfographic)
	api.POST("/studio/images", studioHandler.GenerateImage)
	api.POST("/studio/images/edit", studioHandler.EditImage)

	api.POST("/chat", chatHandler.Chat)

	api.POST("/transcripts", transcriptHandler.Transcribe)
	api.GET("/transcripts/:id", transcriptHandler.Get)
	api.POST("/transcripts/:id/refine", transcriptHandler.Refine)

	api.GET("/artifacts/:id", artifactHandler.Get)

	api.POST("/usage", usageHandler.LogUsage)
	api.GET("/usage", usageHandler.History)

	// --- Admin routes ---
	admin := api.Group("/admin", middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.POST("/users/:id/approve", adminHandler.Approve)
	admin.PATCH("/users/:id", adminHandler.UpdateUser)
	admin.POST("/users/:id/credit", adminHandler.CreditTokens)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	return e
}
