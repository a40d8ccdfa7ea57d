// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	_ "ctfarena/docs" // swagger docs
	"ctfarena/internal/bootstrap"
	"ctfarena/internal/config"
	"ctfarena/internal/featureflags"
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/notifications"
	"ctfarena/internal/repository"
	"ctfarena/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	feedHub        *notifications.FeedHub
	hubs           []wireableHub
	featureFlags   *featureflags.Manager
	gate           *service.ModerationGate

	userService       *service.UserService
	challengeService  *service.ChallengeService
	flagService       *service.FlagService
	scoreboardService *service.ScoreboardService
	reviewService     *service.ReviewService
	postService       *service.PostService
	commentService    *service.CommentService
	moderationService *service.ModerationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedWarmups: !cfg.IsProduction()})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. A nil Redis client runs the API uncached and
// without the live feed.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	solveRepo := repository.NewSolveRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("ctfarena-api"),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	gate := service.NewModerationGate()
	server.gate = gate
	ledger := service.NewSolveLedger(solveRepo, redisClient)

	server.userService = service.NewUserService(userRepo, gate, redisClient, cfg.JWTSecret)
	server.challengeService = service.NewChallengeService(challengeRepo, gate, redisClient)
	server.flagService = service.NewFlagService(
		service.NewFlagVerifier(challengeRepo), ledger, solveRepo, server.notifier, server.featureFlags)
	server.scoreboardService = service.NewScoreboardService(solveRepo, userRepo, gate, server.notifier, redisClient).
		WithCacheTTL(cfg.LeaderboardCacheTTL())
	server.reviewService = service.NewReviewService(submissionRepo, challengeRepo, gate, server.notifier, server.featureFlags)
	server.postService = service.NewPostService(postRepo, gate)
	server.commentService = service.NewCommentService(commentRepo, postRepo, gate)
	server.moderationService = service.NewModerationService(userRepo, challengeRepo, submissionRepo, postRepo, solveRepo, gate)

	if redisClient != nil {
		server.feedHub = notifications.NewFeedHub()
		server.hubs = []wireableHub{server.feedHub}
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID, trace ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "CTF Arena Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public reads; a valid token adds per-viewer details such as solved markers.
	// Everything registered on api after the protected group below requires a token.
	public := api.Group("", s.OptionalAuth())
	public.Get("/challenges", s.ListChallenges)
	public.Get("/challenges/:id", s.GetChallenge)
	public.Get("/scoreboard", s.GetLeaderboard)
	public.Get("/scoreboard/feed", s.GetFeed)
	public.Get("/posts", s.GetPosts)
	public.Get("/posts/:id/comments", s.GetComments)
	public.Get("/posts/:id", s.GetPost)
	public.Get("/feature-flags", s.GetFeatureFlags)
	public.Get("/users/:id/score", s.GetUserScore)

	// Live feed; anonymous viewers are allowed.
	api.Get("/ws/feed", s.OptionalAuth(), s.FeedWebsocketUpgrade, s.FeedWebsocketHandler())

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	protected.Post("/challenges/:id/submit", middleware.RateLimit(
		s.redis, s.config.FlagSubmitRateLimit, s.config.FlagSubmitWindow(), "flag_submit"), s.SubmitFlag)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	// Registered after /me so the literal segment wins; any valid token may read profiles.
	users.Get("/:id", s.GetUserProfile)

	submissions := protected.Group("/submissions")
	submissions.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "create_submission"), s.CreateSubmission)
	submissions.Get("/me", s.GetMySubmissions)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 1, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/upvote", s.UpvotePost)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 5, time.Minute, "create_comment"), s.CreateComment)

	// Admin routes; each one names the action the moderation gate checks.
	admin := protected.Group("/admin")
	may := s.AdminRequired
	admin.Get("/dashboard", may(service.ActionViewDashboard), s.GetAdminDashboard)
	admin.Get("/feature-flags", may(service.ActionViewDashboard), s.GetFeatureFlags)

	adminSubmissions := admin.Group("/submissions")
	adminSubmissions.Get("/", may(service.ActionViewReviewQueue), s.GetReviewQueue)
	adminSubmissions.Post("/:id/approve", may(service.ActionApproveSubmission), s.ApproveSubmission)
	adminSubmissions.Post("/:id/reject", may(service.ActionRejectSubmission), s.RejectSubmission)

	adminChallenges := admin.Group("/challenges")
	adminChallenges.Get("/", may(service.ActionViewHiddenChallenges), s.AdminListChallenges)
	adminChallenges.Post("/", may(service.ActionCreateChallenge), s.AdminCreateChallenge)
	adminChallenges.Post("/import", may(service.ActionCreateChallenge), s.AdminImportChallenges)
	adminChallenges.Get("/:id", may(service.ActionViewHiddenChallenges), s.AdminGetChallenge)
	adminChallenges.Put("/:id", may(service.ActionEditChallenge), s.AdminUpdateChallenge)
	adminChallenges.Post("/:id/hide", may(service.ActionEditChallenge), s.AdminHideChallenge)
	adminChallenges.Post("/:id/unhide", may(service.ActionEditChallenge), s.AdminUnhideChallenge)
	adminChallenges.Delete("/:id", may(service.ActionDeleteChallenge), s.AdminDeleteChallenge)

	adminUsers := admin.Group("/users")
	adminUsers.Get("/", may(service.ActionListUsers), s.AdminListUsers)
	adminUsers.Get("/admins", may(service.ActionListUsers), s.AdminListAdmins)
	adminUsers.Post("/:id/promote", may(service.ActionChangeRole), s.PromoteToAdmin)
	adminUsers.Post("/:id/demote", may(service.ActionChangeRole), s.DemoteFromAdmin)
	adminUsers.Delete("/:id", may(service.ActionDeleteUser), s.AdminDeleteUser)

	admin.Put("/posts/:id", may(service.ActionEditContent), s.AdminUpdatePost)
	admin.Delete("/posts/:id", may(service.ActionDeleteContent), s.AdminDeletePost)
	admin.Delete("/comments/:id", may(service.ActionDeleteContent), s.AdminDeleteComment)

	admin.Post("/reset-solves", may(service.ActionResetSolves), s.ResetSolves)
}

// App builds a Fiber app with the full middleware chain and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "CTF Arena API",
		BodyLimit: 4 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	// Wire all hubs to Redis subscriber if available
	if s.redis != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
				}
			}()
		}
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
