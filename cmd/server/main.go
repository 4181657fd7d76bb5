package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/internal/api/handlers"
	"github.com/maheshrc27/xpilot/internal/api/middleware"
	"github.com/maheshrc27/xpilot/internal/database"
	job "github.com/maheshrc27/xpilot/internal/jobs"
	"github.com/maheshrc27/xpilot/internal/queue"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/internal/transfer"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	log := logger.Init(cfg.LogLevel)
	if envErr != nil {
		log.WithError(envErr).Warn("no .env file loaded")
	}

	cipher, err := utils.NewCipher(cfg.SecretKey)
	if err != nil {
		log.WithError(err).Fatal("invalid SECRET_KEY")
	}

	db, err := database.Connect(cfg.PostgresURI)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer closeDB(db)

	if cfg.RunMigrations {
		if err := database.RunMigrations(db); err != nil {
			log.WithError(err).Fatal("failed to run migrations")
		}
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	tokenRepo := repository.NewAccountTokenRepository(db)
	appRepo := repository.NewAppCredentialRepository(db)
	loopRepo := repository.NewLoopRepository(db)
	lockRepo := repository.NewLoopLockRepository(db)
	postRepo := repository.NewPostRepository(db)
	duplicateRepo := repository.NewDuplicateAttemptRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)
	followRepo := repository.NewFollowRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifier := service.NewNotificationService(notificationRepo)
	rateLimits := service.NewRateLimitService(rateLimitRepo)
	clients := service.NewXClientProvider(cfg, log, appRepo, cipher, rateLimits)
	tokenService := service.NewTokenService(cfg, tokenRepo, appRepo, cipher, clients, notifier)
	lockService := service.NewLoopLockService(lockRepo)
	duplicateGuard := service.NewDuplicateService(cfg, postRepo, duplicateRepo)
	postService := service.NewPostService(cfg, postRepo, tokenService, clients, duplicateGuard, notifier)
	ctaService := service.NewCTAService(cfg, loopRepo, postRepo, tokenService, clients, notifier)
	loopService := service.NewLoopService(cfg, loopRepo, postRepo, lockService, postService, ctaService)
	unfollowService := service.NewUnfollowService(cfg, followRepo, tokenService, clients, notifier)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: 15 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.FromContext(c.UserContext()).WithError(err).Error("request failed")
			return c.Status(code).JSON(transfer.JobResponse{
				Success: false,
				Error:   err.Error(),
				TraceID: handlers.GetTraceID(c),
			})
		},
	})

	app.Use(recover.New())
	app.Use(middleware.Trace())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Trace-Id",
		MaxAge:       3600,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	jobs := app.Group("/jobs")
	jobs.Use(authMiddleware.AuthMiddleware())

	jobHandler := handlers.NewJobHandler(tokenService, postService, loopService, unfollowService,
		rateLimits, lockService, duplicateGuard, client)
	jobHandler.Register(jobs)

	// cron jobs
	c := cron.New()
	if cfg.EnableCron {
		err := job.Schedule(c, cfg.Schedules, job.Jobs{
			Tokens:   job.NewTokenRefreshJob(tokenService),
			Posts:    job.NewPostSweepJob(postService),
			Loops:    job.NewLoopJob(loopService),
			Unfollow: job.NewUnfollowJob(unfollowService),
		})
		if err != nil {
			log.WithError(err).Fatal("failed to schedule jobs")
		}
		c.Start()
	}

	// queue
	var worker *asynq.Server
	if cfg.EnableWorker {
		worker = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.JobConcurrency,
			Logger:      log,
		})
		mux := asynq.NewServeMux()
		queue.NewQueue(postService, loopService).Register(mux)

		go func() {
			log.Info("starting the asynq worker")
			if err := worker.Run(mux); err != nil {
				log.WithError(err).Fatal("could not start asynq worker")
			}
		}()
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
	}()
	log.WithField("port", cfg.Port).Info("server is running")

	gracefulShutdown(app, c, worker)
}

func closeDB(db *sql.DB) {
	log := logger.Get()
	if err := db.Close(); err != nil {
		log.WithError(err).Error("failed to close database")
		return
	}
	log.Info("database connection closed")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, worker *asynq.Server) {
	log := logger.Get()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server")

	c.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.WithError(err).Error("failed to shut down server")
	}

	log.Info("server shutdown complete")
}
