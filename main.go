package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"usersvc/internal/config"
	"usersvc/internal/handlers"
	"usersvc/internal/middleware"
	"usersvc/internal/repositories"
	"usersvc/internal/services"
	"usersvc/pkg/cache"
	"usersvc/pkg/database"
	"usersvc/pkg/logger"
	"usersvc/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg := config.MustLoad()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	// --- Storage ---
	repo, closeStorage, err := openRepository(startCtx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to open storage", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer closeStorage()

	// --- Optional RabbitMQ publisher and audit consumer ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, zl)
		if err != nil {
			zl.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.ConsumeUserEvents(rabbitmq.AuditHandler(zl)); err != nil {
			zl.Error("failed to start RabbitMQ consumer", zap.Error(err))
		}
	}

	// --- Optional Redis cache ---
	var userCache *cache.Client
	if cfg.RedisAddr != "" {
		userCache = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zl)
		defer userCache.Close()
		if err := userCache.Ping(startCtx); err != nil {
			zl.Warn("redis unreachable, continuing without cache hits", zap.Error(err))
		}
	}

	userService := services.NewUserService(repo, publisher, userCache, cfg.CacheTTL, cfg.BcryptSaltRounds, zl)
	app := NewApp(zl, userService, repo)

	// --- Start HTTP Server ---
	zl.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.AppEnv), zap.String("driver", cfg.DBDriver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("shutting down server")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zl.Error("error during fiber shutdown", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
}

// NewApp wires middleware, the liveness routes and the /api routes.
func NewApp(zl *zap.Logger, userService *services.UserService, storage handlers.Pinger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "usersvc",
		ErrorHandler: handlers.ErrorHandler(zl),
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.Logging(zl))
	app.Use(recover.New())
	app.Use(cors.New())

	handlers.NewHealthHandler(storage, zl).RegisterRoutes(app)

	api := app.Group("/api")
	handlers.NewUserHandler(userService).RegisterRoutes(api)

	return app
}

// openRepository builds the UserRepository for cfg.DBDriver and returns a func releasing it.
func openRepository(ctx context.Context, cfg *config.Config, zl *zap.Logger) (repositories.UserRepository, func(), error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		zl.Warn("using in-memory storage, data is lost on exit")
		return repositories.NewMemoryUserRepository(), func() {}, nil

	case config.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.DatabaseURL, zl)
		if err != nil {
			return nil, nil, err
		}
		repo := repositories.NewMongoUserRepository(client, cfg.DatabaseName)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				zl.Error("mongo disconnect failed", zap.Error(err))
			}
		}
		return repo, closeFn, nil

	case config.DriverPostgres, config.DriverMySQL, config.DriverSQLite:
		db, err := database.OpenGorm(ctx, cfg.DBDriver, cfg.DatabaseURL, zl, database.LogLevelFor(cfg.AppEnv))
		if err != nil {
			return nil, nil, err
		}
		if err := repositories.MigrateGORM(db); err != nil {
			_ = database.CloseGorm(db)
			return nil, nil, err
		}
		closeFn := func() {
			if err := database.CloseGorm(db); err != nil {
				zl.Error("database close failed", zap.Error(err))
			}
		}
		return repositories.NewGORMUserRepository(db), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
}
