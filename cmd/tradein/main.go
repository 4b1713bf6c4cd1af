package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradein/internal/catalogfeed"
	"tradein/internal/config"
	"tradein/internal/http/handlers"
	applog "tradein/internal/log"
	"tradein/internal/repos"
)

func main() {
	cfg := config.Load()

	l, err := applog.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		applog.L().Warn("log.file.unavailable", zap.String("path", cfg.LogFile), zap.Error(err))
	} else {
		applog.Use(l)
	}
	defer func() { _ = applog.L().Sync() }()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		applog.L().Fatal("db.open", zap.Error(err))
	}
	defer db.Close()
	if cfg.SeedUsers {
		if err := repos.SeedUsers(db); err != nil {
			applog.L().Fatal("seed.users", zap.Error(err))
		}
	}

	deps := handlers.NewDeps(db, cfg)

	if cfg.CatalogSeed != "" {
		records, err := catalogfeed.LoadFile(cfg.CatalogSeed)
		if err != nil {
			applog.L().Fatal("catalog.seed", zap.Error(err))
		}
		if _, err := deps.Catalog.Ingest(context.Background(), records); err != nil {
			applog.L().Fatal("catalog.seed", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := string(c.Request().URI().Path())
			return strings.HasPrefix(p, "/healthz") || strings.HasPrefix(p, "/metrics")
		},
	}))

	deps.Mount(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.L().Info("http.listen", zap.String("port", cfg.Port))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		applog.L().Error("http.stopped", zap.Error(err))
	}
}
