package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	warehouse "github.com/goliatone/go-warehouse"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	debug := flag.Bool("debug", false, "log request payloads")
	flag.Parse()

	logger := warehouse.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := warehouse.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapSchema(ctx, db); err != nil {
		logger.Error("failed to bootstrap schema: %v", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	repo := warehouse.NewRepositoryManager(db)
	repo.MustValidate()

	tokens := warehouse.NewTokenService(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		logger,
	)
	actions := warehouse.NewActionTokenCodec(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.ActionTokenSalt,
		cfg.Auth.ActionTokenMaxAge,
	)
	hasher := warehouse.NewBcryptHasher(cfg.Auth.BcryptCost)
	blocklist := warehouse.NewRedisBlocklist(rdb)
	mailer := warehouse.NewRedisMailQueue(rdb, cfg.Redis.MailQueueKey)

	auther := warehouse.NewAuther(repo, tokens, actions, hasher, blocklist, mailer).
		WithLogger(logger).
		WithBaseURL(cfg.BaseURL).
		WithAccessTTL(cfg.Auth.AccessTokenTTL).
		WithHashIDs(cfg.Auth.UseHashIDs)

	worker := warehouse.NewMailWorker(
		rdb,
		cfg.Redis.MailQueueKey,
		warehouse.LogSender{Logger: logger},
		logger,
	)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mail worker stopped: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "warehouse",
		ErrorHandler: warehouse.ErrorHandler,
	})

	controller := warehouse.NewController(
		warehouse.WithControllerLogger(logger),
		warehouse.WithControllerRepo(repo),
		warehouse.WithControllerAuther(auther),
		warehouse.WithControllerTokens(tokens, blocklist),
		warehouse.WithControllerDebug(*debug),
	)
	controller.Register(app)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error("server shutdown error: %v", err)
		}
	}()

	logger.Info("listening on %s", cfg.HTTPAddr)
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logger.Error("server error: %v", err)
		os.Exit(1)
	}
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*warehouse.ItemTag)(nil))

	return db, nil
}

func bootstrapSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*warehouse.User)(nil),
		(*warehouse.Item)(nil),
		(*warehouse.Note)(nil),
		(*warehouse.Tag)(nil),
		(*warehouse.ItemTag)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
