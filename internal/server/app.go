// Package server assembles and runs the file relay: it opens the database,
// applies migrations, connects the blob backend and starts the HTTP server
// together with the expiry reaper.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ajeevsan/fileUpload-backend/internal/cryptox"
	"github.com/ajeevsan/fileUpload-backend/internal/formatx"
	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	"github.com/ajeevsan/fileUpload-backend/internal/server/blob"
	"github.com/ajeevsan/fileUpload-backend/internal/server/config"
	"github.com/ajeevsan/fileUpload-backend/internal/server/httpapi"
	"github.com/ajeevsan/fileUpload-backend/internal/server/reaper"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/repomanager"
	"github.com/ajeevsan/fileUpload-backend/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	reaper     *reaper.Reaper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	backend, err := blob.NewS3Backend(ctx, blob.S3Config{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob backend init error: %w", err)
	}

	codec := cryptox.NewCodec(cryptox.Config{
		Salt:          []byte(cfg.EncryptionSalt),
		Authenticated: cfg.AuthenticatedEncryption,
	})
	guard := formatx.NewGuard(formatx.DefaultFormats)

	svc := services.NewUploadService(db, rm, backend, codec, guard, logger, cfg)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		httpServer: httpapi.NewServer(cfg, logger, svc),
		reaper:     reaper.New(db, rm, backend, logger, cfg.SweepInterval),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reaper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.logger.Info(ctx, "App stopped")
}
