// Package app initializes and runs the main application service.
// It configures logging, storage, authentication, uploads and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mpetrenko/geotaglog/internal/auth"
	"github.com/mpetrenko/geotaglog/internal/config"
	"github.com/mpetrenko/geotaglog/internal/db/jsondb"
	"github.com/mpetrenko/geotaglog/internal/db/memorystorage"
	"github.com/mpetrenko/geotaglog/internal/db/postgresdb"
	"github.com/mpetrenko/geotaglog/internal/db/storage"
	"github.com/mpetrenko/geotaglog/internal/filesremover"
	"github.com/mpetrenko/geotaglog/internal/imagestore"
	"github.com/mpetrenko/geotaglog/internal/ipchecker"
	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/router"
	"github.com/mpetrenko/geotaglog/internal/service"
)

// App encapsulates the configuration, HTTP handler, storage backend and
// the background files remover needed to run the photo journal service.
type App struct {
	cfg              *config.Config
	db               storage.Storage
	filesRemover     *filesremover.FilesRemover
	stopFilesRemover context.CancelFunc
	httpHandler      http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the uploads directory and the background files remover
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	images, err := imagestore.New(app.cfg.UploadsDir)
	if err != nil {
		return nil, err
	}

	app.filesRemover = filesremover.New(
		images,
		app.cfg.RemoverChannelCapacity,
		app.cfg.RemoverFlushInterval,
	)
	filesRemoverRunCtx, stopFilesRemover := context.WithCancel(context.Background())
	app.stopFilesRemover = stopFilesRemover

	app.filesRemover.Run(filesRemoverRunCtx)
	app.filesRemover.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.filesRemover.ListenErrors()`:", err)
	})

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	authn := auth.New([]byte(app.cfg.JWTSigningSecretKey), app.cfg.TokenTTL)

	app.httpHandler = router.New(
		service.New(app.db, authn, app.filesRemover),
		images,
		authn,
		checker,
		app.cfg.MaxUploadSize,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopFilesRemover()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
