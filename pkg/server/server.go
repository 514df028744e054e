// Package server exposes the account, upload and retrieval services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"filehost/pkg/accounts"
	"filehost/pkg/log"
	"filehost/pkg/models"
	"filehost/pkg/retrieval"
	"filehost/pkg/upload"
)

const (
	shutdownTimeout = 10
	syncTimeout     = 30
	// Room for multipart boundaries, headers and the userId field on top of the file bytes.
	multipartOverhead = 1 << 20
)

// Accounts registers users and checks credentials.
type Accounts interface {
	Register(ctx context.Context, req accounts.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req accounts.LoginRequest) (*models.User, error)
}

// Uploads stores and lists a user's files.
type Uploads interface {
	Upload(ctx context.Context, req upload.Request) ([]models.FileDescriptor, error)
	ListFiles(ctx context.Context, userID string) ([]models.FileDescriptor, error)
}

// Files serves stored files.
type Files interface {
	Open(ctx context.Context, storageName string) (*retrieval.Object, error)
	Info(ctx context.Context, storageName string) (*models.FileDescriptor, error)
	Verify(ctx context.Context, storageName string) (*models.Verification, error)
}

// Pinger checks the metadata database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UsageReporter reports disk usage of the content store.
type UsageReporter interface {
	Usage() (*models.StorageInfo, error)
}

// Options wires the services into a Server.
type Options struct {
	Version      string
	MaxFileSize  int64
	MaxFileCount int
	Accounts     Accounts
	Uploads      Uploads
	Files        Files
	Database     Pinger
	Storage      UsageReporter
}

// Server is the HTTP front of the file host.
type Server struct {
	echo      *echo.Echo
	version   string
	bodyLimit int64
	accounts  Accounts
	uploads   Uploads
	files     Files
	database  Pinger
	storage   UsageReporter
}

// New creates a server with its routes registered.
func New(opts Options) *Server {
	srv := &Server{
		echo:      echo.New(),
		version:   opts.Version,
		bodyLimit: opts.MaxFileSize*int64(opts.MaxFileCount) + multipartOverhead,
		accounts:  opts.Accounts,
		uploads:   opts.Uploads,
		files:     opts.Files,
		database:  opts.Database,
		storage:   opts.Storage,
	}
	srv.setupRoutes()
	return srv
}

// Handler returns the HTTP handler, mostly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.echo
}

// Start serves on addr until SIGINT or SIGTERM, then shuts down gracefully.
func (srv *Server) Start(addr string) error {
	errCh := make(chan error, 1)

	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", srv.version).
			Int64("body_limit", srv.bodyLimit).
			Msg("Starting file host server")

		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Server startup failed")
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Signal received")
	}

	return srv.Shutdown()
}

// Shutdown drains in-flight requests and flushes filesystem buffers.
func (srv *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")

	syncCtx, syncCancel := context.WithTimeout(context.Background(), syncTimeout*time.Second)
	defer syncCancel()

	cmd := exec.CommandContext(syncCtx, "sync")
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Msg("Sync command failed")
	} else {
		log.Info().Msg("Filesystem buffers flushed successfully")
	}

	return nil
}

func (srv *Server) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true

	srv.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	srv.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))

	// Downloads must return the stored bytes verbatim, so no gzip middleware.
	srv.echo.Use(middleware.Recover())

	srv.echo.GET("/", srv.serveSwaggerUI)
	srv.echo.GET("/swagger.yml", srv.serveSwaggerSpec)
	srv.echo.GET("/health", srv.health)

	api := srv.echo.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", srv.register)
	auth.POST("/login", srv.login)

	files := api.Group("/files")
	files.POST("/upload", srv.uploadFiles, middleware.BodyLimit(bodyLimitString(srv.bodyLimit)))
	files.GET("/user/:userId", srv.listFiles)
	files.GET("/download/:filename", srv.downloadFile)
	files.GET("/info/:filename", srv.getFileInfo)
	files.GET("/verify/:filename", srv.verifyFile)
}

// bodyLimitString renders a byte count in the form echo's BodyLimit parses, rounded up to KiB.
func bodyLimitString(limit int64) string {
	const kib = 1 << 10
	return fmt.Sprintf("%dK", (limit+kib-1)/kib)
}
