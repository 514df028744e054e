package main

import (
	"context"
	_ "embed"
	"flag"
	"os"
	"strings"

	"filehost/pkg/accounts"
	"filehost/pkg/config"
	"filehost/pkg/log"
	"filehost/pkg/metadata"
	"filehost/pkg/retrieval"
	"filehost/pkg/server"
	"filehost/pkg/store"
	"filehost/pkg/store/disk"
	"filehost/pkg/upload"
)

//go:embed VERSION
var Version string

func main() {
	env := flag.String("env", "", "Runtime environment, selects .env.<env> files (defaults to APP_ENV)")
	envDir := flag.String("env-dir", ".", "Directory holding the .env files")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*envDir, *env)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Configure(cfg.Env, *debug)
	log.Info().
		Str("env", cfg.Env).
		Strs("env_files", cfg.Files).
		Str("upload_dir", cfg.UploadDir).
		Int64("max_file_size", cfg.MaxFileSize).
		Int("max_file_count", cfg.MaxFileCount).
		Str("db_driver", cfg.DBDriver).
		Msg("Configuration loaded")

	content := disk.New(cfg.UploadDir, cfg.MaxFileSize)
	if err := content.EnsureDir(); err != nil {
		log.Fatal().Err(err).Str("upload_dir", cfg.UploadDir).Msg("Failed to create upload directory")
	}

	meta, err := metadata.Open(context.Background(), metadata.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Str("db_driver", cfg.DBDriver).Msg("Failed to open metadata store")
	}

	srv := server.New(server.Options{
		Version:      strings.TrimSpace(Version),
		MaxFileSize:  cfg.MaxFileSize,
		MaxFileCount: cfg.MaxFileCount,
		Accounts:     accounts.New(meta, 0),
		Uploads:      upload.New(meta, content, store.NewPolicy(cfg.MaxFileSize, cfg.MaxFileCount)),
		Files:        retrieval.New(meta, content),
		Database:     meta,
		Storage:      content,
	})

	exitCode := 0
	if err := srv.Start(cfg.Addr); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		exitCode = 1
	}

	if err := meta.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close metadata store")
		exitCode = 1
	}
	log.Info().Msg("Shutdown complete")

	os.Exit(exitCode)
}
