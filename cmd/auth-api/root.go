package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sessionkit/auth-api/internal/config"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = config.EnvProd
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "auth-api",
	Short: "Cookie-based session and authorization API",
	Long: `auth-api issues access/refresh token pairs in HttpOnly cookies,
rotates refresh tokens, registers users and gates routes by role, tier and rate limits.`,
	SilenceUsage: true,
}

// Execute запускает корневую команду.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig загружает конфигурацию и настраивает логгер по умолчанию.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	return cfg, log, nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
