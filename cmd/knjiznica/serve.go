package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/api"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "listen address (overrides config)")
	serveCmd.Flags().String("jwt-secret", "", "JWT signing key (overrides config)")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics (overrides config)")
	serveCmd.Flags().StringP("user", "u", "admin", "admin username when the database is created")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. A missing database is created on first start together
with an admin account whose generated password is printed once.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("jwt-secret") {
		cfg.Server.JWTSecret, _ = flags.GetString("jwt-secret")
	}
	if flags.Changed("metrics") {
		cfg.Server.Metrics, _ = flags.GetBool("metrics")
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	// First run: create the database and an admin account.
	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
		adminUser, _ := flags.GetString("user")
		database, password, err := initDatabase(cfg.Database.Path, adminUser, "")
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.Database.Path, adminUser, password, true)
		fmt.Println()
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	jwtSecret, err := resolveSecret(database, cfg.Server.JWTSecret)
	if err != nil {
		return err
	}

	svc := lending.NewService(database, lending.WithPolicy(policy), lending.WithLogger(slog.Default()))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(database, jwtSecret, svc, cfg.Server.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr, "metrics", cfg.Server.Metrics,
		"loan_period_days", policy.LoanPeriodDays, "fine_per_day", policy.FinePerDay,
		"timezone", policy.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// resolveSecret returns the configured secret, or the one kept in the
// database when none is configured.
func resolveSecret(database *sql.DB, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	secret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		return "", fmt.Errorf("loading JWT secret: %w", err)
	}
	return secret, nil
}
