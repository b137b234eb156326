package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/docflow-api/api/swagger"
	"github.com/noah-isme/docflow-api/internal/handler"
	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/internal/router"
	"github.com/noah-isme/docflow-api/pkg/config"
	"github.com/noah-isme/docflow-api/pkg/database"
	"github.com/noah-isme/docflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docflow-api/pkg/middleware/cors"
)

// @title Docflow API
// @version 1.0.0
// @description Document approval workflow service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "docflow-api",
	Short:        "Document approval workflow service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, realtime hub and reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Database.AutoMigrate {
			if err := database.RunMigrations(a.db.DB, a.logger); err != nil {
				return err
			}
		}
		if a.stream != nil {
			a.stream.Start(ctx)
		}
		if a.cfg.Reminders.Enabled {
			go a.reminders.Run(ctx)
		}

		checks := map[string]handler.Pinger{"postgres": a.db}
		if a.redis != nil {
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
				return a.redis.Ping(ctx).Err()
			})
		}

		origins := corsmiddleware.NewPolicy(a.cfg.CORS.AllowedOrigins)
		engine := router.Setup(a.cfg, a.logger, a.auth, a.metrics, router.Handlers{
			Auth:          handler.NewAuthHandler(a.auth),
			Users:         handler.NewUserHandler(a.users),
			Files:         handler.NewFileHandler(a.files),
			Notifications: handler.NewNotificationHandler(a.notifications),
			Reminders:     handler.NewReminderHandler(a.reminders),
			Metrics:       handler.NewMetricsHandler(a.metrics, checks),
			Realtime:      realtime.NewHandler(a.hub, a.auth, a.cfg.Realtime, origins.CheckOrigin, a.logger),
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logr.Sync() //nolint:errcheck

		db, err := database.NewPostgres(cmd.Context(), cfg.Database, logr)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		down, _ := cmd.Flags().GetInt("down")
		if down > 0 {
			return database.RollbackMigration(db.DB, down, logr)
		}
		return database.RunMigrations(db.DB, logr)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reminder sweep and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sent, err := a.reminders.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reminders sent: %d\n", sent)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
}
