package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medbill/edi-gateway/internal/config"
	"github.com/medbill/edi-gateway/internal/domain/claims"
	"github.com/medbill/edi-gateway/internal/domain/eligibility"
	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/domain/remittance"
	"github.com/medbill/edi-gateway/internal/platform/db"
	"github.com/medbill/edi-gateway/internal/platform/middleware"
	"github.com/medbill/edi-gateway/internal/platform/poller"
	"github.com/medbill/edi-gateway/internal/platform/transport"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "edi-gateway",
		Short: "Healthcare EDI claims gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and inbound file poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// sweepCmd runs one inbound sweep and exits. Useful from cron or for draining
// a backlog without restarting the server.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single inbound file sweep across payer-direct partners",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			application := buildApp(pool, cfg, logger)
			application.poller.Sweep(ctx)
			return nil
		},
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// app holds the wired services so serve and sweep share one construction path.
type app struct {
	claimsSvc *claims.Service
	eligSvc   *eligibility.Service
	remitSvc  *remittance.Service
	poller    *poller.Poller

	partnerHandler *partner.Handler
	claimsHandler  *claims.Handler
	eligHandler    *eligibility.Handler
	remitHandler   *remittance.Handler
}

func buildApp(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *app {
	partnerRepo := partner.NewRepoPG(pool)
	seq := partner.NewSequencePG(pool)

	// Transports: one gateway per channel. The SFTP client doubles as the
	// inbound fetcher for the poller.
	soapClient := transport.NewSOAPClient(cfg.SOAPTimeout)
	sftpClient := transport.NewSFTPClient(nil)
	gateways := []transport.Gateway{
		transport.NewPayerDirectGateway(soapClient, sftpClient),
		transport.NewClearinghouseClient(cfg.SOAPTimeout),
	}

	claimRepo := claims.NewRepoPG(pool)
	claimsSvc := claims.NewService(claimRepo, partnerRepo, seq, gateways, logger, cfg.AckTimeout)

	eligRepo := eligibility.NewRepoPG(pool)
	eligSvc := eligibility.NewService(eligRepo, partnerRepo, seq, gateways, claimsSvc, logger)

	remitRepo := remittance.NewRepoPG(pool)
	remitSvc := remittance.NewService(remitRepo, claimsSvc, logger)

	p := poller.New(partnerRepo, sftpClient, claimsSvc, remitSvc, cfg.PollInterval, logger)

	return &app{
		claimsSvc: claimsSvc,
		eligSvc:   eligSvc,
		remitSvc:  remitSvc,
		poller:    p,

		partnerHandler: partner.NewHandler(partnerRepo),
		claimsHandler:  claims.NewHandler(claimsSvc),
		eligHandler:    eligibility.NewHandler(eligSvc),
		remitHandler:   remittance.NewHandler(remitSvc),
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	application := buildApp(pool, cfg, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "16M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	if cfg.IsDev() {
		e.Use(middleware.DevAuth())
	} else {
		e.Use(middleware.Auth(cfg.AuthSecret))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	application.partnerHandler.RegisterRoutes(apiV1)
	application.claimsHandler.RegisterRoutes(apiV1)
	application.eligHandler.RegisterRoutes(apiV1)
	application.remitHandler.RegisterRoutes(apiV1)

	// Inbound poller: sweeps payer-direct SFTP mailboxes for 999, 277, and
	// 835 files, and expires stale submissions.
	pollCtx, pollCancel := context.WithCancel(ctx)
	defer pollCancel()
	go application.poller.Run(pollCtx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	pollCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
