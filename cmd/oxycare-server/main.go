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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oxycare/oxycare/internal/config"
	"github.com/oxycare/oxycare/internal/domain/catalog"
	"github.com/oxycare/oxycare/internal/domain/dashboard"
	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/identity"
	"github.com/oxycare/oxycare/internal/domain/insurance"
	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/invoicing"
	"github.com/oxycare/oxycare/internal/domain/medicalrecord"
	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/domain/rental"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/cache"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/internal/platform/httpx"
	"github.com/oxycare/oxycare/internal/platform/middleware"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "oxycare-server",
		Short:        "OxyCare home medical equipment API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && l != zerolog.NoLevel {
			level = l
		}
	}
	return logger.Level(level)
}

// connect loads the configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions())
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir := cfg.MigrationsDir
			if cmd.Flags().Changed("dir") {
				dir, _ = cmd.Flags().GetString("dir")
			}
			count, err := db.NewMigrator(pool, dir).Up(ctx)
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
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir := cfg.MigrationsDir
			if cmd.Flags().Changed("dir") {
				dir, _ = cmd.Flags().GetString("dir")
			}
			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
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

// defaultAccounts are created by `seed admin` when missing.
var defaultAccounts = []identity.RegisterRequest{
	{Email: "admin@oxycare.com", Password: "admin", Nom: "Admin", Prenom: "OxyCare", Role: auth.RoleAdmin},
	{Email: "technicien@oxycare.com", Password: "technicien", Nom: "Technicien", Prenom: "OxyCare", Role: auth.RoleTechnician},
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load initial data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "admin",
		Short: "Create the default admin and technician accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg)
			users := identity.NewService(identity.NewRepoPG(pool), nil, logger)
			for _, acct := range defaultAccounts {
				created, err := users.EnsureUser(ctx, acct)
				if err != nil {
					return fmt.Errorf("seed %s: %w", acct.Email, err)
				}
				if created {
					fmt.Printf("Created %s (%s)\n", acct.Email, acct.Role)
				} else {
					fmt.Printf("%s already exists\n", acct.Email)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "services",
		Short: "Load the default service catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := catalog.NewService(catalog.NewRepoPG(pool), newLogger(cfg))
			n, err := svc.Seed(ctx, catalog.DefaultItems())
			if err != nil {
				return fmt.Errorf("seed services: %w", err)
			}
			fmt.Printf("Added %d service(s) to the catalog.\n", n)
			return nil
		},
	})

	return cmd
}

// newRouter builds the echo instance with every route and middleware. It
// does not touch the database until a request arrives.
func newRouter(cfg *config.Config, pool *pgxpool.Pool, statsCache cache.Cache, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityOptions{HSTS: !cfg.IsDev()}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.LivenessHandler(version))
	e.GET("/health/db", db.HealthHandler(pool))

	tokens := auth.NewTokens([]byte(cfg.JWTSecret), cfg.JWTTTL)

	api := e.Group("/api")
	api.GET("/health", db.LivenessHandler(version))
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	api.Use(auth.JWTMiddleware(auth.JWTConfig{Verifier: tokens, Skipper: auth.AuthSkipper}))
	api.Use(middleware.Audit(logger))

	tx := db.NewTxManager(pool)

	users := identity.NewService(identity.NewRepoPG(pool), tokens, logger)
	patients := patient.NewService(patient.NewRepoPG(pool), logger)
	equipments := equipment.NewService(equipment.NewRepoPG(pool), patients, logger)
	records := medicalrecord.NewService(medicalrecord.NewRepoPG(pool), patients, logger)
	insurers := insurance.NewService(insurance.NewInsuranceRepoPG(pool), insurance.NewCoverageRepoPG(pool), patients, logger)
	services := catalog.NewService(catalog.NewRepoPG(pool), logger)
	interventions := intervention.NewService(intervention.NewRepoPG(pool), tx, patients, equipments, users, services, logger)
	rentals := rental.NewService(rental.NewRepoPG(pool), tx, patients, equipments, logger)
	invoices := invoicing.NewService(invoicing.NewRepoPG(pool), tx, patients, insurers, interventions, rentals, services, logger)
	stats := dashboard.NewService(dashboard.NewRepoPG(pool), statsCache, cfg.DashboardCacheTTL, logger)

	identity.NewHandler(users).RegisterRoutes(api)
	patient.NewHandler(patients).RegisterRoutes(api)
	equipment.NewHandler(equipments).RegisterRoutes(api)
	medicalrecord.NewHandler(records).RegisterRoutes(api)
	insurance.NewHandler(insurers).RegisterRoutes(api)
	catalog.NewHandler(services).RegisterRoutes(api)
	intervention.NewHandler(interventions).RegisterRoutes(api)
	rental.NewHandler(rentals).RegisterRoutes(api)
	invoicing.NewHandler(invoices).RegisterRoutes(api)
	dashboard.NewHandler(stats).RegisterRoutes(api)

	return e
}

// openCache connects to Redis when configured and falls back to no caching.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.Nop{}, func() {}
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, "oxycare:")
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, dashboard cache disabled")
		return cache.Nop{}, func() {}
	}
	logger.Info().Msg("connected to redis")
	return r, func() { _ = r.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	statsCache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	e := newRouter(cfg, pool, statsCache, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
