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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/prescription"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/druginfo"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/notification"
	"github.com/hms/hms/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(serveDrugInfoCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(adminCmd())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hospital API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func serveDrugInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-druginfo",
		Short: "Start the drug information service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrugInfo()
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
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
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
			})
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("missing required environment variables: DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an approved administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg.Env, "hms-admin")
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := staff.NewService(staff.NewRepoPG(pool), auth.NewTokenIssuer(cfg.JWTSecret), newDispatcher(cfg, logger), logger)
			a, err := svc.CreateAdmin(ctx, username, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("Created admin %s (%s)\n", a.Username, a.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Admin username")
	createCmd.Flags().String("email", "", "Admin email")
	createCmd.Flags().String("password", "", "Admin password")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(env, service string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("service", service).Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
}

// newDispatcher falls back to logging senders for any channel without
// provider credentials.
func newDispatcher(cfg *config.Config, logger zerolog.Logger) *notification.Dispatcher {
	var sms notification.SMSSender = notification.LogSender{Logger: logger}
	if cfg.SMSConfigured() {
		sms = notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.SMSCountryCode)
	}
	var email notification.EmailSender = notification.LogSender{Logger: logger}
	if cfg.EmailConfigured() {
		email = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return notification.NewDispatcher(email, sms, notification.NewTemplateEngine(), logger)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	return e
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, "hms-api")
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	dayLoc, _ := cfg.ConflictLocation()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if migrate {
		n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	files, err := blobstore.NewFileStore(cfg.PrescriptionsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open prescriptions directory")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret)
	authn := auth.Authenticate(tokens)
	policy := auth.DefaultPolicy()
	notify := newDispatcher(cfg, logger)
	tx := db.NewRunner(pool)

	staffSvc := staff.NewService(staff.NewRepoPG(pool), tokens, notify, logger)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), tx, tokens, notify, logger)
	inboxSvc := inbox.NewService(inbox.NewRepoPG(pool))
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), tx, staffSvc, patientSvc, inboxSvc, dayLoc, logger)
	rxSvc := prescription.NewService(patientSvc, staffSvc, files, inboxSvc, logger)

	e := newEcho(cfg, logger)
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api", middleware.RateLimit(rateLimitConfig(cfg)))
	otpLimit := middleware.RateLimit(middleware.OTPRateLimitConfig())

	staff.NewHandler(staffSvc).RegisterRoutes(api, authn, policy)
	patient.NewHandler(patientSvc).RegisterRoutes(api, authn, policy, otpLimit)
	appointment.NewHandler(apptSvc).RegisterRoutes(api, authn, policy)
	prescription.NewHandler(rxSvc).RegisterRoutes(api, authn, policy)
	inbox.NewHandler(inboxSvc).RegisterRoutes(api, authn, policy)

	return serve(e, ":"+cfg.Port, logger)
}

func runDrugInfo() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, "hms-druginfo")
	if err := cfg.ValidateDrugInfo(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	gen, err := druginfo.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create AI client")
	}
	defer gen.Close()

	var cache druginfo.Cache
	if cfg.MongoURI != "" {
		client, database, err := druginfo.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to mongodb")
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()
		mc := druginfo.NewMongoCache(database.Collection(druginfo.CacheCollection))
		if err := mc.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to create drug cache indexes")
		}
		cache = mc
		logger.Info().Str("database", cfg.MongoDatabase).Msg("drug details cache enabled")
	}

	resolver := druginfo.NewResolver(gen, cache, cfg.DrugBatchSize, logger)

	e := newEcho(cfg, logger)
	e.Use(middleware.BodyLimitBytes(cfg.UploadMaxBytes + 1<<20))
	e.Use(middleware.RequestTimeout(2 * time.Minute))

	api := e.Group("/api", middleware.RateLimit(rateLimitConfig(cfg)))
	druginfo.NewHandler(resolver, cfg.UploadMaxBytes, cfg.Env, logger).RegisterRoutes(api)

	return serve(e, ":"+cfg.DrugInfoPort, logger)
}

// serve runs e until SIGINT or SIGTERM, then drains in-flight requests.
func serve(e *echo.Echo, addr string, logger zerolog.Logger) error {
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
