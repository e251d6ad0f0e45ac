package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"shopops/portal/internal/api"
	"shopops/portal/internal/auth"
	"shopops/portal/internal/cache"
	"shopops/portal/internal/config"
	"shopops/portal/internal/db"
	"shopops/portal/internal/email"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
	"shopops/portal/internal/tasks"
)

const shutdownTimeout = 15 * time.Second

// app holds the connections shared by every command.
type app struct {
	cfg         *config.Config
	mongoClient *mongo.Client
	db          *mongo.Database
	rdb         *redis.Client
}

func connect(cfg *config.Config) (*app, error) {
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = db.DisconnectDB(mongoClient)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &app{cfg: cfg, mongoClient: mongoClient, db: mongoDb, rdb: redisClient}, nil
}

func (a *app) close() {
	if err := cache.DisconnectRedis(a.rdb); err != nil {
		logger.Error("Error disconnecting from Redis", err)
	}
	if err := db.DisconnectDB(a.mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", err)
	}
}

// emailSender builds the outgoing mail chain: SMTP (or Redis capture with
// MOCK_SERVICES) plus an optional LOG_EMAILS file copy.
func (a *app) emailSender() email.Sender {
	var primary email.Sender
	if a.cfg.MockServices {
		logger.Info("MOCK_SERVICES enabled: using Redis email sender")
		primary = email.NewRedisSender(a.rdb, a.cfg.SmtpFromAddress)
	} else {
		primary = email.NewSMTPSender(a.cfg)
	}

	composite := email.NewCompositeEmailSender(primary)
	if a.cfg.EmailLogFile != "" {
		fileSender, err := email.NewFileEmailSender(a.cfg.EmailLogFile)
		if err != nil {
			logger.Error("Failed to initialize file email sender, continuing without it", err,
				zap.String("path", a.cfg.EmailLogFile))
		} else {
			composite.AddSender(fileSender)
			logger.Info("File email logger enabled", zap.String("path", a.cfg.EmailLogFile))
		}
	}
	return composite
}

// serve runs the servers for cfg.RunMode until ctx is cancelled or the
// service API asks for a shutdown.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.RunMode {
	case "api", "bg", "all":
	default:
		return fmt.Errorf("invalid run mode %q (expected api, bg or all)", cfg.RunMode)
	}

	indexCtx, cancelIndex := context.WithTimeout(ctx, 30*time.Second)
	err := db.EnsureIndexes(indexCtx, a.db)
	cancelIndex()
	if err != nil {
		return err
	}

	svc, err := api.NewServices(cfg, a.db, a.rdb)
	if err != nil {
		return err
	}

	taskClient := tasks.NewClient(a.rdb)
	defer taskClient.Close()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	serverErr := make(chan error, 3)
	shutdownChan := make(chan struct{}, 1)

	listen := func(name string, srv *http.Server) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info(name+" listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("%s: %w", name, err)
			}
			logger.Info(name + " stopped")
		}()
	}

	// Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(a.db, a.rdb, shutdownChan),
	}
	listen("Service API", serviceSrv)

	logger.Info("Starting application", zap.String("mode", cfg.RunMode))

	var mainApiSrv *http.Server
	if cfg.RunMode == "api" || cfg.RunMode == "all" {
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           api.SetupRouter(runCtx, cfg, svc, taskClient),
			ReadHeaderTimeout: 10 * time.Second,
		}
		listen("Main API", mainApiSrv)
	}

	var workerSrv *asynq.Server
	var scheduler *asynq.Scheduler
	if cfg.RunMode == "bg" || cfg.RunMode == "all" {
		processor := tasks.NewTaskProcessor(cfg, a.emailSender(), svc.Storage, svc.Tasks, svc.Reports)
		var mux *asynq.ServeMux
		workerSrv, mux = tasks.SetupServer(a.rdb, processor)
		if err := workerSrv.Start(mux); err != nil {
			return fmt.Errorf("failed to start background worker: %w", err)
		}
		logger.Info("Background worker started")

		scheduler, err = tasks.NewScheduler(a.rdb, cfg)
		if err != nil {
			workerSrv.Shutdown()
			return err
		}
		if err := scheduler.Start(); err != nil {
			workerSrv.Shutdown()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		logger.Info("Scheduler started",
			zap.String("daily_summary", cfg.DailySummaryCron), zap.String("purge", cfg.PurgeCron))
	}

	// --- Graceful Shutdown ---
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
	case <-shutdownChan:
		logger.Info("Shutdown requested via service API")
	case runErr = <-serverErr:
		logger.Error("Server failed, shutting down", runErr)
	}
	cancelRun()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Service API shutdown error", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("Main API shutdown error", err)
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if workerSrv != nil {
		workerSrv.Shutdown()
	}

	wg.Wait()
	logger.Info("Server gracefully stopped")
	return runErr
}

// bootstrap loads configuration, initializes logging and connects to the stores.
func bootstrap(runMode string) (*app, error) {
	cfg, err := config.Load(runMode)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(cfg.LogDevelopment); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return connect(cfg)
}

func newServeCmd() *cobra.Command {
	var runMode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and/or the background worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(runMode)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&runMode, "mode", "m", "all", "Run mode: 'api', 'bg' (background tasks and scheduler), 'all'")
	return cmd
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal accounts",
	}

	var in services.CreateUserInput
	var role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a portal account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap("cli")
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.EnsureIndexes(cmd.Context(), a.db); err != nil {
				return err
			}
			in.Role = models.Role(role)
			user, err := services.NewUserService(a.db).CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %s\n", user.Username, user.ID.Hex(), user.Role)
			return nil
		},
	}
	createCmd.Flags().StringVar(&in.Name, "name", "", "display name")
	createCmd.Flags().StringVar(&in.Username, "username", "", "login name")
	createCmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	createCmd.Flags().StringVar(&role, "role", string(models.RoleStaff), "admin, developer, staff or user")
	createCmd.Flags().StringVar(&in.Department, "department", "", "department")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func newTokenCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap("cli")
			if err != nil {
				return err
			}
			defer a.close()

			user, err := services.NewUserService(a.db).FindByUsername(cmd.Context(), username)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("no account named %q", username)
				}
				return err
			}
			if !user.Active {
				return fmt.Errorf("account %q is inactive", username)
			}
			token, err := auth.GenerateJWT(user, a.cfg.JwtSecret, a.cfg.JwtTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account to issue the token for")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "Shop operations portal backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newUserCmd(), newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
