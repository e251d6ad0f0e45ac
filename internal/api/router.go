package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"shopops/portal/internal/api/handlers"
	"shopops/portal/internal/api/middleware"
	"shopops/portal/internal/config"
	"shopops/portal/internal/email"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
	"shopops/portal/internal/storage"
)

// Services bundles the service layer the HTTP handlers depend on.
type Services struct {
	Users    services.IUserService
	Tasks    services.ITaskService
	Clients  services.IClientService
	Ledger   services.ILedgerService
	Reports  services.IReportService
	Presence services.IPresenceService
	Storage  storage.IS3Storage
}

// NewServices wires the production services.
func NewServices(cfg *config.Config, db *mongo.Database, rdb *redis.Client) (*Services, error) {
	s3Storage, err := storage.NewS3Storage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
	}
	userService := services.NewUserService(db)
	reportCache := services.NewReportCache(rdb, cfg.ReportCacheTTL)
	return &Services{
		Users:    userService,
		Tasks:    services.NewTaskService(db, userService, cfg.Location, cfg.PaymentMaxRetries, reportCache),
		Clients:  services.NewClientService(db),
		Ledger:   services.NewLedgerService(db, reportCache),
		Reports:  services.NewReportService(db, reportCache),
		Presence: services.NewPresenceService(rdb, cfg.HeartbeatTTL),
		Storage:  s3Storage,
	}, nil
}

// SetupRouter configures and returns the main Gin engine. The rate limiter's
// cleanup goroutine stops when ctx is cancelled.
func SetupRouter(ctx context.Context, cfg *config.Config, svc *Services, taskClient handlers.IAsynqClient) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg.RateLimitRefillRate, cfg.RateLimitBucketSize)

	// Apply global middleware first (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(svc.Users, cfg.JwtSecret, cfg.JwtTTL)
	userHandler := handlers.NewUserHandler(svc.Users)
	taskHandler := handlers.NewTaskHandler(svc.Tasks, svc.Storage, taskClient, cfg.Location)
	clientHandler := handlers.NewClientHandler(svc.Clients)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger, cfg.Location)
	reportHandler := handlers.NewReportHandler(svc.Reports, svc.Presence, cfg.Location)

	privileged := middleware.RequireRoles(models.RoleAdmin, models.RoleDeveloper)

	api := r.Group("/api")
	{
		// Public routes
		api.POST("/auth/login", authHandler.Login)
		api.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := api.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/auth/me", authHandler.Me)

			authRequired.GET("/users", userHandler.ListUsers)
			authRequired.POST("/users", privileged, userHandler.CreateUser)

			tasks := authRequired.Group("/tasks")
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/deleted", privileged, taskHandler.ListDeletedTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PUT("/:id/assign", taskHandler.AssignTask)
			tasks.PUT("/:id/status", taskHandler.UpdateStatus)
			tasks.PUT("/:id/charges", taskHandler.UpdateCharges)
			tasks.POST("/:id/payments", taskHandler.AddPayment)
			tasks.DELETE("/:id", privileged, taskHandler.DeleteTask)
			tasks.POST("/:id/restore", privileged, taskHandler.RestoreTask)
			tasks.POST("/:id/documents/upload-url", taskHandler.DocumentUploadURL)
			tasks.POST("/:id/documents", taskHandler.AttachDocument)

			clients := authRequired.Group("/clients")
			clients.POST("", clientHandler.CreateClient)
			clients.GET("", clientHandler.ListClients)
			clients.GET("/:id", clientHandler.GetClient)
			clients.PUT("/:id", clientHandler.UpdateClient)
			clients.DELETE("/:id", clientHandler.DeleteClient)

			data := authRequired.Group("/data")
			data.POST("/sales-entries", ledgerHandler.CreateSalesEntry)
			data.GET("/sales-entries", ledgerHandler.ListSalesEntries)
			data.POST("/expenses", ledgerHandler.CreateExpense)
			data.GET("/expenses", ledgerHandler.ListExpenses)

			reports := authRequired.Group("/reports", privileged)
			reports.GET("/tasks-summary", reportHandler.TasksSummary)
			reports.GET("/profit-expenses", reportHandler.ProfitExpenses)
			reports.GET("/sales-ranking", reportHandler.SalesRanking)
			reports.GET("/dashboard", reportHandler.Dashboard)
			reports.POST("/heartbeat", reportHandler.Heartbeat)
			reports.GET("/presence", reportHandler.Presence)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service API: health, shutdown and,
// with MOCK_SERVICES, retrieval of captured test emails.
func SetupServiceRouter(db *mongo.Database, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
			return
		}

		switch req.Method {
		case "health":
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			status := gin.H{"mongo": "ok", "redis": "ok"}
			healthy := true
			if db != nil {
				if err := db.Client().Ping(ctx, nil); err != nil {
					status["mongo"] = err.Error()
					healthy = false
				}
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					status["redis"] = err.Error()
					healthy = false
				}
			}
			code := http.StatusOK
			if !healthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, gin.H{"success": healthy, "data": status})

		case "shutdown":
			logger.Info("Received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "data": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown channel already signaled")
			}

		case "getTestEmail":
			var args []string // ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			getTestEmail(c, rdb, email.MockEmailKey(args[1], args[0]))

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail polls Redis briefly for a captured email and consumes it.
func getTestEmail(c *gin.Context, rdb *redis.Client, redisKey string) {
	if rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Redis not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var raw string
	var err error
	for i := 0; i < 10; i++ {
		raw, err = rdb.GetDel(ctx, redisKey).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			logger.Error("Service API: failed to read test email", err, zap.String("key", redisKey))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
		return
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &emailData); err != nil {
		logger.Error("Service API: failed to decode test email", err, zap.String("key", redisKey))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}
