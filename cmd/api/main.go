package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/naufal-dev/fyp-api/api/swagger"
	"github.com/naufal-dev/fyp-api/internal/handler"
	"github.com/naufal-dev/fyp-api/internal/middleware"
	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/internal/repository"
	"github.com/naufal-dev/fyp-api/internal/service"
	"github.com/naufal-dev/fyp-api/pkg/cache"
	"github.com/naufal-dev/fyp-api/pkg/config"
	"github.com/naufal-dev/fyp-api/pkg/database"
	"github.com/naufal-dev/fyp-api/pkg/jobs"
	"github.com/naufal-dev/fyp-api/pkg/logger"
	"github.com/naufal-dev/fyp-api/pkg/mailer"
	corsmiddleware "github.com/naufal-dev/fyp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/naufal-dev/fyp-api/pkg/middleware/requestid"
)

// @title FYP Supervision API
// @version 1.0.0
// @description Final-year-project supervisor assignment and tracking service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Notification fan-out runs on an in-process queue; HTTP responses
	// never wait for it.
	notificationSvc := service.NewNotificationService(notificationRepo, redisClient, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	var mail mailer.Service
	if cfg.Mail.Enabled {
		mail = mailer.NewSendgridService(cfg.Mail, logr)
	} else {
		mail = mailer.NewLogService(logr)
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fyp-api",
	})
	userSvc := service.NewUserService(userRepo, projectRepo, cfg.Supervision, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, userRepo, notificationSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(userRepo, projectRepo, assignmentRepo, notificationSvc, cfg.Supervision.DefaultMaxStudents, logr)
	requestSvc := service.NewRequestService(requestRepo, userRepo, projectRepo, assignmentSvc, notificationSvc, mail, validate, logr)
	reportSvc := service.NewReportService(userRepo, logr)
	metricsSvc := service.NewMetricsService()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, userSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, metricsSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, authHandler, userHandler, projectHandler, requestHandler, assignmentHandler, notificationHandler, reportHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	authSvc *service.AuthService,
	auth *handler.AuthHandler,
	users *handler.UserHandler,
	projects *handler.ProjectHandler,
	requests *handler.RequestHandler,
	assignments *handler.AssignmentHandler,
	notifications *handler.NotificationHandler,
	reports *handler.ReportHandler,
) {
	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)

	v1 := r.Group(cfg.APIPrefix)

	public := v1.Group("/auth")
	public.POST("/login", auth.Login)
	public.POST("/register", auth.Register)
	public.POST("/refresh", auth.Refresh)

	secured := v1.Group("")
	secured.Use(middleware.JWT(authSvc))

	secured.POST("/auth/logout", auth.Logout)
	secured.POST("/auth/change-password", auth.ChangePassword)

	secured.GET("/users", middleware.RBAC(admin, teacher), users.List)
	secured.POST("/users", middleware.RBAC(admin), users.Create)
	secured.GET("/users/:id", middleware.RBAC(admin, teacher, "SELF"), users.Get)
	secured.PUT("/users/:id", middleware.RBAC(admin, "SELF"), users.Update)
	secured.PUT("/users/:id/capacity", middleware.RBAC(admin), users.UpdateCapacity)
	secured.DELETE("/users/:id", middleware.RBAC(admin), users.Deactivate)
	secured.GET("/users/:id/supervisees", middleware.RBAC(admin, "SELF"), users.Supervisees)

	secured.POST("/projects", middleware.RBAC(student), projects.Submit)
	secured.GET("/projects", projects.List)
	secured.GET("/projects/:id", projects.Get)
	secured.POST("/projects/:id/approve", middleware.RBAC(admin), projects.Approve)
	secured.POST("/projects/:id/reject", middleware.RBAC(admin), projects.Reject)
	secured.POST("/projects/:id/complete", middleware.RBAC(teacher), projects.Complete)
	secured.PUT("/projects/:id/deadline", middleware.RBAC(admin), projects.SetDeadline)
	secured.POST("/projects/:id/feedback", middleware.RBAC(teacher), projects.AddFeedback)
	secured.POST("/projects/:id/files", middleware.RBAC(student), projects.AttachFile)

	secured.POST("/requests", middleware.RBAC(student), requests.Create)
	secured.GET("/requests", requests.List)
	secured.GET("/requests/:id", requests.Get)
	secured.POST("/requests/:id/accept", middleware.RBAC(teacher), requests.Accept)
	secured.POST("/requests/:id/reject", middleware.RBAC(teacher), requests.Reject)
	secured.POST("/requests/:id/approve", middleware.RBAC(admin), requests.AdminApprove)
	secured.POST("/requests/:id/decline", middleware.RBAC(admin), requests.AdminReject)

	secured.POST("/assignments", middleware.RBAC(admin), assignments.DirectAssign)

	secured.GET("/notifications", notifications.List)
	secured.POST("/notifications/:id/read", notifications.MarkRead)
	secured.POST("/notifications/read-all", notifications.MarkAllRead)

	secured.GET("/reports/allocation", middleware.RBAC(admin), reports.SupervisionAllocation)
}
