package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcattend/internal/attendance"
	"vcattend/internal/auth"
	"vcattend/internal/config"
	"vcattend/internal/httpmiddleware"
	"vcattend/internal/presence"
	"vcattend/internal/queue"
	"vcattend/internal/report"
	"vcattend/internal/service"
	"vcattend/internal/store"
	"vcattend/internal/tracker"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "vcattend:reports")
	}

	repo := attendance.NewRepository(db.Client)
	platform := presence.NewClient(cfg.PresenceURL)
	resolver := presence.NewResolver(platform, cfg.FetchLimit)
	registry := tracker.NewRegistry(repo)
	scheduler := tracker.NewScheduler(resolver, repo, cfg.PollInterval)
	reports := report.NewGenerator(repo)
	svc := service.New(repo, registry, scheduler, reports, platform, jobs)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/token", func(c *gin.Context) {
		var req struct {
			AdminID string `json:"admin_id" binding:"required"`
			Key     string `json:"key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cfg.AdminKey == "" || req.Key != cfg.AdminKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad admin key"})
			return
		}
		token, exp, err := auth.Issue(req.AdminID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
	})

	admin := r.Group("/v1", auth.AdminAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	admin.POST("/groups", func(c *gin.Context) {
		var req struct {
			GroupID int64  `json:"group_id" binding:"required"`
			Title   string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SaveGroup(c.Request.Context(), req.GroupID, req.Title); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"group_id": req.GroupID, "title": req.Title})
	})

	admin.GET("/groups", func(c *gin.Context) {
		groups, err := svc.Groups(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
	})

	admin.POST("/groups/:id/start", func(c *gin.Context) {
		groupID, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sessionID, err := svc.StartTracking(c.Request.Context(), groupID, req.Name)
		if err != nil {
			if errors.Is(err, tracker.ErrAlreadyActive) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
	})

	admin.POST("/groups/:id/stop", func(c *gin.Context) {
		groupID, ok := pathID(c)
		if !ok {
			return
		}
		sessionID, err := svc.StopTracking(c.Request.Context(), groupID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotActive) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
	})

	admin.GET("/sessions/active", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active": svc.ActiveSessions()})
	})

	admin.GET("/sessions/:id/records", func(c *gin.Context) {
		sessionID, ok := pathID(c)
		if !ok {
			return
		}
		records, err := svc.Records(c.Request.Context(), sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	admin.GET("/sessions/:id/report.csv", func(c *gin.Context) {
		sessionID, ok := pathID(c)
		if !ok {
			return
		}
		data, filename, err := svc.TableReport(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, report.ErrEmptySession) {
				c.JSON(http.StatusOK, gin.H{"message": "the list is empty"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return 0, false
	}
	return id, true
}
