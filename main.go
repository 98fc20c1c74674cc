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

	"github.com/dflow-platform/dflow-api/handlers"
	"github.com/dflow-platform/dflow-api/internal/codegen"
	"github.com/dflow-platform/dflow-api/internal/config"
	"github.com/dflow-platform/dflow-api/internal/database"
	"github.com/dflow-platform/dflow-api/internal/dflow"
	"github.com/dflow-platform/dflow-api/internal/dmodel/service"
	"github.com/dflow-platform/dflow-api/internal/oidc"
	"github.com/dflow-platform/dflow-api/internal/sessions"
	"github.com/dflow-platform/dflow-api/internal/storage"
	"github.com/dflow-platform/dflow-api/internal/tokens"
	"github.com/dflow-platform/dflow-api/internal/users"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/dflow-platform/dflow-api/pkg/metrics"
	"github.com/dflow-platform/dflow-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Permissive CORS for browser clients; OPTIONS preflights end here.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, "+handlers.ArtifactHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rc.Close()
		} else {
			redisClient = rc
			defer rc.Close()
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter. It runs before authentication, so requests
	// are keyed by client IP.
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		logger.Infof("rate limiter enabled: rps=%.2f burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.UseRedis && redisClient != nil)
	}

	// Persistence: MongoDB when reachable, otherwise process memory.
	var (
		mongoClient *mongo.Client
		userSvc     *users.Service
		modelSvc    *service.Service
		jobs        codegen.Store
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			mongoClient = client
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			userRepo, err := users.NewMongoUserRepository(ctx, db.Collection("users"))
			if err != nil {
				logger.Fatalf("users collection: %v", err)
			}
			userSvc = users.NewService(userRepo)
			if modelSvc, err = service.NewMongoService(ctx, db.Collection("models")); err != nil {
				logger.Fatalf("models collection: %v", err)
			}
			if jobs, err = codegen.NewMongoStore(ctx, db.Collection("codegen_jobs")); err != nil {
				logger.Fatalf("codegen_jobs collection: %v", err)
			}
			logger.Infof("using MongoDB database %s", cfg.MongoDB.Database)
		}
	}
	if userSvc == nil {
		logger.Warnf("MongoDB unavailable; users, models and codegen jobs are kept in memory")
		userSvc = users.NewService(users.NewMemoryUserRepository())
		modelSvc = service.NewMemoryService()
		jobs = codegen.NewMemoryStore()
	}

	var grantStore sessions.Store = sessions.NewMemoryStore()
	if redisClient != nil {
		grantStore = sessions.NewRedisStore(redisClient, "refresh:")
	}
	sessionSvc := sessions.NewService(grantStore, cfg.JWT.RefreshTokenTTL)
	deny := sessions.NewDenylist(redisClient)
	if !deny.Shared() {
		logger.Warnf("access-token denylist kept in memory: logouts are not shared across instances or restarts")
	}

	verifiers := middleware.ChainVerifier{tokens.NewVerifier(cfg.JWT.Secret)}
	var oidcVerifier *oidc.Verifier
	if cfg.Keycloak.URL != "" && cfg.Keycloak.Realm != "" && cfg.Keycloak.ClientID != "" {
		v, err := oidc.NewVerifier(ctx, oidc.IssuerURL(cfg.Keycloak.URL, cfg.Keycloak.Realm), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			oidcVerifier = v
			verifiers = append(verifiers, v)
		}
	}

	toolchain, err := dflow.NewCommandToolchain(cfg.Dflow.ValidateCmd, cfg.Dflow.CodegenCmd)
	if err != nil {
		logger.Fatalf("dflow toolchain: %v", err)
	}
	dflowSvc, err := dflow.NewService(toolchain, cfg.Dflow.StagingDir, cfg.Dflow.Timeout)
	if err != nil {
		logger.Fatalf("dflow staging: %v", err)
	}

	var artifacts storage.ArtifactStore
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, artifacts will not be stored: %v", err)
		} else {
			artifacts = s
			logger.Infof("storing artifacts in MinIO bucket %s", cfg.MinIO.Bucket)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when configured dependencies are reachable
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"mongo": cfg.MongoDB.URI == "" || mongoClient != nil,
			"redis": cfg.Redis.Host == "" || redisClient != nil,
			"oidc":  cfg.Keycloak.URL == "" || oidcVerifier != nil,
			"minio": cfg.MinIO.Endpoint == "" || artifacts != nil,
		}
		if mongoClient != nil {
			pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			deps["mongo"] = mongoClient.Ping(pctx, nil) == nil
			cancel()
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	protect := []gin.HandlerFunc{middleware.AuthMiddleware(verifiers, deny), handlers.CurrentUser(userSvc)}
	root := r.Group("/")
	handlers.NewAuthHandler(cfg, userSvc, sessionSvc, deny).Register(root, protect...)
	handlers.NewModelHandler(modelSvc).Register(root, protect...)
	handlers.NewDflowHandler(dflowSvc, jobs, artifacts).Register(root, protect...)
	handlers.NewMergeHandler(userSvc, modelSvc, artifacts).Register(root, protect...)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting dflow API on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}
