package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/prepwise/prepwise/backend/auth-service/handlers"
	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
	"github.com/prepwise/prepwise/backend/auth-service/internal/database"
	"github.com/prepwise/prepwise/backend/auth-service/internal/oidc"
	"github.com/prepwise/prepwise/backend/auth-service/internal/password"
	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
	"github.com/prepwise/prepwise/backend/auth-service/internal/storage"
	"github.com/prepwise/prepwise/backend/auth-service/internal/users"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/logger"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/metrics"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging level is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	// missing secrets abort startup instead of producing tokens nobody can verify
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v google=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Google.ClientID != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Connect to Redis early so the rate limiter and the access-token
	// blacklist can use it when configured.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Session storage: Redis when available, otherwise the Mongo collection.
	var sessionsSvc *sessions.Service
	if redisClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(redisClient, "session:"))
		logger.Infof("Using Redis for session storage")
	}

	// MongoDB is the system of record for identities; retry with backoff to
	// tolerate startup races against the database container.
	var userSvc *users.Service
	const maxAttempts = 5
	backoff := time.Second
	var client *mongo.Client
	var errConn error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if errConn != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	userRepo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection("users"))
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("failed to ensure user indexes: %v", err)
	}
	userSvc = users.NewService(userRepo, password.NewHasher(cfg.Bcrypt.Cost))

	if sessionsSvc == nil {
		srepo := sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("sessions"))
		if err := srepo.EnsureIndexes(ctx); err != nil {
			logger.Fatalf("failed to ensure session indexes: %v", err)
		}
		sessionsSvc = sessions.NewService(srepo)
	}

	// Google ID token verifier. The insecure variant parses claims without
	// signature checks and exists only for integration tests.
	var verifier oidc.IDTokenVerifier
	if cfg.Google.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Google.Issuer, cfg.Google.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize Google OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure ID token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		}
	}

	// Optional global rate limiter, per-user when authenticated and per-IP
	// otherwise. The optional auth pass runs first so the limiter key sees
	// the identity; the route-level gate still decides access.
	if cfg.RateLimit.Enabled {
		r.Use(middleware.OptionalAuthMiddleware(cfg, userSvc))
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Avatar object store is optional; upload reports unavailability without it.
	var avatars *storage.AvatarStore
	if cfg.MinIO.Endpoint != "" {
		avatars, err = storage.NewAvatarStore(&cfg.MinIO)
		if err != nil {
			logger.Warnf("failed to initialize avatar store: %v", err)
			avatars = nil
		}
	}

	api := r.Group("/api")
	handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, verifier).Register(api)
	handlers.NewProfileHandler(userSvc, sessionsSvc, avatars).
		Register(api, middleware.AuthMiddleware(cfg, userSvc))

	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Auth service is healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// readiness: 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"mongo":  client.Ping(c.Request.Context(), nil) == nil,
			"google": cfg.Google.ClientID == "" || verifier != nil,
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
		}
		for _, ok := range deps {
			if !ok {
				ready = false
			}
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting auth service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
