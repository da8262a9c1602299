// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Auth gate ahead of every /ai and /user route
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	_ "github.com/quickai/go-quickai-backend/docs"
	"github.com/quickai/go-quickai-backend/internal/clients"
	"github.com/quickai/go-quickai-backend/internal/clients/imagegen"
	"github.com/quickai/go-quickai-backend/internal/clients/media"
	"github.com/quickai/go-quickai-backend/internal/clients/textgen"
	"github.com/quickai/go-quickai-backend/internal/config"
	"github.com/quickai/go-quickai-backend/internal/domain"
	"github.com/quickai/go-quickai-backend/internal/entitlement"
	"github.com/quickai/go-quickai-backend/internal/http/handlers"
	"github.com/quickai/go-quickai-backend/internal/http/middleware"
	"github.com/quickai/go-quickai-backend/internal/repo"
	"github.com/quickai/go-quickai-backend/internal/services"
)

// creationRepoShim adapts the repository free functions to the
// services.CreationRepo interface expected by CreationService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type creationRepoShim struct{}

// ListCreations proxies repo.ListCreations.
func (creationRepoShim) ListCreations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Creation, error) {
	return repo.ListCreations(ctx, db, userID)
}

// ListPublishedCreations proxies repo.ListPublishedCreations.
func (creationRepoShim) ListPublishedCreations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Creation, error) {
	return repo.ListPublishedCreations(ctx, db, limit)
}

// GetCreation proxies repo.GetCreation.
func (creationRepoShim) GetCreation(ctx context.Context, db *gorm.DB, id string) (*domain.Creation, error) {
	return repo.GetCreation(ctx, db, id)
}

// DeleteCreation proxies repo.DeleteCreation.
func (creationRepoShim) DeleteCreation(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteCreation(ctx, db, id, userID)
}

// UpdateCreationLikes proxies repo.UpdateCreationLikes.
func (creationRepoShim) UpdateCreationLikes(ctx context.Context, db *gorm.DB, id string, prev, next domain.StringList) error {
	return repo.UpdateCreationLikes(ctx, db, id, prev, next)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), compression, idempotency and
// rate limiting, CORS and security headers, health/metrics/swagger
// endpoints, and the authenticated public API under the configured base
// path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (upload cap plus multipart overhead)
//  6. Gzip compression (metrics endpoint excluded)
//  7. Metrics
//  8. CORS and security headers
//
// The authenticated API group then stacks auth gate → idempotency
// validator → rate limiter, in that order: replay detection and rate keys
// both need the resolved user id, and a detected replay bypasses the
// limiter.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ents entitlement.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit: one upload plus form/JSON overhead
	r.Use(limitBody(cfg.MaxUploadBytes + 1<<20))

	// 6) Compress responses; /metrics stays uncompressed for scrapers
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderIdempotencyKey,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← clients/repo/db
	textClient := textgen.New(cfg.TextGen.BaseURL, cfg.TextGen.APIKey, cfg.TextGen.Model,
		clients.NewHTTPClient(cfg.WriteTimeout))
	imageClient := imagegen.New(cfg.ImageGen.BaseURL, cfg.ImageGen.APIKey,
		clients.NewHTTPClient(cfg.WriteTimeout))
	mediaClient := media.New(cfg.Media.BaseURL, cfg.Media.CloudName,
		cfg.Media.APIKey, cfg.Media.APISecret,
		clients.NewHTTPClient(cfg.WriteTimeout))

	genSvc := &services.GenerationService{
		DB:             db,
		Entitlements:   ents,
		Text:           textClient,
		Images:         imageClient,
		Media:          mediaClient,
		FreeUsageLimit: cfg.FreeUsageLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxPromptRunes: 2000,
		StyleLocale:    language.English,
	}
	creationSvc := services.NewCreationService(db, creationRepoShim{})
	h := handlers.New(genSvc, creationSvc, db)

	// Public API (authenticated). The idempotency validator and rate
	// limiter run after the auth gate so both key off the resolved user id:
	// replay detection needs the owner, and a replayed request bypasses the
	// rate limiter since it never reaches a provider.
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.RequireAuth(cfg.Auth.TokenSecret, ents))
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())
	{
		// Generation
		ai := api.Group("/ai")
		ai.POST("/generate-article", h.GenerateArticle)
		ai.POST("/generate-blog-title", h.GenerateBlogTitle)
		ai.POST("/generate-image", h.GenerateImage)
		ai.POST("/remove-image-background", h.RemoveImageBackground)
		ai.POST("/remove-image-object", h.RemoveImageObject)
		ai.POST("/resume-review", h.ResumeReview)

		// Creations
		user := api.Group("/user")
		user.GET("/get-user-creations", h.GetUserCreations)
		user.GET("/get-published-creations", h.GetPublishedCreations)
		user.POST("/toggle-like-creation", h.ToggleLikeCreation)
		user.POST("/delete-creation", h.DeleteCreation)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; downstream body reads error past the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
