package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/http/handlers"
	"github.com/soficodes/bloghub/internal/http/middlewares"
	"github.com/soficodes/bloghub/internal/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// NewRouter wires middleware and routes. Handlers arrive fully built so
// the router stays a pure wiring layer.
func NewRouter(
	cfg config.Config,
	prom *observability.Prom,
	reg *prometheus.Registry,
	authMW *middlewares.AuthMiddleware,
	authH *handlers.AuthHandler,
	postsH *handlers.PostsHandler,
	adminH *handlers.AdminHandler,
	healthH *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(otelgin.Middleware("bloghub"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))
	r.Use(middlewares.RequireJSON())

	r.GET("/healthz", healthH.Healthz)
	r.GET("/readyz", healthH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// credential endpoints get a tight per-IP window
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authH.SignUp)
		auth.POST("/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authH.Login)
		auth.POST("/refresh", authH.Refresh)
		auth.POST("/logout", authMW.RequireAuth(), authH.Logout)
		auth.GET("/profile", authMW.RequireAuth(), authH.Profile)
		auth.PUT("/profile", authMW.RequireAuth(), authH.UpdateProfile)
	}

	posts := r.Group("/posts")
	{
		posts.GET("", postsH.List)
		posts.GET("/:id", postsH.GetByID)
		posts.POST("", authMW.RequireAuth(), postsH.Create)
		posts.PUT("/:id", authMW.RequireAuth(), postsH.Update)
		posts.DELETE("/:id", authMW.RequireAuth(), postsH.Delete)
	}

	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		admin.GET("/users", adminH.ListUsers)
		admin.PUT("/users/:id/role", adminH.ChangeRole)
		admin.DELETE("/users/:id", adminH.DeleteUser)
		admin.GET("/stats", adminH.Stats)
	}

	return r
}
