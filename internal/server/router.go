package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/api/timelogs"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/api/timers"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/api/timesheets"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/config"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/approvals"
	timelogsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
	timersService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
	timesheetsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
)

const (
	ServiceName    = "timesheet-tracker"
	ServiceVersion = "1.0.0"
)

// Services are the domain services the HTTP layer exposes.
type Services struct {
	Timers     *timersService.Service
	TimeLogs   *timelogsService.Service
	Timesheets *timesheetsService.Service
	Approvals  *approvals.Service
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter builds the gin engine with CORS, the API routes and /health.
func NewRouter(cfg *config.Config, svc Services, checks map[string]HealthCheck, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors.New(corsConfig(cfg.CORS)))

	authMiddleware := api.AuthMiddleware(cfg.Auth.Keycloak(), cfg.Auth.TrustGatewayHeaders)

	group := router.Group("/api")
	timers.RegisterRoutes(group, svc.Timers, authMiddleware)
	timelogs.RegisterRoutes(group, svc.TimeLogs, authMiddleware)
	timesheets.RegisterRoutes(group, svc.Timesheets, svc.Approvals, authMiddleware)

	router.GET("/health", healthHandler(checks, log))
	return router
}

func healthHandler(checks map[string]HealthCheck, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		deps := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("health check failed", "dependency", name, "err", err)
				deps[name] = "down"
				status, code = "unhealthy", http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}

		c.JSON(code, gin.H{
			"status":       status,
			"service":      ServiceName,
			"version":      ServiceVersion,
			"dependencies": deps,
		})
	}
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     cfg.Methods(),
		AllowHeaders:     cfg.Headers(),
		ExposeHeaders:    []string{api.ErrorKindHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if origins := cfg.Origins(); len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
