package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"github.com/mohammadpnp/prospect-import/internal/config"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/metrics"
	httpecho "github.com/mohammadpnp/prospect-import/internal/interfaces/http/echo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

type HTTPDeps struct {
	Server   config.ServerConfig
	Metrics  config.MetricsConfig
	Logger   *zap.Logger
	Verifier httpecho.CallerVerifier
	Observer httpecho.RequestObserver
	Gatherer prometheus.Gatherer

	StartImport app.StartImport
	Progress    app.GetImportProgress
	List        app.ListProspects
}

func NewHTTPServer(deps HTTPDeps) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Server.ReadTimeout = deps.Server.ReadTimeout
	server.Server.WriteTimeout = deps.Server.WriteTimeout

	server.Use(middleware.Recover())
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ksuid.New().String() },
	}))
	server.Use(httpecho.AccessLog(deps.Logger, deps.Observer))
	server.Use(middleware.BodyLimit(deps.Server.BodyLimit))

	importHandler := httpecho.NewImportHandler(deps.StartImport)
	prospectHandler := httpecho.NewProspectHandler(deps.Progress, deps.List)
	httpecho.RegisterRoutes(server, httpecho.RequireCaller(deps.Verifier), importHandler, prospectHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics.Enabled && deps.Gatherer != nil {
		server.GET(deps.Metrics.Path, echo.WrapHandler(metrics.Handler(deps.Gatherer)))
	}

	return server
}
