// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/tenanthub/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tenanthub/internal/app/features/health"
	loginfeature "github.com/dalemusser/tenanthub/internal/app/features/login"
	organizationsfeature "github.com/dalemusser/tenanthub/internal/app/features/organizations"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is populated.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	if svc == nil || svc.Manager == nil {
		return nil, errors.New("services not initialized; Startup must run before BuildHandler")
	}
	return newRouter(appCfg, deps, svc, logger), nil
}

func newRouter(appCfg AppConfig, deps DBDeps, svc *Services, logger *zap.Logger) chi.Router {
	errLog := uierrors.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.NotFound(uierrors.NotFound)
	r.MethodNotAllowed(uierrors.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	var pinger healthfeature.Pinger
	if deps.MongoClient != nil {
		pinger = healthfeature.MongoPinger{Client: deps.MongoClient}
	}
	healthHandler := healthfeature.NewHandler(pinger, logger)
	r.Get("/", healthHandler.ServeRoot)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(svc.Registry, promhttp.HandlerOpts{}))

	// Authentication
	loginHandler := loginfeature.NewHandler(svc.Auth, svc.Audit, errLog, logger)
	r.Mount("/admin/login", loginfeature.Routes(loginHandler, appCfg.LoginRateLimit))

	// Organizations
	bearer := auth.NewMiddleware(svc.Auth, svc.Audit, logger)
	orgsHandler := organizationsfeature.NewHandler(svc.Manager, svc.Audit, errLog, logger)
	r.Mount("/org", organizationsfeature.Routes(orgsHandler, bearer))

	// Audit log (own organization only)
	var events auditlogfeature.EventQuerier
	if deps.MongoDatabase != nil {
		events = audit.New(deps.MongoDatabase)
	}
	auditHandler := auditlogfeature.NewHandler(events, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, bearer))

	return r
}
