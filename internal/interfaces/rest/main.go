package rest

import (
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/progress-engine/internal/domain"
	infra "github.com/pot-code/progress-engine/internal/infrastructure"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
	"github.com/pot-code/progress-engine/internal/interfaces/rest/handler"
	"github.com/pot-code/progress-engine/internal/interfaces/rest/middleware"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// Pinger dependency checked by the liveness probe
type Pinger interface {
	Ping() error
}

// Dependencies everything the transport needs, constructed once at start up
type Dependencies struct {
	KV                       driver.KeyValueDB
	Probes                   []Pinger
	LessonProgressUseCase    domain.LessonProgressUseCase
	FormationProgressUseCase domain.FormationProgressUseCase
	QuizUseCase              domain.QuizUseCase
	CertificateUseCase       domain.CertificateUseCase
	DashboardUseCase         domain.DashboardUseCase
	NotificationStream       handler.StreamServer
	Logger                   *zap.Logger
}

// NewServer create the http transport with every route registered
func NewServer(option *infra.AppConfig, deps *Dependencies) *echo.Echo {
	var (
		app     = echo.New()
		logger  = deps.Logger
		jwtUtil = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName,
			option.SessionTimeout)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: func(token string) (bool, error) {
				return deps.KV.Exists(token)
			},
		})
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: option.SessionRefresh,
		})
		adminMiddleware = middleware.RequireRole(jwtUtil, auth.RoleAdmin)
		verifyLimiter   = middleware.RateLimit(deps.KV, &middleware.RateLimitOption{
			Prefix: "verify",
			Limit:  option.RateLimit.VerifyLimit,
			Window: option.RateLimit.VerifyWindow,
		})
	)
	app.HideBanner = true

	registerLivenessProbe(app, deps.Probes...)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: func(e echo.Context) bool {
				if strings.HasPrefix(e.Request().RequestURI, "/healthz") {
					return true
				}
				return false
			},
		}))
	}
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(http.StatusInternalServerError,
					handler.NewRESTStandardError(http.StatusInternalServerError, "internal error").SetTraceID(traceID),
				)
				logger.Error(err.Error(), zap.String("trace.id", traceID))
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
	}))

	var (
		ProgressHandler = handler.NewProgressHandler(
			deps.LessonProgressUseCase,
			deps.FormationProgressUseCase,
			jwtUtil,
		)
		QuizHandler         = handler.NewQuizHandler(deps.QuizUseCase, jwtUtil)
		CertificateHandler  = handler.NewCertificateHandler(deps.CertificateUseCase, jwtUtil)
		DashboardHandler    = handler.NewDashboardHandler(deps.DashboardUseCase, jwtUtil)
		NotificationHandler = handler.NewNotificationHandler(deps.NotificationStream, jwtUtil)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger)},
			groups: []*apiGroup{
				{
					prefix:      "/progress",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
					routes: []*route{
						{"GET", "", ProgressHandler.HandleListProgress, nil},
						{"PUT", "/:lessonId", ProgressHandler.HandleRecordProgress, nil},
						{"GET", "/formation/:formationId", ProgressHandler.HandleGetFormationProgress, nil},
					},
				},
				{
					prefix:      "/quiz",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
					routes: []*route{
						{"POST", "/:quizId/attempts", QuizHandler.HandleStartAttempt, nil},
						{"POST", "/attempts/:attemptId/submit", QuizHandler.HandleSubmitAttempt, nil},
						{"GET", "/attempts/:attemptId", QuizHandler.HandleGetAttempt, nil},
					},
				},
				{
					prefix: "/certificates",
					routes: []*route{
						{"GET", "/verify/:number", CertificateHandler.HandleVerifyCertificate, []echo.MiddlewareFunc{verifyLimiter}},
						{"GET", "/:userId", CertificateHandler.HandleListCertificates, []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware}},
						{"POST", "/formation/:formationId/issue", CertificateHandler.HandleIssueForFormation, []echo.MiddlewareFunc{jwtMiddleware, adminMiddleware}},
					},
				},
				{
					prefix:      "/dashboard",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
					routes: []*route{
						{"GET", "", DashboardHandler.HandleGetDashboard, nil},
						{"GET", "/formation/:formationId", DashboardHandler.HandleGetFormationStats, []echo.MiddlewareFunc{adminMiddleware}},
					},
				},
				{
					prefix:      "/ws",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/notifications", NotificationHandler.HandleStream, nil},
					},
				},
			},
		})

	printRoutes(app, logger)
	return app
}

// Serve create http transport server and block until it stops
func Serve(option *infra.AppConfig, deps *Dependencies) error {
	app := NewServer(option, deps)
	return app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port))
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Debug("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, probes ...Pinger) {
	app.GET("/healthz", func(c echo.Context) error {
		for _, p := range probes {
			if p.Ping() != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
