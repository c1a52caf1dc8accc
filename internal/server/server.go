package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/eventflow/internal/analytics"
	"github.com/smallbiznis/eventflow/internal/auth"
	authdomain "github.com/smallbiznis/eventflow/internal/auth/domain"
	"github.com/smallbiznis/eventflow/internal/auth/session"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/checkin"
	"github.com/smallbiznis/eventflow/internal/checkout"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/event"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/notification"
	notificationdomain "github.com/smallbiznis/eventflow/internal/notification/domain"
	"github.com/smallbiznis/eventflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/eventflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/eventflow/internal/observability/tracing"
	"github.com/smallbiznis/eventflow/internal/payment"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"github.com/smallbiznis/eventflow/internal/providers"
	"github.com/smallbiznis/eventflow/internal/providers/pdf"
	"github.com/smallbiznis/eventflow/internal/ratelimit"
	"github.com/smallbiznis/eventflow/internal/registration"
	registrationservice "github.com/smallbiznis/eventflow/internal/registration/service"
	"github.com/smallbiznis/eventflow/internal/ticket"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	providers.Module,
	ticket.Module,
	event.Module,
	registration.Module,
	notification.Module,
	payment.Module,
	ratelimit.Module,
	checkout.Module,
	checkin.Module,
	analytics.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineConfig struct {
	Debug              bool
	CORSAllowedOrigins []string
}

func NewEngine(cfg EngineConfig, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           cfg.Debug,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	if mw := corsMiddleware(cfg.CORSAllowedOrigins); mw != nil {
		r.Use(mw)
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(EngineConfig{
		Debug:              obsCfg.Debug(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, httpMetrics)
}

// run ties the listener to the fx lifecycle. It depends on *Server so routes
// are registered before the first request.
func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authsvc         authdomain.Service
	sessions        *session.Manager
	eventSvc        eventdomain.Service
	checkoutSvc     *checkout.Service
	registrationSvc *registrationservice.Service
	checkinSvc      *checkin.Service
	analyticsSvc    *analytics.Service
	notificationSvc notificationdomain.Service
	webhookSvc      paymentdomain.WebhookService
	pdf             pdf.Provider
	checkoutCfg     *config.CheckoutConfigHolder
	limiter         *ratelimit.Limiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	EventSvc        eventdomain.Service
	CheckoutSvc     *checkout.Service
	RegistrationSvc *registrationservice.Service
	CheckinSvc      *checkin.Service
	AnalyticsSvc    *analytics.Service
	NotificationSvc notificationdomain.Service
	WebhookSvc      paymentdomain.WebhookService
	PDF             pdf.Provider
	CheckoutConfig  *config.CheckoutConfigHolder
	Limiter         *ratelimit.Limiter  `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		eventSvc:        p.EventSvc,
		checkoutSvc:     p.CheckoutSvc,
		registrationSvc: p.RegistrationSvc,
		checkinSvc:      p.CheckinSvc,
		analyticsSvc:    p.AnalyticsSvc,
		notificationSvc: p.NotificationSvc,
		webhookSvc:      p.WebhookSvc,
		pdf:             p.PDF,
		checkoutCfg:     p.CheckoutConfig,
		limiter:         p.Limiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	// Webhooks authenticate by signature, not by session.
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/payment", s.HandlePaymentWebhook)
		webhooks.POST("/:provider", s.HandlePaymentWebhook)
	}

	api.Use(s.ResolvePrincipal())

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.Register)
		authGroup.POST("/login", s.Login)
		authGroup.POST("/logout", s.Logout)
		authGroup.GET("/me", s.AuthRequired(), s.Me)
		authGroup.POST("/token", s.AuthRequired(), s.IssueToken)
	}

	api.GET("/public/events/:slug", s.GetPublicEvent)
	api.GET("/events/:id", s.GetEvent)

	protected := api.Group("", s.AuthRequired())

	events := protected.Group("/events")
	{
		events.POST("", s.CreateEvent)
		events.GET("", s.ListEvents)
		events.PATCH("/:id", s.UpdateEvent)
		events.DELETE("/:id", s.DeleteEvent)
		events.GET("/:id/attendees", s.ListAttendees)
		events.PATCH("/:id/attendees", s.UpdateAttendee)
		events.POST("/:id/checkin", s.CheckinRateLimit(), s.CheckIn)
		events.GET("/:id/analytics", s.EventAnalytics)
	}

	registrations := protected.Group("/registrations")
	{
		registrations.POST("", s.RegistrationRateLimit(), s.CreateRegistration)
		registrations.GET("", s.ListRegistrations)
		registrations.GET("/:id/ticket.pdf", s.DownloadTicket)
	}

	protected.GET("/dashboard", s.Dashboard)
	protected.GET("/notifications", s.ListNotifications)
	protected.PATCH("/notifications", s.MarkNotifications)
}
