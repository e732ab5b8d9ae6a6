package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	auditdomain "github.com/roomvision/roomvision/internal/audit/domain"
	checkoutdomain "github.com/roomvision/roomvision/internal/checkout/domain"
	"github.com/roomvision/roomvision/internal/config"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
	"github.com/roomvision/roomvision/internal/observability"
	obsmiddleware "github.com/roomvision/roomvision/internal/observability/logger"
	obsmetrics "github.com/roomvision/roomvision/internal/observability/metrics"
	obstracing "github.com/roomvision/roomvision/internal/observability/tracing"
	"github.com/roomvision/roomvision/internal/providers/pdf"
	"github.com/roomvision/roomvision/internal/ratelimit"
	"github.com/roomvision/roomvision/internal/session"
	sessiondomain "github.com/roomvision/roomvision/internal/session/domain"
	settlementdomain "github.com/roomvision/roomvision/internal/settlement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	sessions      *session.Manager
	sessionSvc    sessiondomain.Service
	accountSvc    accountdomain.Service
	generationSvc generationdomain.Service
	checkoutSvc   checkoutdomain.Service
	webhookSvc    settlementdomain.Service
	auditSvc      auditdomain.Service
	pdfProvider   pdf.Provider
	obsMetrics    *obsmetrics.Metrics
	genLimiter    *ratelimit.GenerateLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Sessions      *session.Manager
	SessionSvc    sessiondomain.Service
	AccountSvc    accountdomain.Service
	GenerationSvc generationdomain.Service
	CheckoutSvc   checkoutdomain.Service
	WebhookSvc    settlementdomain.Service
	AuditSvc      auditdomain.Service
	PDFProvider   pdf.Provider
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
	GenLimiter    *ratelimit.GenerateLimiter   `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		sessions:      p.Sessions,
		sessionSvc:    p.SessionSvc,
		accountSvc:    p.AccountSvc,
		generationSvc: p.GenerationSvc,
		checkoutSvc:   p.CheckoutSvc,
		webhookSvc:    p.WebhookSvc,
		auditSvc:      p.AuditSvc,
		pdfProvider:   p.PDFProvider,
		obsMetrics:    p.ObsMetrics,
		genLimiter:    p.GenLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/effects", s.ListEffects)
	api.GET("/packages", s.ListPackages)

	// -------- Generation --------
	api.POST("/generate", s.AuthRequired(), s.GenerateRateLimit(), s.Generate)
	api.GET("/videos", s.AuthRequired(), s.ListVideos)
	api.GET("/videos/:id", s.AuthRequired(), s.GetVideo)
	api.POST("/videos/:id/refresh", s.AuthRequired(), s.RefreshVideo)

	// -------- Account --------
	api.GET("/me", s.AuthRequired(), s.Me)
	api.GET("/transactions", s.AuthRequired(), s.ListTransactions)
	api.GET("/transactions/:id/receipt", s.AuthRequired(), s.GetTransactionReceipt)

	// -------- Billing --------
	api.POST("/checkout", s.AuthRequired(), s.CreateCheckout)
	api.POST("/portal", s.AuthRequired(), s.CreatePortal)

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	api.POST("/auth/logout", s.Logout)
}
