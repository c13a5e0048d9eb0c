package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/covera/internal/assistant"
	assistantdomain "github.com/smallbiznis/covera/internal/assistant/domain"
	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/customer"
	"github.com/smallbiznis/covera/internal/document"
	"github.com/smallbiznis/covera/internal/gemini"
	"github.com/smallbiznis/covera/internal/observability"
	obslogger "github.com/smallbiznis/covera/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/covera/internal/observability/metrics"
	obstracing "github.com/smallbiznis/covera/internal/observability/tracing"
	"github.com/smallbiznis/covera/internal/payment"
	"github.com/smallbiznis/covera/internal/payment/webhook"
	"github.com/smallbiznis/covera/internal/promocode"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	"github.com/smallbiznis/covera/internal/ratelimit"
	"github.com/smallbiznis/covera/internal/redisclient"
	"github.com/smallbiznis/covera/internal/session"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	"github.com/smallbiznis/covera/internal/subscription"
	"github.com/smallbiznis/covera/internal/tariff"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/vision"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	redisclient.Module,
	tariff.Module,
	session.Module,
	customer.Module,
	promocode.Module,
	subscription.Module,
	document.Module,
	payment.Module,
	ratelimit.Module,
	gemini.Module,
	vision.Module,
	assistant.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	assistant  assistantdomain.Service
	sessions   sessiondomain.Service
	tariffs    tariffdomain.Service
	promos     promodomain.Service
	dispatcher *webhook.Dispatcher
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Assistant  assistantdomain.Service
	Sessions   sessiondomain.Service
	Tariffs    tariffdomain.Service
	Promos     promodomain.Service
	Dispatcher *webhook.Dispatcher
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		assistant:  p.Assistant,
		sessions:   p.Sessions,
		tariffs:    p.Tariffs,
		promos:     p.Promos,
		dispatcher: p.Dispatcher,
	}
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	api.POST("/chat", s.Chat)

	api.GET("/session/:session_id", s.GetSession)
	api.DELETE("/session/:session_id", s.DeleteSession)

	callbacks := api.Group("/payment/callback")
	callbacks.POST("/payment-notification", s.PaymentNotification(""))
	callbacks.POST("/momo", s.PaymentNotification("momo"))
	callbacks.POST("/airtel", s.PaymentNotification("airtel"))

	quotes := api.Group("/quotes")
	quotes.POST("/auto", s.QuoteAuto)
	quotes.POST("/travel", s.QuoteTravel)
	quotes.GET("/travel/catalog", s.TravelCatalog)
	quotes.GET("/accident", s.QuoteAccident)
	quotes.GET("/home", s.QuoteHome)

	api.POST("/promo-codes", s.CreatePromoCode)
	api.POST("/promo-codes/validate", s.ValidatePromoCode)
}
