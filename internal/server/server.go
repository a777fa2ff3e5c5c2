package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nextlevelcode/meterbill/internal/billing/domain"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
	clientdomain "github.com/nextlevelcode/meterbill/internal/client/domain"
	"github.com/nextlevelcode/meterbill/internal/config"
	ledgerdomain "github.com/nextlevelcode/meterbill/internal/ledger/domain"
	obsmetrics "github.com/nextlevelcode/meterbill/internal/observability/metrics"
	"github.com/nextlevelcode/meterbill/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmetrics.GinMiddleware(obsmetrics.HTTP()))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	log           *zap.Logger
	clientSvc     clientdomain.Service
	catalogSvc    catalogdomain.Service
	ledgerSvc     ledgerdomain.Service
	billingSvc    billingdomain.Service
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	ClientSvc     clientdomain.Service
	CatalogSvc    catalogdomain.Service
	LedgerSvc     ledgerdomain.Service
	BillingSvc    billingdomain.Service
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		clientSvc:     p.ClientSvc,
		catalogSvc:    p.CatalogSvc,
		ledgerSvc:     p.LedgerSvc,
		billingSvc:    p.BillingSvc,
		ingestLimiter: p.IngestLimiter,
	}

	s.registerAdminRoutes()
	s.registerMeterRoutes()
	s.registerPublicRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1", s.AdminKeyRequired())

	admin.POST("/clients", s.CreateClient)
	admin.GET("/clients/:id", s.GetClient)
	admin.PATCH("/clients/:id", s.PatchClient)
	admin.DELETE("/clients/:id", s.DeleteClient)
	admin.POST("/clients/:id/keys", s.CreateClientKey)
	admin.GET("/clients/:id/summary", s.GetClientSummary)

	admin.GET("/models", s.ListModels)
	admin.POST("/models", s.CreateModel)
	admin.GET("/models/:name", s.GetModel)

	admin.POST("/clients/:id/billings", s.IssueBilling)
	admin.POST("/clients/:id/billings/invoice", s.InvoiceClient)
	admin.GET("/clients/:id/billings", s.ListClientBillings)
	admin.GET("/billings/:id/receipt", s.DownloadReceipt)
	admin.GET("/billings/:id/receipt.pdf", s.DownloadReceiptPDF)

	// Admin confirmation arrives from an email link, hence GET.
	admin.GET("/billings/verify/:hash", s.VerifyPayment)
}

func (s *Server) registerMeterRoutes() {
	api := s.engine.Group("/v1", s.APIKeyRequired())

	api.POST("/usage", s.IngestRateLimit(), s.IngestUsage)
	api.POST("/uploads", s.IngestRateLimit(), s.IngestUpload)
	api.GET("/summary", s.GetOwnSummary)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/v1")

	public.GET("/billings/validate/:hash", s.ValidateHash)
	public.POST("/billings/pay/:hash", s.SubmitReceipt)
}
