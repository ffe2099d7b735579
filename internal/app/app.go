package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/auth"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/refund"
	"github.com/xenking/sqshop/internal/handler"
	"github.com/xenking/sqshop/internal/storage/postgres"
	"github.com/xenking/sqshop/internal/storage/s3"
	"github.com/xenking/sqshop/pkg/health"
	"github.com/xenking/sqshop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("images", cfg.Images.Backend),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	db := postgres.NewDB(pool)

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Check{
		Name:    "postgres",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Add(health.Check{Name: "goroutines", Kind: health.Liveness, Func: health.GoroutineCountCheck(10000)})
	healthSvc.Add(health.Check{Name: "gc_pause", Kind: health.Liveness, Func: health.GCMaxPauseCheck(time.Second)})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	images, err := newImageStore(ctx, cfg.Images, db)
	if err != nil {
		return errors.Wrap(err, "create image store")
	}
	compressor, err := catalog.NewCompressor(catalog.CompressorOptions{
		Workers:        cfg.Images.Workers,
		ThumbnailWidth: cfg.Images.ThumbnailWidth,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create compressor")
	}

	// Repositories.
	itemRepo := postgres.NewItemRepository(db)
	couponRepo := postgres.NewCouponRepository(db)
	addressRepo := postgres.NewAddressRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	apikeyRepo := postgres.NewAPIKeyRepository(db)

	// Domain services.
	couponSvc := coupon.NewService(couponRepo)
	orderSvc, err := order.NewService(order.Deps{
		Tx:            db,
		Orders:        orderRepo,
		Items:         itemRepo,
		Coupons:       couponSvc,
		Addresses:     addressRepo,
		Payments:      paymentRepo,
		MeterProvider: m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(handler.Config{MaxImageBytes: cfg.Images.MaxUploadBytes}, handler.Deps{
		Catalog:      catalog.NewService(itemRepo, images, compressor),
		Orders:       orderSvc,
		Refunds:      refund.NewService(db, refundRepo, orderSvc),
		Addresses:    address.NewService(addressRepo),
		Coupons:      couponSvc,
		Transactions: paymentRepo,
		Auth:         auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	})

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:          cfg.RateLimit.Max,
		AnonymousMax: cfg.RateLimit.AnonymousMax,
		Window:       cfg.RateLimit.Window,
		Header:       handler.APIKeyHeader,
	})
	go limiter.Run(ctx)

	root := chi.NewRouter()
	root.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
		limiter.Middleware(),
	)
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(root, "sqshop-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newImageStore(ctx context.Context, cfg ImagesConfig, db *postgres.DB) (catalog.ImageStore, error) {
	if cfg.Backend == BackendS3 {
		return s3.New(ctx, cfg.Bucket, cfg.Region, cfg.Prefix)
	}
	return postgres.NewImageStore(db), nil
}
