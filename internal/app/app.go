package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avelir/storefront/internal/domain/coupon"
	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/handler"
	"github.com/avelir/storefront/internal/invoice"
	"github.com/avelir/storefront/internal/notify"
	"github.com/avelir/storefront/internal/payment"
	"github.com/avelir/storefront/internal/repository"
	"github.com/avelir/storefront/internal/session"
	"github.com/avelir/storefront/internal/task"
	"github.com/avelir/storefront/pkg/health"
	"github.com/avelir/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the background
// task workers, and handles graceful shutdown. It is the single wiring
// point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis-backed sessions.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "ping redis")
	}
	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	carts := repository.NewSessionCartStore(sessions)
	pending := session.NewPendingOrders(sessions)

	// Coupon code filter, warmed from the current coupon table. The filter
	// can produce false positives but never false negatives, so unknown
	// codes skip the database entirely.
	codes, err := couponRepo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}
	filter := coupon.NewCodeFilter(codes)
	lg.Info("Coupon filter warmed", zap.Int("codes", len(codes)))

	// Background task queue + workers.
	queue := task.NewChanQueue(cfg.Queue.Size)
	workers := task.NewPool(queue, cfg.Queue.Workers, lg.Named("tasks"))
	mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	workers.Register(notify.TaskOrderCreated, notify.NewOrderCreatedHandler(orderRepo, mailer).Handle)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo, filter)
	checkoutSvc := order.NewService(carts, couponValidator, orderRepo, pending, notify.NewOrderEnqueuer(queue), lg.Named("checkout"))
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency)

	// HTTP surface.
	h := handler.NewHandler(
		handler.Config{BaseURL: cfg.BaseURL, APIKeyPepper: cfg.APIKeyPepper},
		productRepo, carts, couponValidator, checkoutSvc, orderRepo, pending,
		gateway, gateway, invoice.NewRenderer(cfg.ShopName), apikeyRepo,
		lg.Named("http"),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Api-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			func(next http.Handler) http.Handler {
				return otelhttp.NewHandler(next, "storefront",
					otelhttp.WithTracerProvider(m.TracerProvider()),
					otelhttp.WithMeterProvider(m.MeterProvider()),
				)
			},
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := workers.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "task workers")
		}
		return nil
	})

	g.Go(func() error {
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
		return nil
	})

	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
