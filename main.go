package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/payments"
)

func main() {
	config.Load()
	cfg := config.AppEnv
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
	}
	handlers.RequestTimeout = cfg.RequestTimeout

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	var gateway payments.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripeGateway(cfg.StripeSecretKey)
	} else {
		log.Println("[PAYMENT] [WARN] STRIPE_SECRET_KEY not set, using simulated payments")
		gateway = payments.NewSimulatedGateway()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		log.Println("[EVENTS] [INFO] publishing order events to", cfg.KafkaOrderTopic)
	}

	keys, closeKeys := openIdempotencyStore(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)

	svc := checkout.NewService(store, gateway, publisher, checkout.Options{
		Pricing: checkout.Pricing{
			TaxRate:          cfg.TaxRate,
			ShippingFlatRate: cfg.ShippingFlatRate,
		},
		Currency:               cfg.Currency,
		AllowSimulatedPayments: cfg.PaymentSimulation,
	})
	carts := checkout.NewCartService(store, nil)

	r := gin.Default()
	r.Use(serverMetrics.Middleware())

	r.GET("/health", handlers.Health(store))
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	r.GET("/products", handlers.GetProducts(store))
	r.GET("/products/:id", handlers.GetProduct(store))
	r.POST("/coupons/validate", handlers.ValidateCoupon(svc))

	pay := r.Group("/payments")
	pay.Use(middleware.OptionalUserAuth(cfg.JWTSecret))
	{
		pay.POST("/intent", handlers.CreatePaymentIntent(svc))
		pay.POST("/confirm", handlers.ConfirmPayment(svc, keys, serverMetrics))
	}

	cart := r.Group("/cart")
	cart.Use(middleware.OptionalUserAuth(cfg.JWTSecret))
	{
		cart.GET("", handlers.GetCart(carts))
		cart.DELETE("", handlers.ClearCart(carts))
		cart.POST("/items", handlers.AddCartItem(carts))
		cart.PUT("/items/:id", handlers.UpdateCartItem(carts))
		cart.DELETE("/items/:id", handlers.RemoveCartItem(carts))
	}

	orders := r.Group("/orders")
	orders.Use(middleware.UserAuth(cfg.JWTSecret))
	{
		orders.GET("", handlers.GetMyOrders(svc))
		orders.GET("/:number", handlers.GetMyOrder(svc))
		orders.PUT("/:number/cancel", handlers.CancelMyOrder(svc))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.GET("/me", handlers.AdminMe())

		admin.GET("/products", handlers.GetAllProducts(store))
		admin.POST("/products", handlers.CreateProduct(store))
		admin.PUT("/products/:id", handlers.UpdateProduct(store))
		admin.DELETE("/products/:id", handlers.DeleteProduct(store))

		admin.GET("/coupons", handlers.GetAllCoupons(store))
		admin.POST("/coupons", handlers.CreateCoupon(store))
		admin.PUT("/coupons/:id", handlers.UpdateCoupon(store))

		admin.GET("/orders", handlers.GetAllOrders(svc))
		admin.GET("/orders/:number", handlers.GetOrderAdmin(svc))
		admin.PUT("/orders/:number/status", handlers.UpdateOrderStatus(svc))
		admin.PUT("/orders/:number/cancel", handlers.CancelOrderAdmin(svc))
		admin.DELETE("/orders/:number", handlers.DeleteOrder(svc))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("server shutdown error:", err)
	}
	if err := publisher.Close(); err != nil {
		log.Println("[EVENTS] [ERROR] close publisher:", err)
	}
	closeKeys()
	if err := store.Close(shutdownCtx); err != nil {
		log.Println("store close error:", err)
	}
}

func openStore(cfg config.Config) (database.Backend, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsurePostgresSchema(pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Println("PostgreSQL connected")
		return database.NewPostgresStore(pool), nil

	case "memory":
		log.Println("[STORE] [WARN] using the in-memory store, data is lost on restart")
		return database.NewMemoryStore(), nil

	default:
		client, err := database.Connect(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.DBName)
		log.Println("MongoDB connected to:", db.Name())

		if err := database.EnsureProductIndexes(db); err != nil {
			log.Printf("product index warning: %v", err)
		}
		if err := database.EnsureCouponIndexes(db); err != nil {
			log.Printf("coupon index warning: %v", err)
		}
		if err := database.EnsureOrderIndexes(db); err != nil {
			log.Printf("order index warning: %v", err)
		}
		if err := database.EnsureCartIndexes(db); err != nil {
			log.Printf("cart index warning: %v", err)
		}
		return database.NewMongoStore(db), nil
	}
}

// openIdempotencyStore prefers Redis so keys survive restarts and are shared
// between instances. The returned func releases the connection.
func openIdempotencyStore(cfg config.Config) (idempotency.Store, func()) {
	if cfg.RedisURL == "" {
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisStore, err := idempotency.NewRedisStore(ctx, cfg.RedisURL, cfg.IdempotencyTTL)
	if err != nil {
		log.Fatal("redis: ", err)
	}
	log.Println("[IDEMPOTENCY] [INFO] using redis")
	return redisStore, func() {
		if err := redisStore.Close(); err != nil {
			log.Println("[IDEMPOTENCY] [ERROR] close redis:", err)
		}
	}
}
