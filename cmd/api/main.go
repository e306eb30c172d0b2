package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tobiafolabi/nairamart-backend/api/routes"
	"github.com/tobiafolabi/nairamart-backend/internal/audit"
	"github.com/tobiafolabi/nairamart-backend/internal/carts"
	"github.com/tobiafolabi/nairamart-backend/internal/checkout"
	"github.com/tobiafolabi/nairamart-backend/internal/notifications"
	"github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/payments"
	"github.com/tobiafolabi/nairamart-backend/internal/refunds"
	"github.com/tobiafolabi/nairamart-backend/internal/release"
	"github.com/tobiafolabi/nairamart-backend/internal/stores"
	"github.com/tobiafolabi/nairamart-backend/internal/wallets"
	"github.com/tobiafolabi/nairamart-backend/internal/webhooks"
	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/migrate"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
	"github.com/tobiafolabi/nairamart-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}
	flutterwaveClient, err := flutterwave.NewClient(context.Background(), cfg.Flutterwave, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create flutterwave client", err)
		os.Exit(1)
	}
	gatewayRegistry := payments.NewRegistry(
		payments.NewPaystackGateway(paystackClient),
		payments.NewFlutterwaveGateway(flutterwaveClient),
	)

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	cartsRepo := carts.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	auditSvc, err := audit.NewService(gormDB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	walletsSvc, err := wallets.NewService(wallets.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallets service", err)
		os.Exit(1)
	}

	storesSvc, err := stores.NewService(stores.NewRepository(gormDB), cfg.Settlement)
	if err != nil {
		logg.Error(context.Background(), "failed to create stores service", err)
		os.Exit(1)
	}

	releaseSvc, err := release.NewService(
		release.NewRepository(gormDB),
		ordersRepo,
		walletsSvc,
		dbClient,
		outboxSvc,
		auditSvc,
		cfg.Settlement,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create release service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, storesSvc, releaseSvc, walletsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	refundsSvc, err := refunds.NewService(ordersRepo, dbClient, outboxSvc, auditSvc, walletsSvc, cfg.Settlement, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(cartsRepo, ordersRepo, dbClient, outboxSvc, walletsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhooksSvc, err := webhooks.NewService(gatewayRegistry, checkoutSvc, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhooks service", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Paystack:      paystackClient,
		Flutterwave:   flutterwaveClient,
		Webhooks:      webhooksSvc,
		Orders:        ordersSvc,
		Refunds:       refundsSvc,
		Wallets:       walletsSvc,
		Releases:      releaseSvc,
		Notifications: notificationsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
