package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tobiafolabi/nairamart-backend/api/controllers"
	webhookcontrollers "github.com/tobiafolabi/nairamart-backend/api/controllers/webhooks"
	"github.com/tobiafolabi/nairamart-backend/api/middleware"
	"github.com/tobiafolabi/nairamart-backend/internal/notifications"
	"github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/refunds"
	"github.com/tobiafolabi/nairamart-backend/internal/release"
	"github.com/tobiafolabi/nairamart-backend/internal/wallets"
	"github.com/tobiafolabi/nairamart-backend/internal/webhooks"
	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
	"github.com/tobiafolabi/nairamart-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. cmd/api builds one of these
// after bootstrapping config, storage, gateways, and services.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Paystack    *paystack.Client
	Flutterwave *flutterwave.Client

	Webhooks      *webhooks.Service
	Orders        *orders.Service
	Refunds       *refunds.Service
	Wallets       *wallets.Service
	Releases      *release.Service
	Notifications notifications.Service
}

// NewRouter assembles the full route tree: public health + webhook endpoints,
// the authenticated buyer/store surface, and the admin release console.
func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	// gateway deliveries authenticate by signature, not bearer token
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(d.Webhooks, d.Paystack, logg))
		r.Post("/flutterwave", webhookcontrollers.FlutterwaveWebhook(d.Webhooks, d.Flutterwave, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(d.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Get("/payments/verify", controllers.VerifyPayment(d.Webhooks, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(d.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(d.Orders, logg))
			r.Route("/{orderID}/sub-orders/{subOrderID}", func(r chi.Router) {
				r.Put("/status", controllers.UpdateSubOrderStatus(d.Orders, logg))
				r.Post("/confirm-delivery", controllers.ConfirmDelivery(d.Orders, logg))
				r.Post("/returns", controllers.OpenReturn(d.Refunds, logg))
				r.Put("/returns/{returnID}", controllers.UpdateReturnStatus(d.Refunds, logg))
			})
		})

		r.Get("/stores/{storeID}/releases", controllers.ListStoreReleases(d.Releases, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.StoreContext(logg))

			r.Get("/store/orders", controllers.ListStoreOrders(d.Orders, logg))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.GetWallet(d.Wallets, logg))
				r.Get("/transactions", controllers.ListWalletTransactions(d.Wallets, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(d.Notifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(d.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.MemberRoleAdmin, logg))
		r.Use(middleware.RateLimit(d.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Get("/stores/{storeID}/releases", controllers.ListStoreReleases(d.Releases, logg))

		r.Route("/releases/{releaseID}", func(r chi.Router) {
			r.Get("/", controllers.GetRelease(d.Releases, logg))
			r.Post("/approve", controllers.ApproveRelease(d.Releases, logg))
			r.Post("/force-release", controllers.ForceRelease(d.Releases, logg))
			r.Post("/reverse", controllers.ReverseRelease(d.Releases, logg))
			r.Put("/notes", controllers.UpdateReleaseNotes(d.Releases, logg))
		})
	})

	return r
}
