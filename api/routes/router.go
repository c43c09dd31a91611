package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bullion-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/bullion-backend/api/controllers/webhooks"
	"github.com/angelmondragon/bullion-backend/api/middleware"
	"github.com/angelmondragon/bullion-backend/internal/bookings"
	"github.com/angelmondragon/bullion-backend/internal/payments"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/config"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
)

// Dependencies are the services mounted by NewRouter. Pingers may be nil.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Wallet   wallet.Service
	Pricing  pricing.Service
	Bookings bookings.Service
	Payments payments.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{}
	if deps.DB != nil {
		ready["db"] = deps.DB
	}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletGet(deps.Wallet, logg))
			r.Post("/", controllers.WalletProvision(deps.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(deps.Wallet, logg))
		})

		r.Route("/prices/{commodity}", func(r chi.Router) {
			r.Get("/", controllers.PriceLive(deps.Pricing, logg))
			r.Get("/current", controllers.PriceCurrent(deps.Pricing, logg))
			r.Post("/grams", controllers.PriceGrams(deps.Pricing, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.BookingCreate(deps.Bookings, logg))
			r.Get("/", controllers.BookingList(deps.Bookings, logg))
			r.Get("/{bookingId}", controllers.BookingGet(deps.Bookings, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/orders", controllers.PaymentCreateOrder(deps.Payments, logg))
			r.Post("/verify", controllers.PaymentVerify(deps.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Put("/prices/{commodity}", controllers.AdminSetPrice(deps.Pricing, logg))
		r.Patch("/bookings/{bookingId}/status", controllers.AdminUpdateBookingStatus(deps.Bookings, logg))
	})

	return r
}
