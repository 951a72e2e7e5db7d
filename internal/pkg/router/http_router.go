package router

import (
	"github.com/glitchpeach/gamestudio/app/controllers"
	"github.com/glitchpeach/gamestudio/internal/pkg/middleware"
	"github.com/glitchpeach/gamestudio/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerWebhookRoutes(app)
}

// registerPublicRoutes wires the non-API surface: health and stats
func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)
	app.Get("/stats", controllers.HandleStats)
}

// registerWebhookRoutes wires the provider callback endpoints. They sit
// outside /api on purpose: no session middleware, no rate limiter, the
// provider signature is the only authentication.
func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
	webhooks.Post("/nowpayments", controllers.HandleNowPaymentsWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
