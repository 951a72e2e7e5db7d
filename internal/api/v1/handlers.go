package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/glitchpeach/gamestudio/app/controllers"
	"github.com/glitchpeach/gamestudio/internal/pkg/middleware"
)

// APIServer implements the v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// Pong is the ping response body
type Pong struct {
	Ping string `json:"ping"`
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// RegisterHandlers attaches all v1 routes to the given router group
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	auth := router.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/logout", controllers.HandleLogout)
	auth.Get("/me", middleware.RequireAuth, controllers.HandleMe)

	credits := router.Group("/credits")
	credits.Get("/balance", middleware.RequireAuth, controllers.HandleCreditBalance)

	payments := router.Group("/payments")
	payments.Get("/packages", controllers.HandleCreditPackages)
	payments.Post("/checkout", middleware.RequireAuth, controllers.HandleCreateStripeCheckout)
	payments.Post("/crypto", middleware.RequireAuth, controllers.HandleCreateNowPaymentsInvoice)

	games := router.Group("/games")
	games.Get("/", controllers.HandleGameFeed)
	games.Post("/", middleware.RequireAuth, controllers.HandleGameUpload)
	games.Post("/upload-sessions", middleware.RequireAuth, controllers.HandleCreateUploadSession)
	games.Get("/mine", middleware.RequireAuth, controllers.HandleMyGames)
	games.Post("/generate", middleware.RequireAuth, controllers.HandleGameGenerate)
	games.Get("/:uuid", controllers.HandleGameDetail)
	games.Get("/:uuid/content", controllers.HandleGameContent)
	games.Post("/:uuid/play", controllers.HandleGamePlay)
	games.Post("/:uuid/like", middleware.RequireAuth, controllers.HandleGameLike)
	games.Delete("/:uuid", middleware.RequireAuth, controllers.HandleGameDelete)
}
