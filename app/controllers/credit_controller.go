package controllers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/internal/pkg/cache"
	"github.com/glitchpeach/gamestudio/internal/pkg/credits"
	"github.com/glitchpeach/gamestudio/internal/pkg/database"
	"github.com/glitchpeach/gamestudio/internal/pkg/usercontext"
)

const (
	creditBalanceCacheKey = "credits:balance:%d"
	creditBalanceCacheTTL = 30 * time.Second
)

var creditService *credits.Service

// InitializeCreditService allows injecting a credit service, mainly for tests.
func InitializeCreditService(svc *credits.Service) {
	creditService = svc
}

func getCreditService() *credits.Service {
	if creditService == nil {
		creditService = credits.NewServiceFromDB(database.GetDB())
	}
	return creditService
}

// HandleCreditBalance returns the current credit balance of the session user.
// The balance is cached briefly; mutations invalidate the cache.
func HandleCreditBalance(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	cacheKey := fmt.Sprintf(creditBalanceCacheKey, userCtx.UserID)
	if val, err := cache.Get(cacheKey); err == nil {
		if balance, perr := strconv.Atoi(val); perr == nil {
			return c.JSON(fiber.Map{"success": true, "credits": balance})
		}
	}

	balance, err := getCreditService().GetBalance(c.Context(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "balance_failed", "could not load credit balance")
	}

	_ = cache.Set(cacheKey, strconv.Itoa(balance), creditBalanceCacheTTL)

	return c.JSON(fiber.Map{"success": true, "credits": balance})
}

// HandleCreditPackages returns the purchasable credit packages
func HandleCreditPackages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"packages": models.CreditPackages,
	})
}

// invalidateCreditBalanceCache drops the cached balance after a mutation
func invalidateCreditBalanceCache(userID uint) {
	_ = cache.Delete(fmt.Sprintf(creditBalanceCacheKey, userID))
}
