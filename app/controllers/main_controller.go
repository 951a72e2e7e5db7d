package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/glitchpeach/gamestudio/internal/pkg/statistics"
)

// HandleStats returns the studio-wide counters for the landing page
func HandleStats(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()
	return c.JSON(fiber.Map{
		"success":     true,
		"total_games": stats.TotalGames,
		"today_games": stats.TodayGames,
		"total_users": stats.TotalUsers,
		"total_plays": stats.TotalPlays,
	})
}

// HandleHealth is a liveness probe endpoint
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
