package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/internal/pkg/cache"
	"github.com/glitchpeach/gamestudio/internal/pkg/database"
)

const (
	CacheKeyGamesTotal = "statistics:games:total"
	CacheKeyGamesDaily = "statistics:games:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers      = "statistics:users:total"
	CacheKeyPlaysTotal = "statistics:plays:total"
	CacheExpiration    = 30 * time.Minute
)

// StatisticsData holds the aggregated numbers shown on the studio overview
type StatisticsData struct {
	TodayGames int
	TotalUsers int
	TotalGames int
	TotalPlays int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached statistics are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when the interval elapsed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalGames int64
	if err := db.Model(&models.Game{}).Where("published = ?", true).Count(&totalGames).Error; err != nil {
		log.Printf("Error counting total games: %v", err)
		return err
	}

	var todayGames int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Game{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayGames).Error; err != nil {
		log.Printf("Error counting today's games: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var totalPlays *int64
	if err := db.Model(&models.Game{}).Select("SUM(play_count)").Scan(&totalPlays).Error; err != nil {
		log.Printf("Error summing play counts: %v", err)
		return err
	}
	var plays int64
	if totalPlays != nil {
		plays = *totalPlays
	}

	if err := cache.Set(CacheKeyGamesTotal, strconv.FormatInt(totalGames, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total games: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyGamesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayGames, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's games: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPlaysTotal, strconv.FormatInt(plays, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total plays: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total Games: %d, Today's Games: %d, Total Users: %d, Total Plays: %d",
		totalGames, todayGames, totalUsers, plays)

	return nil
}

// GetTotalGames returns the number of published games from cache or database
func GetTotalGames() int {
	val, err := cache.Get(CacheKeyGamesTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Game{}).Where("published = ?", true).Count(&count).Error; err != nil {
			log.Printf("Error counting total games: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyGamesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total games: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayGames returns the number of games created today from cache or database
func GetTodayGames() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyGamesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Game{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's games: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's games: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalPlays returns the total play count across all games from cache or database
func GetTotalPlays() int {
	val, err := cache.Get(CacheKeyPlaysTotal)
	if err != nil {
		var sum *int64
		db := database.GetDB()
		if err := db.Model(&models.Game{}).Select("SUM(play_count)").Scan(&sum).Error; err != nil {
			log.Printf("Error summing play counts: %v", err)
			return 0
		}
		var count int64
		if sum != nil {
			count = *sum
		}

		if err := cache.Set(CacheKeyPlaysTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total plays: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayGames: GetTodayGames(),
		TotalUsers: GetTotalUsers(),
		TotalGames: GetTotalGames(),
		TotalPlays: GetTotalPlays(),
	}
}
