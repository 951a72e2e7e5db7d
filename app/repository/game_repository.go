package repository

import (
	"strings"

	"github.com/glitchpeach/gamestudio/app/models"
	"gorm.io/gorm"
)

// gameRepository implements the GameRepository interface
type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository creates a new game repository instance
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

// Create creates a new game in the database
func (r *gameRepository) Create(game *models.Game) error {
	return r.db.Create(game).Error
}

// GetByID retrieves a game by its ID
func (r *gameRepository) GetByID(id uint) (*models.Game, error) {
	var game models.Game
	err := r.db.First(&game, id).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetByUUID retrieves a game by its UUID
func (r *gameRepository) GetByUUID(uuid string) (*models.Game, error) {
	var game models.Game
	err := r.db.Where("uuid = ?", uuid).First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetByUserID retrieves a paginated list of games owned by a user
func (r *gameRepository) GetByUserID(userID uint, offset, limit int) ([]models.Game, error) {
	var games []models.Game
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Offset(offset).Limit(limit).Find(&games).Error
	return games, err
}

// Update updates an existing game in the database
func (r *gameRepository) Update(game *models.Game) error {
	return r.db.Save(game).Error
}

// Delete soft deletes a game by its ID
func (r *gameRepository) Delete(id uint) error {
	return r.db.Delete(&models.Game{}, id).Error
}

// GetPublished retrieves a paginated list of published games, newest first
func (r *gameRepository) GetPublished(offset, limit int) ([]models.Game, error) {
	var games []models.Game
	err := r.db.Where("published = ?", true).Order("created_at DESC").Offset(offset).Limit(limit).Find(&games).Error
	return games, err
}

// GetRecent retrieves the most recently published games
func (r *gameRepository) GetRecent(limit int) ([]models.Game, error) {
	var games []models.Game
	err := r.db.Where("published = ?", true).Order("created_at DESC").Limit(limit).Find(&games).Error
	return games, err
}

// Count returns the total number of games
func (r *gameRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Game{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of games owned by a user
func (r *gameRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Game{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Search searches published games by title or description
func (r *gameRepository) Search(query string) ([]models.Game, error) {
	var games []models.Game
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("published = ? AND (title LIKE ? OR description LIKE ?)", true, searchPattern, searchPattern).Find(&games).Error
	return games, err
}

// IncrementPlayCount atomically increments the play counter of a game
func (r *gameRepository) IncrementPlayCount(id uint) error {
	return models.IncrementPlayCount(r.db, id)
}

// ToggleLike toggles the like of a user on a game. Returns true when the game
// is liked after the call, false when the like was removed.
func (r *gameRepository) ToggleLike(userID, gameID uint) (bool, error) {
	return models.ToggleGameLike(r.db, userID, gameID)
}

// IsLikedBy reports whether the given user has liked the given game
func (r *gameRepository) IsLikedBy(userID, gameID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GameLike{}).Where("user_id = ? AND game_id = ?", userID, gameID).Count(&count).Error
	return count > 0, err
}
