package repository

import (
	"github.com/glitchpeach/gamestudio/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// GameRepository defines the interface for game-related database operations
type GameRepository interface {
	Create(game *models.Game) error
	GetByID(id uint) (*models.Game, error)
	GetByUUID(uuid string) (*models.Game, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Game, error)
	Update(game *models.Game) error
	Delete(id uint) error
	GetPublished(offset, limit int) ([]models.Game, error)
	GetRecent(limit int) ([]models.Game, error)
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	Search(query string) ([]models.Game, error)
	IncrementPlayCount(id uint) error
	ToggleLike(userID, gameID uint) (bool, error)
	IsLikedBy(userID, gameID uint) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User UserRepository
	Game GameRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Game: NewGameRepository(db),
	}
}
