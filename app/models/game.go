package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Game is an uploaded or generated HTML5 game. The file itself lives in object
// storage; ContentURL points at it.
type Game struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Title       string         `gorm:"type:varchar(150);not null" json:"title" validate:"required,min=1,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"required,max=2000"`
	Category    string         `gorm:"type:varchar(50);default:'arcade'" json:"category"`
	FileName    string         `gorm:"type:varchar(255)" json:"file_name"`
	FileSize    int64          `json:"file_size"`
	ContentURL  string         `gorm:"type:varchar(500)" json:"content_url"`
	Source      string         `gorm:"type:varchar(20);default:'upload'" json:"source"` // upload or generated
	Published   bool           `gorm:"default:true;index" json:"published"`
	PlayCount   int64          `gorm:"not null;default:0" json:"play_count"`
	LikeCount   int64          `gorm:"not null;default:0" json:"like_count"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (g *Game) Validate() error {
	v := validator.New()

	return v.Struct(g)
}

// IncrementPlayCount bumps the play counter with a single atomic UPDATE.
func IncrementPlayCount(db *gorm.DB, gameID uint) error {
	return db.Model(&Game{}).Where("id = ?", gameID).
		UpdateColumn("play_count", gorm.Expr("play_count + ?", 1)).Error
}
