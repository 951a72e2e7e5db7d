package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type GameLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_game_likes_user_game,priority:1" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	GameID    uint      `gorm:"not null;uniqueIndex:ux_game_likes_user_game,priority:2;index" json:"game_id"`
	Game      Game      `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ToggleGameLike creates or removes a like and keeps the denormalized
// like_count on the game in step, inside one transaction. Reports whether the
// game is liked after the call.
func ToggleGameLike(db *gorm.DB, userID, gameID uint) (bool, error) {
	liked := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var like GameLike
		result := tx.Where("user_id = ? AND game_id = ?", userID, gameID).First(&like)

		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			if err := tx.Create(&GameLike{UserID: userID, GameID: gameID}).Error; err != nil {
				return err
			}
			liked = true
			return tx.Model(&Game{}).Where("id = ?", gameID).
				UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error
		}

		if err := tx.Delete(&like).Error; err != nil {
			return err
		}
		return tx.Model(&Game{}).Where("id = ? AND like_count > 0", gameID).
			UpdateColumn("like_count", gorm.Expr("like_count - ?", 1)).Error
	})
	return liked, err
}
