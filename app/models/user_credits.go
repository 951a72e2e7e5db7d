package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StartingCredits is granted to every freshly created account.
const StartingCredits = 2

// UserCredits is the single-row credit balance per account. The balance is
// only ever mutated through atomic add/deduct statements, never read-modify-write.
type UserCredits struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:ux_user_credits_user;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Credits   int       `gorm:"not null;default:0" json:"credits"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnsureUserCredits creates the balance row for a user if it does not exist yet.
// The unique index on user_id arbitrates concurrent creation.
func EnsureUserCredits(db *gorm.DB, userID uint, starting int) error {
	uc := &UserCredits{
		UserID:  userID,
		Credits: starting,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(uc).Error
}
