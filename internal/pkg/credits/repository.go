package credits

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glitchpeach/gamestudio/app/models"
)

// Repository provides the atomic balance operations used by the ledger service.
// All mutations are single conditional UPDATE statements; the database
// arbitrates concurrency, never application-level read-modify-write.
type Repository interface {
	GetBalance(userID uint) (int, error)
	EnsureAccount(userID uint, starting int) error
	Add(userID uint, amount int) error
	// DeductIfAvailable decrements only when the balance covers the amount and
	// reports whether a row was actually updated.
	DeductIfAvailable(userID uint, amount int) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(userID uint) (int, error) {
	var uc models.UserCredits
	err := r.db.Where("user_id = ?", userID).First(&uc).Error
	if err != nil {
		return 0, err
	}
	return uc.Credits, nil
}

func (r *gormRepository) EnsureAccount(userID uint, starting int) error {
	return models.EnsureUserCredits(r.db, userID, starting)
}

func (r *gormRepository) Add(userID uint, amount int) error {
	res := r.db.Model(&models.UserCredits{}).
		Where("user_id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// No balance row yet. Create it seeded with the amount; if a concurrent
	// request created the row in between, the unique index wins and we retry
	// the increment.
	createRes := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.UserCredits{UserID: userID, Credits: amount})
	if createRes.Error != nil {
		return createRes.Error
	}
	if createRes.RowsAffected > 0 {
		return nil
	}

	return r.db.Model(&models.UserCredits{}).
		Where("user_id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount)).Error
}

func (r *gormRepository) DeductIfAvailable(userID uint, amount int) (bool, error) {
	res := r.db.Model(&models.UserCredits{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
