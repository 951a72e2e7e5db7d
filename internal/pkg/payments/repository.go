package payments

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glitchpeach/gamestudio/app/models"
)

// Repository provides DB operations used by the reconciliation service.
type Repository interface {
	GetProcessedPayment(orderID string) (*models.ProcessedPayment, error)
	GetPaymentOrder(orderID string) (*models.PaymentOrder, error)
	CreatePaymentOrder(order *models.PaymentOrder) error
	UpdatePaymentOrderRef(orderID, providerRef string) error
	// RecordPaymentAndCredit inserts the processed_payments row and increments
	// the user's balance in one transaction. The unique index on order_id
	// arbitrates races: the loser reports created=false and mutates nothing.
	RecordPaymentAndCredit(p *models.ProcessedPayment) (created bool, err error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProcessedPayment(orderID string) (*models.ProcessedPayment, error) {
	var p models.ProcessedPayment
	err := r.db.Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentOrder(orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) CreatePaymentOrder(order *models.PaymentOrder) error {
	return r.db.Create(order).Error
}

func (r *gormRepository) UpdatePaymentOrderRef(orderID, providerRef string) error {
	return r.db.Model(&models.PaymentOrder{}).
		Where("order_id = ?", orderID).
		Update("provider_ref", providerRef).Error
}

func (r *gormRepository) RecordPaymentAndCredit(p *models.ProcessedPayment) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).Create(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another delivery won the race; no credit mutation.
			return nil
		}
		created = true

		upd := tx.Model(&models.UserCredits{}).
			Where("user_id = ?", p.UserID).
			UpdateColumn("credits", gorm.Expr("credits + ?", p.CreditsAdded))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&models.UserCredits{UserID: p.UserID, Credits: p.CreditsAdded}).Error; err != nil {
				return err
			}
		}

		// Close out the pending order when one exists.
		now := time.Now()
		return tx.Model(&models.PaymentOrder{}).
			Where("order_id = ? AND status = ?", p.OrderID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"status":       models.OrderStatusCompleted,
				"completed_at": &now,
			}).Error
	})
	return created, err
}
