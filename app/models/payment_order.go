package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusExpired   = "expired"
)

// PaymentOrder is the pending order created before the user is redirected to a
// payment provider. The webhook resolves the crediting user and amount from it
// by order_id.
type PaymentOrder struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrderID        string     `gorm:"type:varchar(100);not null;uniqueIndex:ux_payment_orders_order" json:"order_id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	User           User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PackageCredits int        `gorm:"not null" json:"package_credits"`
	AmountCents    int64      `gorm:"not null" json:"amount_cents"`
	Currency       string     `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	Provider       string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderRef    string     `gorm:"type:varchar(191);default:null" json:"provider_ref,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CompletedAt    *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
