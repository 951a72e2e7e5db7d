package models

import "time"

const (
	PaymentTypeStripe      = "stripe"
	PaymentTypeNowPayments = "nowpayments"
)

// ProcessedPayment is the durable record preventing duplicate credit grants.
// The unique index on order_id is the sole correctness mechanism against
// double-crediting: insert-or-conflict arbitrates racing webhook deliveries.
type ProcessedPayment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OrderID         string    `gorm:"type:varchar(100);not null;uniqueIndex:ux_processed_payments_order" json:"order_id"`
	PaymentID       string    `gorm:"type:varchar(100);default:null" json:"payment_id,omitempty"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreditsAdded    int       `gorm:"not null" json:"credits_added"`
	AmountCents     int64     `gorm:"not null" json:"amount_cents"`
	Currency        string    `gorm:"type:varchar(10);not null" json:"currency"`
	PaymentType     string    `gorm:"type:varchar(20);not null;index" json:"payment_type"`
	StripeSessionID string    `gorm:"type:varchar(191);default:null" json:"stripe_session_id,omitempty"`
	CustomerEmail   string    `gorm:"type:varchar(200);default:null" json:"customer_email,omitempty"`
	ProcessedAt     time.Time `gorm:"type:timestamp" json:"processed_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
