package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeProjectPayment      TransactionType = "project_payment"
	TransactionTypeAffiliateCommission TransactionType = "affiliate_commission"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger row. The unique (project_id, type)
// index guarantees at most one payout of each type per project, which is
// what keeps settlement idempotent under duplicate triggers.
type Transaction struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_tx_project_type" json:"project_id,omitempty"`
	BidID       *uuid.UUID `gorm:"type:uuid;index" json:"bid_id,omitempty"`
	AffiliateID *uuid.UUID `gorm:"type:uuid;index" json:"affiliate_id,omitempty"`

	// UserID is the payee the row credits.
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// Amounts in cents.
	Amount           int64             `gorm:"not null" json:"amount"`
	CommissionAmount *int64            `json:"commission_amount,omitempty"`
	Type             TransactionType   `gorm:"type:varchar(30);not null;uniqueIndex:idx_tx_project_type" json:"transaction_type"`
	Status           TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Description string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project   *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Bid       *Bid       `gorm:"foreignKey:BidID" json:"bid,omitempty"`
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
	User      *User      `gorm:"foreignKey:UserID" json:"-"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
