package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

const (
	MinDeliveryDays = 1
	MaxDeliveryDays = 365
)

type Bid struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_project_freelancer" json:"project_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_bids_project_freelancer" json:"freelancer_id"`

	// Amounts in cents.
	Amount       int64  `gorm:"not null" json:"amount"`
	DeliveryDays int    `gorm:"not null" json:"delivery_days"`
	Proposal     string `gorm:"type:text;not null" json:"proposal"`

	// FreelancerCommission is fixed at creation: 20% of Amount.
	FreelancerCommission int64 `gorm:"not null" json:"freelancer_commission"`

	Status BidStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project    *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Freelancer *User    `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
