package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusPaid      ReferralStatus = "paid"
)

type Affiliate struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	// ReferralCode is immutable once issued.
	ReferralCode   string  `gorm:"type:varchar(20);uniqueIndex;not null" json:"referral_code"`
	CommissionRate float64 `gorm:"not null;default:10.0" json:"commission_rate"`

	// Convenience caches; the transaction ledger stays authoritative.
	TotalReferrals int   `gorm:"not null;default:0" json:"total_referrals"`
	TotalEarnings  int64 `gorm:"not null;default:0" json:"total_earnings"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (a *Affiliate) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

type Referral struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AffiliateID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_referrals_affiliate_user" json:"affiliate_id"`
	ReferredUserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_referrals_affiliate_user" json:"referred_user_id"`
	ReferralCode   string    `gorm:"type:varchar(20);not null" json:"referral_code"`

	Status           ReferralStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ProjectID        *uuid.UUID     `gorm:"type:uuid;index" json:"project_id,omitempty"`
	CommissionAmount *int64         `json:"commission_amount,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Affiliate    *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
	ReferredUser *User      `gorm:"foreignKey:ReferredUserID" json:"referred_user,omitempty"`
}

func (r *Referral) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

const referralCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReferralCode returns a code like AFFX1Y2Z3AB (AFF + 8 random chars).
func GenerateReferralCode() string {
	b := make([]byte, 8)
	max := big.NewInt(int64(len(referralCodeChars)))
	for i := range b {
		n, _ := rand.Int(rand.Reader, max)
		b[i] = referralCodeChars[n.Int64()]
	}
	return "AFF" + string(b)
}
