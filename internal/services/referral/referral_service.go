package referral

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
)

type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// EnsureAffiliate opts a user into the affiliate program: switches the role
// and issues a referral code. Returns the existing record if already opted in.
func (s *ReferralService) EnsureAffiliate(userID uuid.UUID) (*models.Affiliate, error) {
	var existing models.Affiliate
	if err := s.DB.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return &existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.External, "lookup affiliate", err)
	}

	var aff models.Affiliate
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("role", models.RoleAffiliate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "user not found")
		}

		// Retry on the (unlikely) code collision.
		for i := 0; i < 10; i++ {
			aff = models.Affiliate{
				UserID:         userID,
				ReferralCode:   models.GenerateReferralCode(),
				CommissionRate: 10.0,
				IsActive:       true,
			}
			err := tx.Create(&aff).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
		}
		return errors.New("could not generate a unique referral code")
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, apperr.Wrap(apperr.External, "create affiliate", err)
	}
	return &aff, nil
}

// Attribute links a new signup to the affiliate owning the presented code.
// Unknown or inactive codes are skipped silently: referral is a bonus path
// and must never block signup. Attribution is idempotent per
// (affiliate, referred user); a second call returns the existing row.
func (s *ReferralService) Attribute(code string, newUserID uuid.UUID) (*models.Referral, error) {
	if code == "" {
		return nil, nil
	}

	var aff models.Affiliate
	err := s.DB.Where("referral_code = ? AND is_active = ?", code, true).First(&aff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.External, "lookup referral code", err)
	}

	// Self-referral carries no value.
	if aff.UserID == newUserID {
		return nil, nil
	}

	var existing models.Referral
	if err := s.DB.Where("affiliate_id = ? AND referred_user_id = ?", aff.ID, newUserID).
		First(&existing).Error; err == nil {
		return &existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.External, "lookup referral", err)
	}

	ref := models.Referral{
		AffiliateID:    aff.ID,
		ReferredUserID: newUserID,
		ReferralCode:   code,
		Status:         models.ReferralStatusPending,
	}
	if err := s.DB.Create(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a duplicate submission; the earlier row wins.
			if err2 := s.DB.Where("affiliate_id = ? AND referred_user_id = ?", aff.ID, newUserID).
				First(&existing).Error; err2 == nil {
				return &existing, nil
			}
		}
		return nil, apperr.Wrap(apperr.External, "create referral", err)
	}
	ref.Affiliate = &aff
	return &ref, nil
}

// ListByAffiliate returns the referrals an affiliate has generated, newest first.
func (s *ReferralService) ListByAffiliate(affiliateID uuid.UUID) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.DB.Where("affiliate_id = ?", affiliateID).
		Preload("ReferredUser").
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.External, "list referrals", err)
	}
	return refs, nil
}
