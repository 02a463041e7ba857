package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/services/referral"
	"github.com/kareemadel/mustaqill_be/internal/services/settlement"
)

type AffiliateHandler struct {
	DB         *gorm.DB
	Referrals  *referral.ReferralService
	Settlement *settlement.SettlementService
}

func NewAffiliateHandler(db *gorm.DB, refs *referral.ReferralService, settle *settlement.SettlementService) *AffiliateHandler {
	return &AffiliateHandler{DB: db, Referrals: refs, Settlement: settle}
}

// OptIn turns the caller into an affiliate and issues a referral code.
// Calling it again just returns the existing record.
func (h *AffiliateHandler) OptIn(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	aff, err := h.Referrals.EnsureAffiliate(userID)
	if err != nil {
		log.Println("Error creating affiliate:", err)
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    aff,
	})
}

// Dashboard returns the affiliate's code and counters, with the earnings
// recomputed from the ledger next to the cached total so drift is visible.
func (h *AffiliateHandler) Dashboard(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var aff models.Affiliate
	if err := h.DB.Where("user_id = ?", userID).First(&aff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperr.New(apperr.NotFound, "Not an affiliate"))
		}
		return fail(c, err)
	}

	completed, pending, err := h.Settlement.AffiliateEarnings(aff.ID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"referral_code":    aff.ReferralCode,
			"commission_rate":  aff.CommissionRate,
			"is_active":        aff.IsActive,
			"total_referrals":  aff.TotalReferrals,
			"total_earnings":   aff.TotalEarnings,
			"settled_earnings": completed,
			"pending_earnings": pending,
		},
	})
}

func (h *AffiliateHandler) ListReferrals(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var aff models.Affiliate
	if err := h.DB.Where("user_id = ?", userID).First(&aff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperr.New(apperr.NotFound, "Not an affiliate"))
		}
		return fail(c, err)
	}

	refs, err := h.Referrals.ListByAffiliate(aff.ID)
	if err != nil {
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(refs))
	for _, r := range refs {
		m := fiber.Map{
			"id":         r.ID,
			"status":     r.Status,
			"created_at": r.CreatedAt,
		}
		if r.ReferredUser != nil {
			m["referred_user"] = fiber.Map{
				"full_name": r.ReferredUser.FullName,
				"role":      r.ReferredUser.Role,
			}
		}
		if r.CommissionAmount != nil {
			m["commission_amount"] = *r.CommissionAmount
		}
		if r.ProjectID != nil {
			m["project_id"] = *r.ProjectID
		}
		out = append(out, m)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
	})
}
