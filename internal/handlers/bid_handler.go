package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/realtime"
	"github.com/kareemadel/mustaqill_be/internal/services/moderation"
	"github.com/kareemadel/mustaqill_be/internal/services/notify"
	"github.com/kareemadel/mustaqill_be/internal/services/settlement"
)

type BidHandler struct {
	DB         *gorm.DB
	Hub        *realtime.Hub
	Settlement *settlement.SettlementService
	Notify     *notify.NotifyService
}

func NewBidHandler(db *gorm.DB, hub *realtime.Hub, settle *settlement.SettlementService, notifier *notify.NotifyService) *BidHandler {
	return &BidHandler{DB: db, Hub: hub, Settlement: settle, Notify: notifier}
}

type SubmitBidReq struct {
	Amount       int64  `json:"amount"` // cents
	DeliveryDays int    `json:"delivery_days"`
	Proposal     string `json:"proposal"`
}

// Submit validates and records a freelancer's offer on an open project.
func (h *BidHandler) Submit(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	var req SubmitBidReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		return fail(c, apperr.New(apperr.NotFound, "Project not found"))
	}
	if project.Status != models.ProjectStatusOpen {
		return fail(c, apperr.New(apperr.NotFound, "Project is not open for bids"))
	}
	if project.ClientID == userID {
		return fail(c, apperr.New(apperr.Authorization, "You cannot bid on your own project"))
	}

	errs := FieldErrors{}
	if req.Amount < models.MinimumBudget {
		errs.Add("amount", "Bid amount must be at least $300")
	} else if req.Amount < project.BudgetMin {
		errs.Add("amount", "Bid amount is below the project's minimum budget")
	}
	if req.DeliveryDays < models.MinDeliveryDays || req.DeliveryDays > models.MaxDeliveryDays {
		errs.Add("delivery_days", "Delivery must be between 1 and 365 days")
	}
	if req.Proposal == "" {
		errs.Add("proposal", "Proposal is required")
	} else if moderation.ContainsContactInfo(req.Proposal) {
		errs.Add("proposal", "Proposal must not contain contact information")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var existing models.Bid
	if err := h.DB.Where("project_id = ? AND freelancer_id = ?", projectID, userID).
		First(&existing).Error; err == nil {
		return fail(c, apperr.New(apperr.Conflict, "You already placed a bid on this project"))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, err)
	}

	bid := models.Bid{
		ProjectID:            projectID,
		FreelancerID:         userID,
		Amount:               req.Amount,
		DeliveryDays:         req.DeliveryDays,
		Proposal:             req.Proposal,
		FreelancerCommission: models.PercentOf(req.Amount, models.FreelancerCommissionPct),
		Status:               models.BidStatusPending,
	}

	if err := h.DB.Create(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fail(c, apperr.New(apperr.Conflict, "You already placed a bid on this project"))
		}
		log.Println("Error creating bid:", err)
		return fail(c, err)
	}

	h.Notify.Send(project.ClientID,
		"New bid received",
		fmt.Sprintf("A freelancer placed a bid on %q", project.Title))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    bid,
	})
}

// ListForProject returns the bids on a project. The owner sees all of them;
// a freelancer sees only their own.
func (h *BidHandler) ListForProject(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		return fail(c, apperr.New(apperr.NotFound, "Project not found"))
	}

	q := h.DB.Preload("Freelancer").Where("project_id = ?", projectID)
	if project.ClientID != userID {
		q = q.Where("freelancer_id = ?", userID)
	}

	var bids []models.Bid
	if err := q.Order("created_at DESC").Find(&bids).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    bids,
	})
}

func (h *BidHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var bids []models.Bid
	if err := h.DB.
		Preload("Project").
		Preload("Project.Client").
		Where("freelancer_id = ?", userID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    bids,
	})
}

// Withdraw retracts a pending bid.
func (h *BidHandler) Withdraw(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid bid ID",
		})
	}

	var bid models.Bid
	if err := h.DB.First(&bid, "id = ?", bidID).Error; err != nil {
		return fail(c, apperr.New(apperr.NotFound, "Bid not found"))
	}
	if bid.FreelancerID != userID {
		return fail(c, apperr.New(apperr.Authorization, "Only the bid owner can withdraw it"))
	}

	res := h.DB.Model(&models.Bid{}).
		Where("id = ? AND status = ?", bidID, models.BidStatusPending).
		Update("status", models.BidStatusWithdrawn)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(c, apperr.New(apperr.Conflict, "Only pending bids can be withdrawn"))
	}

	bid.Status = models.BidStatusWithdrawn
	return c.JSON(fiber.Map{
		"success": true,
		"data":    bid,
	})
}

// Accept awards the project to one bid. The whole transition runs in one DB
// transaction, guarded by a compare-and-set on project.status so that of two
// concurrent acceptances exactly one wins; the loser gets a conflict.
func (h *BidHandler) Accept(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}
	bidID, err := uuid.Parse(c.Params("bidId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid bid ID",
		})
	}

	var accepted models.Bid
	var project models.Project
	var siblings []models.Bid

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Project not found")
			}
			return err
		}
		if project.ClientID != userID {
			return apperr.New(apperr.Authorization, "Only the project owner can accept bids")
		}

		if err := tx.First(&accepted, "id = ? AND project_id = ?", bidID, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Bid not found")
			}
			return err
		}
		if accepted.Status != models.BidStatusPending {
			return apperr.New(apperr.Conflict, "Bid is not pending")
		}

		// CAS on the project status; the race loser affects zero rows.
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", projectID, models.ProjectStatusOpen).
			Update("status", models.ProjectStatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.Conflict, "Project is no longer open")
		}
		project.Status = models.ProjectStatusInProgress

		if err := tx.Model(&models.Bid{}).
			Where("id = ?", accepted.ID).
			Update("status", models.BidStatusAccepted).Error; err != nil {
			return err
		}
		accepted.Status = models.BidStatusAccepted

		// Sibling pending bids are rejected so the project holds exactly
		// one live bid after the award.
		if err := tx.Where("project_id = ? AND id != ? AND status = ?",
			projectID, accepted.ID, models.BidStatusPending).
			Find(&siblings).Error; err != nil {
			return err
		}
		if len(siblings) > 0 {
			if err := tx.Model(&models.Bid{}).
				Where("project_id = ? AND id != ? AND status = ?",
					projectID, accepted.ID, models.BidStatusPending).
				Update("status", models.BidStatusRejected).Error; err != nil {
				return err
			}
		}

		return h.Settlement.SettleAcceptance(tx, &project, &accepted)
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return fail(c, ae)
		}
		log.Println("Error accepting bid:", err)
		return fail(c, err)
	}

	h.Notify.Send(accepted.FreelancerID,
		"Bid accepted",
		fmt.Sprintf("Your bid on %q was accepted. Contact details are now visible.", project.Title))
	for _, s := range siblings {
		h.Notify.Send(s.FreelancerID,
			"Bid not selected",
			fmt.Sprintf("Another bid was chosen for %q", project.Title))
	}

	h.Hub.SendToParties(project.ClientID, accepted.FreelancerID, fiber.Map{
		"type":       "bid_accepted",
		"project_id": project.ID,
		"bid_id":     accepted.ID,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"data":    accepted,
	})
}
