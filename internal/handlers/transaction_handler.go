package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/services/notify"
	"github.com/kareemadel/mustaqill_be/internal/services/settlement"
)

type TransactionHandler struct {
	DB         *gorm.DB
	Settlement *settlement.SettlementService
	Notify     *notify.NotifyService
}

func NewTransactionHandler(db *gorm.DB, settle *settlement.SettlementService, notifier *notify.NotifyService) *TransactionHandler {
	return &TransactionHandler{DB: db, Settlement: settle, Notify: notifier}
}

func (h *TransactionHandler) List(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	txs, err := h.Settlement.ListForUser(userID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txs,
	})
}

func (h *TransactionHandler) Summary(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	sum, err := h.Settlement.Summarize(userID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sum,
	})
}

type UpdateTransactionStatusReq struct {
	Status string `json:"status"` // completed / failed
}

// UpdateStatus is the disbursement driver: an admin moves a pending ledger
// row to completed or failed. Route is admin-only.
func (h *TransactionHandler) UpdateStatus(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid transaction ID",
		})
	}

	var req UpdateTransactionStatusReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	tx, err := h.Settlement.MarkTransactionStatus(txID, models.TransactionStatus(req.Status))
	if err != nil {
		log.Println("Error updating transaction status:", err)
		return fail(c, err)
	}

	if tx.Status == models.TransactionStatusCompleted {
		h.Notify.Send(tx.UserID, "Payout completed", "A pending payout has been disbursed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tx,
	})
}
