package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{DB: db}
}

type CreateReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create lets the client rate the freelancer once per completed project.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
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

	var req CreateReviewReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}
	if req.Rating < 1 || req.Rating > 5 {
		errs := FieldErrors{}
		errs.Add("rating", "Rating must be between 1 and 5")
		return validationFail(c, errs)
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		return fail(c, apperr.New(apperr.NotFound, "Project not found"))
	}
	if project.ClientID != userID {
		return fail(c, apperr.New(apperr.Authorization, "Only the project owner can leave a review"))
	}
	if project.Status != models.ProjectStatusCompleted {
		return fail(c, apperr.New(apperr.Validation, "Only completed projects can be reviewed"))
	}

	var accepted models.Bid
	if err := h.DB.Where("project_id = ? AND status = ?", projectID, models.BidStatusAccepted).
		First(&accepted).Error; err != nil {
		return fail(c, apperr.New(apperr.NotFound, "Project has no accepted bid"))
	}

	review := models.Review{
		ProjectID:    projectID,
		ClientID:     userID,
		FreelancerID: accepted.FreelancerID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fail(c, apperr.New(apperr.Conflict, "Project is already reviewed"))
		}
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    review,
	})
}

// ListForFreelancer returns a freelancer's reviews with the average rating.
func (h *ReviewHandler) ListForFreelancer(c *fiber.Ctx) error {
	freelancerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid freelancer ID",
		})
	}

	var reviews []models.Review
	if err := h.DB.
		Preload("Client").
		Where("freelancer_id = ?", freelancerID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return fail(c, err)
	}

	var avg float64
	if len(reviews) > 0 {
		var sum int
		for _, r := range reviews {
			sum += r.Rating
		}
		avg = float64(sum) / float64(len(reviews))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviews,
		"meta":    fiber.Map{"average_rating": avg},
	})
}
