package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var u models.User
	if err := h.DB.Preload("Affiliate").First(&u, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	data := fiber.Map{
		"id":            u.ID,
		"full_name":     u.FullName,
		"email":         u.Email,
		"phone":         u.Phone, // own profile only; counterparts go through the gate
		"phone_visible": u.PhoneVisible,
		"role":          u.Role,
		"bio":           u.Bio,
		"created_at":    u.CreatedAt,
	}
	if u.Affiliate != nil {
		data["affiliate"] = u.Affiliate
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

type UpdateProfileReq struct {
	FullName     *string `json:"full_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	PhoneVisible *bool   `json:"phone_visible,omitempty"`
	Bio          *string `json:"bio,omitempty"`
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var req UpdateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	updates := map[string]any{}
	errs := FieldErrors{}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			errs.Add("full_name", "Full name is required")
		} else {
			updates["full_name"] = name
		}
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" && len(phone) < 8 {
			errs.Add("phone", "Invalid phone number")
		} else {
			updates["phone"] = phone
		}
	}
	if req.PhoneVisible != nil {
		updates["phone_visible"] = *req.PhoneVisible
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}

	if len(errs) > 0 {
		return validationFail(c, errs)
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Nothing to update",
		})
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		return fail(c, err)
	}

	return h.Me(c)
}
