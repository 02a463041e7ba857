package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/services/notify"
	"github.com/kareemadel/mustaqill_be/internal/services/referral"
	"github.com/kareemadel/mustaqill_be/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
	Referrals *referral.ReferralService
	Notify    *notify.NotifyService
}

type RegisterReq struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`          // client / freelancer / affiliate
	ReferralCode string `json:"referral_code"` // optional, from ?ref= signup link
}

var signupRoles = map[string]models.Role{
	"client":     models.RoleClient,
	"freelancer": models.RoleFreelancer,
	"affiliate":  models.RoleAffiliate,
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	password := strings.TrimSpace(req.Password)

	role, roleOK := signupRoles[strings.ToLower(strings.TrimSpace(req.Role))]

	errs := FieldErrors{}

	if fullName == "" {
		errs.Add("full_name", "Full name is required")
	}
	if email == "" {
		errs.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "Invalid email format")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	} else if len(password) < 6 {
		errs.Add("password", "Password must be at least 6 characters")
	}
	if !roleOK {
		errs.Add("role", "Role must be client, freelancer or affiliate")
	}
	if phone != "" && len(phone) < 8 {
		errs.Add("phone", "Invalid phone number")
	}

	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		errs := FieldErrors{}
		errs.Add("email", "Email is already registered")
		return validationFail(c, errs)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, err)
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return fail(c, err)
	}

	u := models.User{
		FullName: fullName,
		Email:    email,
		Password: pw,
		Phone:    phone,
		Role:     role,
		IsActive: true,
	}

	if err := h.DB.Create(&u).Error; err != nil {
		return fail(c, err)
	}

	// Affiliates get their referral code at signup.
	if role == models.RoleAffiliate {
		if _, err := h.Referrals.EnsureAffiliate(u.ID); err != nil {
			return fail(c, err)
		}
	}

	// Referral attribution is a bonus path: unknown codes never block signup.
	if ref, err := h.Referrals.Attribute(strings.TrimSpace(req.ReferralCode), u.ID); err == nil && ref != nil && ref.Affiliate != nil {
		h.Notify.Send(ref.Affiliate.UserID,
			"New referral",
			fullName+" signed up with your referral code")
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, err)
	}

	setSessionCookie(c, token, h.Expires)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registered",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":        u.ID,
				"full_name": u.FullName,
				"email":     u.Email,
				"role":      u.Role,
			},
		},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if email == "" {
		errs.Add("email", "Email is required")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	if err := h.DB.Where("email = ?", email).First(&u).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	if !u.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Account is inactive",
		})
	}

	if !utils.CheckPassword(u.Password, password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, err)
	}

	setSessionCookie(c, token, h.Expires)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged in",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":        u.ID,
				"full_name": u.FullName,
				"email":     u.Email,
				"role":      u.Role,
			},
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "mq_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

func setSessionCookie(c *fiber.Ctx, token string, expiresMin int) {
	c.Cookie(&fiber.Cookie{
		Name:     "mq_token",
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   expiresMin * 60,
	})
}
