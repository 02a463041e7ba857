package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/services/moderation"
	"github.com/kareemadel/mustaqill_be/internal/services/visibility"
)

type ProjectHandler struct {
	DB         *gorm.DB
	Visibility *visibility.VisibilityService
	UploadDir  string
	AppBaseURL string
}

func NewProjectHandler(db *gorm.DB, vis *visibility.VisibilityService, uploadDir, appBaseURL string) *ProjectHandler {
	return &ProjectHandler{DB: db, Visibility: vis, UploadDir: uploadDir, AppBaseURL: appBaseURL}
}

type CreateProjectReq struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	BudgetMin      int64    `json:"budget_min"` // cents
	BudgetMax      *int64   `json:"budget_max,omitempty"`
	EstimatedHours *int     `json:"estimated_hours,omitempty"`
	Deadline       string   `json:"deadline,omitempty"` // ISO date
	ReferralCode   string   `json:"referral_code,omitempty"`
	Skills         []string `json:"skills,omitempty"`
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var req CreateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	category := strings.TrimSpace(req.Category)

	errs := FieldErrors{}
	if title == "" {
		errs.Add("title", "Title is required")
	}
	if description == "" {
		errs.Add("description", "Description is required")
	} else if moderation.ContainsContactInfo(description) {
		errs.Add("description", "Description must not contain contact information")
	}
	if category == "" {
		errs.Add("category", "Category is required")
	}
	if req.BudgetMin < models.MinimumBudget {
		errs.Add("budget_min", "Minimum budget is $300")
	}
	if req.BudgetMax != nil && *req.BudgetMax < req.BudgetMin {
		errs.Add("budget_max", "Maximum budget must not be below the minimum")
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			errs.Add("deadline", "Deadline must be a YYYY-MM-DD date")
		} else {
			deadline = &d
		}
	}

	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var skills datatypes.JSON
	if len(req.Skills) > 0 {
		b, _ := json.Marshal(req.Skills)
		skills = datatypes.JSON(b)
	}

	project := models.Project{
		ClientID:       userID,
		Title:          title,
		Description:    description,
		Category:       category,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		EstimatedHours: req.EstimatedHours,
		Deadline:       deadline,
		ReferralCode:   strings.TrimSpace(req.ReferralCode),
		Skills:         skills,
		Status:         models.ProjectStatusOpen,
	}

	if err := h.DB.Create(&project).Error; err != nil {
		log.Println("Error creating project:", err)
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    project,
	})
}

func (h *ProjectHandler) ListPublic(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	offset := (page - 1) * limit

	q := h.DB.Model(&models.Project{}).Preload("Client")

	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status = ?", models.ProjectStatusOpen)
	}
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	q.Count(&total)

	var projects []models.Project
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    projects,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *ProjectHandler) GetDetail(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	var project models.Project
	if err := h.DB.
		Preload("Client").
		Preload("Bids").
		Preload("Bids.Freelancer").
		Preload("Files").
		First(&project, "id = ?", projectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    project,
	})
}

func (h *ProjectHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var projects []models.Project
	if err := h.DB.
		Preload("Bids").
		Preload("Bids.Freelancer").
		Where("client_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    projects,
	})
}

// Cancel closes an open project before any bid is accepted.
func (h *ProjectHandler) Cancel(c *fiber.Ctx) error {
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
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}
	if project.ClientID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the project owner can cancel it",
		})
	}

	res := h.DB.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusOpen).
		Update("status", models.ProjectStatusCancelled)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Only open projects can be cancelled",
		})
	}

	project.Status = models.ProjectStatusCancelled
	return c.JSON(fiber.Map{
		"success": true,
		"data":    project,
	})
}

// Complete marks an in-progress project as done.
func (h *ProjectHandler) Complete(c *fiber.Ctx) error {
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
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}
	if project.ClientID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the project owner can complete it",
		})
	}

	res := h.DB.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusInProgress).
		Update("status", models.ProjectStatusCompleted)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Only in-progress projects can be completed",
		})
	}

	project.Status = models.ProjectStatusCompleted
	return c.JSON(fiber.Map{
		"success": true,
		"data":    project,
	})
}

// UploadFiles stores project attachments. Each file is saved independently:
// a failed file is skipped, the rest still go through.
func (h *ProjectHandler) UploadFiles(c *fiber.Ctx) error {
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
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}
	if project.ClientID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the project owner can upload files",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "No files in request",
		})
	}

	uploadDir := filepath.Join(h.UploadDir, "projects", projectID.String())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fail(c, err)
	}

	var stored []models.ProjectFile
	for _, file := range form.File["files"] {
		if file.Size > 25*1024*1024 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "File " + file.Filename + " exceeds 25MB limit",
			})
		}

		ext := filepath.Ext(file.Filename)
		filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
		savePath := filepath.Join(uploadDir, filename)
		if err := c.SaveFile(file, savePath); err != nil {
			log.Println("Error saving project file:", err)
			continue
		}

		publicPath := "/uploads/projects/" + projectID.String() + "/" + filename
		if h.AppBaseURL != "" {
			publicPath = strings.TrimRight(h.AppBaseURL, "/") + publicPath
		}

		meta := models.ProjectFile{
			ProjectID:  projectID,
			UploaderID: userID,
			FileName:   file.Filename,
			FilePath:   publicPath,
			FileSize:   file.Size,
		}
		if err := h.DB.Create(&meta).Error; err != nil {
			log.Println("Error storing file metadata:", err)
			continue
		}
		stored = append(stored, meta)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    stored,
	})
}

// GetContact is the contact visibility gate: the counterpart phone number
// is released only when an accepted-bid relationship links viewer and subject.
func (h *ProjectHandler) GetContact(c *fiber.Ctx) error {
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

	phone, err := h.Visibility.VisiblePhone(userID, projectID)
	if err != nil {
		return fail(c, err)
	}

	if phone == "" {
		return c.JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"phone": nil},
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"phone": phone},
	})
}
