package visibility

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
)

type VisibilityService struct {
	DB *gorm.DB
}

func NewVisibilityService(db *gorm.DB) *VisibilityService {
	return &VisibilityService{DB: db}
}

// VisiblePhone returns the counterpart's phone number for a project, or ""
// when the viewer has no right to see it. The phone is revealed only between
// the project's client and the freelancer of its accepted bid; every other
// viewer gets nothing, regardless of the phone_visible profile flag.
// Affiliates are never a counterpart, so their numbers are never exposed.
func (s *VisibilityService) VisiblePhone(viewerID, projectID uuid.UUID) (string, error) {
	var project models.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.New(apperr.NotFound, "project not found")
		}
		return "", apperr.Wrap(apperr.External, "load project", err)
	}

	var accepted models.Bid
	err := s.DB.Where("project_id = ? AND status = ?", projectID, models.BidStatusAccepted).
		First(&accepted).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.External, "load accepted bid", err)
	}

	var subjectID uuid.UUID
	switch viewerID {
	case project.ClientID:
		subjectID = accepted.FreelancerID
	case accepted.FreelancerID:
		subjectID = project.ClientID
	default:
		return "", nil
	}

	var subject models.User
	if err := s.DB.First(&subject, "id = ?", subjectID).Error; err != nil {
		return "", apperr.Wrap(apperr.External, "load subject", err)
	}
	if subject.Role == models.RoleAffiliate {
		return "", nil
	}
	return subject.Phone, nil
}
