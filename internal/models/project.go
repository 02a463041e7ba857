package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// MinimumBudget is the platform floor, in cents ($300).
const MinimumBudget int64 = 30000

type Project struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"type:varchar(50);not null;index" json:"category"`

	// Amounts in cents.
	BudgetMin      int64      `gorm:"not null" json:"budget_min"`
	BudgetMax      *int64     `json:"budget_max,omitempty"`
	EstimatedHours *int       `json:"estimated_hours,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`

	// ReferralCode recorded at creation; drives affiliate settlement on acceptance.
	ReferralCode string         `gorm:"type:varchar(20);index" json:"referral_code,omitempty"`
	Skills       datatypes.JSON `json:"skills,omitempty"`

	Status ProjectStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client *User         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Bids   []Bid         `gorm:"foreignKey:ProjectID" json:"bids,omitempty"`
	Files  []ProjectFile `gorm:"foreignKey:ProjectID" json:"files,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

type ProjectFile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	UploaderID uuid.UUID `gorm:"type:uuid;not null" json:"uploader_id"`

	FileName string `gorm:"not null" json:"file_name"`
	FilePath string `gorm:"type:text;not null" json:"file_path"`
	FileSize int64  `json:"file_size"`

	CreatedAt time.Time `json:"created_at"`
}

func (f *ProjectFile) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}
