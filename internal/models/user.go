package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAffiliate  Role = "affiliate"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string    `gorm:"not null" json:"full_name"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`

	// Phone is never serialized directly; counterparts only see it through
	// the contact visibility gate.
	Phone        string `gorm:"type:varchar(30)" json:"-"`
	PhoneVisible bool   `gorm:"default:false" json:"phone_visible"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	Bio      string `gorm:"type:text" json:"bio"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Affiliate *Affiliate `gorm:"foreignKey:UserID;references:ID" json:"affiliate,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
