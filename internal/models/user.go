package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`

	Bio       string         `gorm:"type:text" json:"bio"`
	Skills    datatypes.JSON `json:"skills"` // ["react", "golang", ...]
	AvatarURL string         `gorm:"type:text" json:"avatar_url"`

	// Rating aggregate, mutated only by review creation.
	AverageRating float64 `gorm:"default:0" json:"average_rating"`
	TotalReviews  int     `gorm:"default:0" json:"total_reviews"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
