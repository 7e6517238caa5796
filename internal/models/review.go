package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is post-completion feedback between the two participants of a
// project. One review per (project, reviewer), enforced by a composite
// unique index. Reviews are immutable once written.
type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_project_reviewer" json:"project_id"`
	ReviewerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_project_reviewer" json:"reviewer_id"`
	RevieweeID uuid.UUID `gorm:"type:uuid;not null;index" json:"reviewee_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project  *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Reviewer *User    `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Reviewee *User    `gorm:"foreignKey:RevieweeID" json:"reviewee,omitempty"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
