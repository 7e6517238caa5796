package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeliverableStatus string

const (
	DeliverableStatusPendingReview DeliverableStatus = "pending-review"
	DeliverableStatusApproved      DeliverableStatus = "approved"
	DeliverableStatusNeedsRevision DeliverableStatus = "needs-revision"
)

// Deliverable is a file submitted by the assigned freelancer against an
// in-progress project.
type Deliverable struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	SubmittedBy uuid.UUID `gorm:"type:uuid;not null" json:"submitted_by"`

	FileURL     string            `gorm:"type:text;not null" json:"file_url"`
	Description string            `gorm:"type:text" json:"description"`
	Status      DeliverableStatus `gorm:"type:varchar(20);not null;default:'pending-review'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Submitter *User    `gorm:"foreignKey:SubmittedBy" json:"submitter,omitempty"`
}

func (d *Deliverable) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return
}
