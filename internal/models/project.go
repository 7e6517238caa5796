package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in-progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// Project is the unit of contracted work. Status moves strictly forward:
// open -> in-progress (proposal accepted) -> completed (invoice paid).
// FreelancerID is nil exactly while the project is open.
type Project struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Budget      int64         `gorm:"not null" json:"budget"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	ClientID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	FreelancerID *uuid.UUID `gorm:"type:uuid;index" json:"freelancer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client     *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// IsParticipant reports whether userID is the owning client or the
// assigned freelancer.
func (p *Project) IsParticipant(userID uuid.UUID) bool {
	if p.ClientID == userID {
		return true
	}
	return p.FreelancerID != nil && *p.FreelancerID == userID
}
