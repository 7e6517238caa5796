package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal is a freelancer's bid on an open project. One proposal per
// (project, freelancer) pair, enforced at the storage layer.
type Proposal struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_proposals_project_freelancer" json:"project_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_proposals_project_freelancer" json:"freelancer_id"`

	CoverLetter string         `gorm:"type:text;not null" json:"cover_letter"`
	BidAmount   int64          `gorm:"not null" json:"bid_amount"`
	Status      ProposalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project    *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Freelancer *User    `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
