package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Invoice is the single payment request for a project. The unique index on
// ProjectID is the real constraint behind "at most one invoice per project".
type Invoice struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	ClientID     uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index" json:"freelancer_id"`

	Amount int64         `gorm:"not null" json:"amount"`
	Status InvoiceStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	// Processor correlation id (payment intent), set when a payment is initiated.
	PaymentRef string     `gorm:"type:varchar(64);index" json:"payment_ref,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project    *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Client     *User    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Freelancer *User    `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}
