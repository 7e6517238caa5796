package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationNewProposal NotificationType = "new_proposal"
	NotificationNewInvoice  NotificationType = "new_invoice"
	NotificationInvoicePaid NotificationType = "invoice_paid"
	NotificationNewLike     NotificationType = "new_like"
	NotificationNewComment  NotificationType = "new_comment"
	NotificationNewMessage  NotificationType = "new_message"
)

type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`

	Type    NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Link    string           `gorm:"type:text;not null" json:"link"`
	Message string           `gorm:"type:text" json:"message"`
	Read    bool             `gorm:"default:false" json:"read"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}
