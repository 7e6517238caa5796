package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a direct chat thread between two users. ParticipantOne
// is the user who opened it.
type Conversation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ParticipantOneID uuid.UUID `gorm:"type:uuid;not null;index" json:"participant_one_id"`
	ParticipantTwoID uuid.UUID `gorm:"type:uuid;not null;index" json:"participant_two_id"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	ParticipantOne *User     `gorm:"foreignKey:ParticipantOneID" json:"participant_one,omitempty"`
	ParticipantTwo *User     `gorm:"foreignKey:ParticipantTwoID" json:"participant_two,omitempty"`
	Messages       []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// HasParticipant reports whether userID belongs to this conversation.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantOneID == userID || c.ParticipantTwoID == userID
}

// Message is a direct message inside a conversation.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"sender_id"`
	Text           string     `gorm:"type:text;not null" json:"text"`
	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// ProjectMessage is a message in a project's shared room, persisted so a
// reconnecting participant can backfill over REST.
type ProjectMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *ProjectMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
