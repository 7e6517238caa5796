package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PostType string

const (
	PostTypeText     PostType = "text"
	PostTypeJob      PostType = "job"
	PostTypeShowcase PostType = "showcase"
)

// Post is a feed entry. Content is a free-form union whose shape depends on
// Type: text posts carry {text}, job posts {text, budget, skills}, showcase
// posts {text, image_url, link}.
type Post struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Type     PostType       `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Content  datatypes.JSON `gorm:"not null" json:"content"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author   *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Likes    []PostLike    `gorm:"foreignKey:PostID" json:"likes,omitempty"`
	Comments []PostComment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// PostLike rows double as the toggle state: liking twice is an unlike.
type PostLike struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user" json:"post_id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}

type PostComment struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID   uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Text     string    `gorm:"type:text;not null" json:"text"`

	CreatedAt time.Time `json:"created_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (c *PostComment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
