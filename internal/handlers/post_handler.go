package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
)

type PostHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewPostHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *PostHandler {
	return &PostHandler{DB: db, Hub: hub, RDB: rdb}
}

type createPostRequest struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Create publishes a feed post. Content is validated against the shape
// the post type declares before it is stored as raw JSON.
func (h *PostHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Type == "" {
		req.Type = string(models.PostTypeText)
	}

	postType := models.PostType(req.Type)
	switch postType {
	case models.PostTypeText, models.PostTypeJob, models.PostTypeShowcase:
	default:
		return fail(c, fiber.StatusBadRequest, "Type must be text, job or showcase")
	}

	if fieldErrs := validatePostContent(postType, req.Content); len(fieldErrs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  fieldErrs,
		})
	}

	post := models.Post{
		AuthorID: userUUID,
		Type:     postType,
		Content:  datatypes.JSON(req.Content),
	}
	if err := h.DB.Create(&post).Error; err != nil {
		logger.Errorf("create post: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to create post")
	}

	h.DB.Preload("Author").First(&post, "id = ?", post.ID)
	return created(c, post)
}

// validatePostContent checks the content union against the post type.
// Unknown extra keys are tolerated.
func validatePostContent(t models.PostType, raw json.RawMessage) map[string]string {
	errs := map[string]string{}
	var content struct {
		Text     string   `json:"text"`
		Budget   float64  `json:"budget"`
		Skills   []string `json:"skills"`
		ImageURL string   `json:"image_url"`
		Link     string   `json:"link"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &content) != nil {
		errs["content"] = "Content must be a JSON object"
		return errs
	}
	if strings.TrimSpace(content.Text) == "" {
		errs["text"] = "Text is required"
	}
	switch t {
	case models.PostTypeJob:
		if content.Budget <= 0 {
			errs["budget"] = "Budget must be greater than zero"
		}
		if len(content.Skills) == 0 {
			errs["skills"] = "At least one skill is required"
		}
	case models.PostTypeShowcase:
		if content.ImageURL == "" && content.Link == "" {
			errs["content"] = "Showcase posts need an image_url or a link"
		}
	}
	return errs
}

// List returns the feed, newest first, with authors, likes and comments.
func (h *PostHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	var posts []models.Post
	if err := h.DB.
		Preload("Author").
		Preload("Likes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Comments.Author").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch posts")
	}
	return ok(c, posts)
}

// ToggleLike likes a post, or removes the caller's existing like. Either
// way it broadcasts the new count so feeds update in place.
func (h *PostHandler) ToggleLike(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	postUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid post ID")
	}

	var post models.Post
	if err := h.DB.First(&post, "id = ?", postUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Post not found")
	}

	liked := false
	var existing models.PostLike
	err = h.DB.Where("post_id = ? AND user_id = ?", postUUID, userUUID).First(&existing).Error
	switch {
	case err == nil:
		if err := h.DB.Delete(&existing).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "Failed to unlike post")
		}
	case err == gorm.ErrRecordNotFound:
		like := models.PostLike{PostID: postUUID, UserID: userUUID}
		if err := h.DB.Create(&like).Error; err != nil {
			if isDuplicateErr(err) {
				// concurrent toggle, treat as already liked
				liked = true
				break
			}
			return fail(c, fiber.StatusInternalServerError, "Failed to like post")
		}
		liked = true
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to toggle like")
	}

	var count int64
	h.DB.Model(&models.PostLike{}).Where("post_id = ?", postUUID).Count(&count)

	h.Hub.BroadcastJSON(fiber.Map{
		"type":       "postLikeUpdate",
		"post_id":    postUUID,
		"like_count": count,
	})

	if liked && post.AuthorID != userUUID {
		notify(h.DB, h.Hub, h.RDB, post.AuthorID, userUUID,
			models.NotificationNewLike, "/posts/"+postUUID.String(),
			"Someone liked your post")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"liked":      liked,
		"like_count": count,
	})
}

// Comment adds a comment and broadcasts it to all connected feeds.
func (h *PostHandler) Comment(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	postUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid post ID")
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return fail(c, fiber.StatusBadRequest, "Text is required")
	}

	var post models.Post
	if err := h.DB.First(&post, "id = ?", postUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Post not found")
	}

	comment := models.PostComment{
		PostID:   postUUID,
		AuthorID: userUUID,
		Text:     req.Text,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		logger.Errorf("create comment: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to add comment")
	}
	h.DB.Preload("Author").First(&comment, "id = ?", comment.ID)

	h.Hub.BroadcastJSON(fiber.Map{
		"type":    "postCommentUpdate",
		"post_id": postUUID,
		"comment": comment,
	})

	if post.AuthorID != userUUID {
		notify(h.DB, h.Hub, h.RDB, post.AuthorID, userUUID,
			models.NotificationNewComment, "/posts/"+postUUID.String(),
			"Someone commented on your post")
	}

	return created(c, comment)
}
