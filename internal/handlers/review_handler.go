package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{DB: db}
}

type CreateReviewRequest struct {
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	RevieweeID string `json:"reviewee_id"`
}

// Create writes post-completion feedback. The reviewer must be a
// participant of the completed project and the reviewee must be the other
// participant. The rating folds into the reviewee's running average in the
// same transaction as the insert; the composite unique index keeps a
// reviewer from inflating the aggregate with repeat submissions.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var req CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return fail(c, fiber.StatusBadRequest, "Rating must be between 1 and 5")
	}
	revieweeUUID, err := uuid.Parse(req.RevieweeID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid reviewee ID")
	}
	if revieweeUUID == userUUID {
		return fail(c, fiber.StatusBadRequest, "You cannot review yourself")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if !project.IsParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "You are not a participant in this project")
	}
	if !project.IsParticipant(revieweeUUID) {
		return fail(c, fiber.StatusBadRequest, "Reviewee is not a participant in this project")
	}
	if project.Status != models.ProjectStatusCompleted {
		return fail(c, fiber.StatusConflict, "Reviews can only be left on completed projects")
	}

	review := models.Review{
		ProjectID:  projectUUID,
		ReviewerID: userUUID,
		RevieweeID: revieweeUUID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		// Streaming mean, computed in one update so concurrent reviews of
		// the same user cannot apply against a stale count.
		return tx.Model(&models.User{}).
			Where("id = ?", revieweeUUID).
			Updates(map[string]interface{}{
				"average_rating": gorm.Expr(
					"(average_rating * total_reviews + ?) / (total_reviews + 1)", float64(req.Rating)),
				"total_reviews": gorm.Expr("total_reviews + 1"),
			}).Error
	})
	if txErr != nil {
		if isDuplicateErr(txErr) {
			return fail(c, fiber.StatusConflict, "You have already reviewed this project")
		}
		logger.Errorf("create review: %v", txErr)
		return fail(c, fiber.StatusInternalServerError, "Failed to create review")
	}

	return created(c, review)
}

// ListForUser returns reviews received by a user, newest first.
func (h *ReviewHandler) ListForUser(c *fiber.Ctx) error {
	revieweeUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var reviews []models.Review
	if err := h.DB.
		Preload("Reviewer").
		Where("reviewee_id = ?", revieweeUUID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch reviews")
	}
	return ok(c, reviews)
}
