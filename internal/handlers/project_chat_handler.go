package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
)

type ProjectChatHandler struct {
	DB *gorm.DB
}

func NewProjectChatHandler(db *gorm.DB) *ProjectChatHandler {
	return &ProjectChatHandler{DB: db}
}

// GetMessages backfills a project room's message history for a
// reconnecting participant. Live delivery happens over the socket.
func (h *ProjectChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if !project.IsParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "Access denied")
	}

	var messages []models.ProjectMessage
	if err := h.DB.
		Preload("Sender").
		Where("project_id = ?", projectUUID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch messages")
	}
	return ok(c, messages)
}
