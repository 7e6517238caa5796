package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var notifications []models.Notification
	if err := h.DB.
		Preload("Sender").
		Where("recipient_id = ?", userUUID).
		Order("created_at DESC").
		Find(&notifications).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch notifications")
	}
	return ok(c, notifications)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var count int64
	if err := h.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userUUID, false).
		Count(&count).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to count notifications")
	}
	return ok(c, count)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userUUID, false).
		Update("read", true).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to mark notifications as read")
	}
	return c.JSON(fiber.Map{"success": true})
}
