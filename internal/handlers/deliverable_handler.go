package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
)

type DeliverableHandler struct {
	DB        *gorm.DB
	UploadDir string
}

func NewDeliverableHandler(db *gorm.DB, uploadDir string) *DeliverableHandler {
	return &DeliverableHandler{DB: db, UploadDir: uploadDir}
}

// Upload accepts a multipart file from the assigned freelancer while the
// project is in-progress. Files land under UploadDir/deliverables and are
// served statically.
func (h *DeliverableHandler) Upload(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file uploaded")
	}
	description := strings.TrimSpace(c.FormValue("description"))

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if project.FreelancerID == nil || *project.FreelancerID != userUUID {
		return fail(c, fiber.StatusForbidden, "You are not the freelancer for this project")
	}
	if project.Status != models.ProjectStatusInProgress {
		return fail(c, fiber.StatusConflict, "Deliverables can only be uploaded to in-progress projects")
	}

	dir := filepath.Join(h.UploadDir, "deliverables")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Errorf("upload deliverable: mkdir: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to store file")
	}

	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), projectUUID, filepath.Ext(file.Filename))
	dst := filepath.Join(dir, name)
	if err := c.SaveFile(file, dst); err != nil {
		logger.Errorf("upload deliverable: save: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to store file")
	}

	deliverable := models.Deliverable{
		ProjectID:   projectUUID,
		SubmittedBy: userUUID,
		FileURL:     "/uploads/deliverables/" + name,
		Description: description,
		Status:      models.DeliverableStatusPendingReview,
	}
	if err := h.DB.Create(&deliverable).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to create deliverable")
	}
	return created(c, deliverable)
}

func (h *DeliverableHandler) ListForProject(c *fiber.Ctx) error {
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
		return fail(c, fiber.StatusForbidden, "You are not authorized to view these deliverables")
	}

	var deliverables []models.Deliverable
	if err := h.DB.
		Preload("Submitter").
		Where("project_id = ?", projectUUID).
		Order("created_at DESC").
		Find(&deliverables).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch deliverables")
	}
	return ok(c, deliverables)
}
