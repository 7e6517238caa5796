package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
)

type ProjectHandler struct {
	DB *gorm.DB
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{DB: db}
}

type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
}

// Create posts a new project. Caller must be a client (route-guarded);
// the project starts open with no freelancer.
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fail(c, fiber.StatusBadRequest, "Title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return fail(c, fiber.StatusBadRequest, "Description is required")
	}
	if req.Budget <= 0 {
		return fail(c, fiber.StatusBadRequest, "Budget must be positive")
	}

	project := models.Project{
		Title:       title,
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.ProjectStatusOpen,
		ClientID:    userUUID,
	}
	if err := h.DB.Create(&project).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to create project")
	}

	return created(c, project)
}

// ListOpen returns the open-project board, newest first.
func (h *ProjectHandler) ListOpen(c *fiber.Ctx) error {
	var projects []models.Project
	if err := h.DB.
		Preload("Client").
		Where("status = ?", models.ProjectStatusOpen).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch projects")
	}
	return ok(c, projects)
}

// ListMine returns every project the caller participates in.
func (h *ProjectHandler) ListMine(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var projects []models.Project
	if err := h.DB.
		Preload("Client").
		Preload("Freelancer").
		Where("client_id = ? OR freelancer_id = ?", userUUID, userUUID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch projects")
	}
	return ok(c, projects)
}

func (h *ProjectHandler) GetByID(c *fiber.Ctx) error {
	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var project models.Project
	if err := h.DB.
		Preload("Client").
		Preload("Freelancer").
		First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	return ok(c, project)
}
