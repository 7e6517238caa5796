package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
)

type TaskHandler struct {
	DB *gorm.DB
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{DB: db}
}

type CreateTaskRequest struct {
	Title string `json:"title"`
}

// Create adds a checklist item. Creation is gated on the project being
// in-progress; listing and status updates intentionally are not, so a
// board stays workable after completion (see DESIGN.md).
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return fail(c, fiber.StatusBadRequest, "Title is required")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if !project.IsParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "You are not authorized to add tasks to this project")
	}
	if project.Status != models.ProjectStatusInProgress {
		return fail(c, fiber.StatusConflict, "Tasks can only be added to projects that are in progress")
	}

	task := models.Task{
		ProjectID: projectUUID,
		Title:     strings.TrimSpace(req.Title),
		Status:    models.TaskStatusTodo,
	}
	if err := h.DB.Create(&task).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to create task")
	}
	return created(c, task)
}

func (h *TaskHandler) ListForProject(c *fiber.Ctx) error {
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
		return fail(c, fiber.StatusForbidden, "You are not authorized to view these tasks")
	}

	var tasks []models.Task
	if err := h.DB.
		Where("project_id = ?", projectUUID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch tasks")
	}
	return ok(c, tasks)
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a task between todo/in-progress/done. Any direction
// is legal; tasks are the one reversible status machine in the system.
func (h *TaskHandler) UpdateStatus(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}
	taskUUID, err := uuid.Parse(c.Params("taskId"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid task ID")
	}

	var req UpdateTaskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	status := models.TaskStatus(req.Status)
	switch status {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone:
	default:
		return fail(c, fiber.StatusBadRequest, "Invalid status value")
	}

	var task models.Task
	if err := h.DB.Preload("Project").First(&task, "id = ? AND project_id = ?", taskUUID, projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Task not found")
	}
	if task.Project == nil || !task.Project.IsParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "You are not authorized to modify this task")
	}

	task.Status = status
	if err := h.DB.Save(&task).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to update task")
	}
	return ok(c, task)
}
