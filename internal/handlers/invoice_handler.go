package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/lifecycle"
	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
)

type InvoiceHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewInvoiceHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Hub: hub, RDB: rdb}
}

type CreateInvoiceRequest struct {
	Amount int64 `json:"amount"`
}

// Create issues the project's single invoice. Only the assigned freelancer
// may invoice, only while the project is in-progress; the unique index on
// project_id makes "at most one invoice" hold under any request ordering.
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var req CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Amount <= 0 {
		return fail(c, fiber.StatusBadRequest, "Amount must be positive")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if project.FreelancerID == nil || *project.FreelancerID != userUUID {
		return fail(c, fiber.StatusForbidden, "You are not the freelancer for this project")
	}
	if project.Status != models.ProjectStatusInProgress {
		return fail(c, fiber.StatusConflict, "Invoices can only be created for in-progress projects")
	}

	invoice := models.Invoice{
		ProjectID:    projectUUID,
		ClientID:     project.ClientID,
		FreelancerID: userUUID,
		Amount:       req.Amount,
		Status:       models.InvoiceStatusPending,
	}
	if err := h.DB.Create(&invoice).Error; err != nil {
		if isDuplicateErr(err) {
			return fail(c, fiber.StatusConflict, "An invoice for this project already exists")
		}
		logger.Errorf("create invoice: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to create invoice")
	}

	notify(h.DB, h.Hub, h.RDB, project.ClientID, userUUID,
		models.NotificationNewInvoice,
		"/project/"+project.ID.String(),
		"You have a new invoice for \""+project.Title+"\".")

	return created(c, invoice)
}

// GetForProject returns the project's invoice, or null when none exists.
func (h *InvoiceHandler) GetForProject(c *fiber.Ctx) error {
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
		return fail(c, fiber.StatusForbidden, "You are not a participant in this project")
	}

	var invoice models.Invoice
	if err := h.DB.First(&invoice, "project_id = ?", projectUUID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ok(c, nil)
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch invoice")
	}
	return ok(c, invoice)
}

// Pay is the client-confirmation settlement path. Unlike the webhook, a
// repeat call here is a caller mistake and comes back as a conflict.
func (h *InvoiceHandler) Pay(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	invoiceUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid invoice ID")
	}

	var invoice models.Invoice
	if err := h.DB.First(&invoice, "id = ?", invoiceUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Invoice not found")
	}
	if invoice.ClientID != userUUID {
		return fail(c, fiber.StatusForbidden, "You are not the client for this invoice")
	}

	applied, err := lifecycle.SettleInvoice(h.DB, invoice.ID)
	if err != nil {
		logger.Errorf("pay invoice %s: %v", invoice.ID, err)
		return fail(c, fiber.StatusInternalServerError, "Failed to pay invoice")
	}
	if !applied {
		return fail(c, fiber.StatusConflict, "This invoice has already been paid")
	}

	if err := h.DB.Preload("Project").First(&invoice, "id = ?", invoice.ID).Error; err == nil {
		title := ""
		if invoice.Project != nil {
			title = invoice.Project.Title
		}
		notify(h.DB, h.Hub, h.RDB, invoice.FreelancerID, userUUID,
			models.NotificationInvoicePaid,
			"/project/"+invoice.ProjectID.String(),
			"Your invoice for \""+title+"\" has been paid!")
	}

	return ok(c, invoice)
}
