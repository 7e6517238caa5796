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
	"github.com/projecthub-dev/projecthub/internal/services/stripe"
)

type PaymentHandler struct {
	DB     *gorm.DB
	Stripe *stripe.Service
	Hub    *realtime.Hub
	RDB    *redis.Client
}

func NewPaymentHandler(db *gorm.DB, stripeSvc *stripe.Service, hub *realtime.Hub, rdb *redis.Client) *PaymentHandler {
	return &PaymentHandler{DB: db, Stripe: stripeSvc, Hub: hub, RDB: rdb}
}

type CreatePaymentIntentRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// CreatePaymentIntent opens a processor-side payment for a pending invoice
// and hands the client secret back to the payer. The intent id is stored
// on the invoice as the webhook correlation ref.
func (h *PaymentHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req CreatePaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	invoiceUUID, err := uuid.Parse(req.InvoiceID)
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
	if invoice.Status == models.InvoiceStatusPaid {
		return fail(c, fiber.StatusConflict, "This invoice has already been paid")
	}

	intent, err := h.Stripe.CreatePaymentIntent(invoice.Amount*100, "usd", map[string]string{
		"invoice_id": invoice.ID.String(),
	})
	if err != nil {
		logger.Errorf("create payment intent for invoice %s: %v", invoice.ID, err)
		return fail(c, fiber.StatusInternalServerError, "Failed to create payment intent")
	}

	if err := h.DB.Model(&invoice).Update("payment_ref", intent.ID).Error; err != nil {
		logger.Errorf("store payment ref for invoice %s: %v", invoice.ID, err)
	}

	return ok(c, fiber.Map{
		"client_secret": intent.ClientSecret,
	})
}

// Webhook is the processor-confirmation settlement path. Delivery is
// at-least-once and may race the client confirmation; settling an already
// paid invoice is a no-op, not an error, so the duplicate trigger design
// collapses to a single project completion.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	sig := c.Get("Stripe-Signature")
	if sig == "" {
		return fail(c, fiber.StatusBadRequest, "Missing signature")
	}

	event, err := h.Stripe.ConstructEvent(c.Body(), sig)
	if err != nil {
		logger.Warnf("stripe webhook: %v", err)
		return fail(c, fiber.StatusBadRequest, "Invalid signature")
	}

	switch event.Type {
	case "payment_intent.succeeded":
		invoiceID := event.Data.Object.Metadata["invoice_id"]
		if invoiceID == "" {
			logger.Errorf("stripe webhook: event %s missing invoice_id metadata", event.ID)
			break
		}
		invoiceUUID, err := uuid.Parse(invoiceID)
		if err != nil {
			logger.Errorf("stripe webhook: bad invoice_id %q", invoiceID)
			break
		}

		var invoice models.Invoice
		if err := h.DB.First(&invoice, "id = ?", invoiceUUID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				logger.Warnf("stripe webhook: invoice %s not found", invoiceID)
				break
			}
			return fail(c, fiber.StatusInternalServerError, "Server error")
		}

		applied, err := lifecycle.SettleInvoice(h.DB, invoice.ID)
		if err != nil {
			logger.Errorf("stripe webhook: settle invoice %s: %v", invoice.ID, err)
			return fail(c, fiber.StatusInternalServerError, "Server error")
		}
		if !applied {
			logger.Infof("stripe webhook: invoice %s already paid, skipping", invoice.ID)
			break
		}

		if err := h.DB.Preload("Project").First(&invoice, "id = ?", invoice.ID).Error; err == nil {
			title := ""
			if invoice.Project != nil {
				title = invoice.Project.Title
			}
			notify(h.DB, h.Hub, h.RDB, invoice.FreelancerID, invoice.ClientID,
				models.NotificationInvoicePaid,
				"/project/"+invoice.ProjectID.String(),
				"Your invoice for \""+title+"\" has been paid!")
		}

	default:
		logger.Debugf("stripe webhook: unhandled event type %s", event.Type)
	}

	return c.JSON(fiber.Map{"success": true})
}
