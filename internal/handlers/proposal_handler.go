package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/lifecycle"
	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
)

type ProposalHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewProposalHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *ProposalHandler {
	return &ProposalHandler{DB: db, Hub: hub, RDB: rdb}
}

type SubmitProposalRequest struct {
	CoverLetter string `json:"cover_letter"`
	BidAmount   int64  `json:"bid_amount"`
}

// Submit files a bid against an open project. One proposal per
// (project, freelancer); the composite unique index is the final word even
// when two submissions race past the lookup.
func (h *ProposalHandler) Submit(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	var req SubmitProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.CoverLetter) == "" {
		return fail(c, fiber.StatusBadRequest, "Cover letter is required")
	}
	if req.BidAmount <= 0 {
		return fail(c, fiber.StatusBadRequest, "Bid amount must be positive")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Project not found")
	}
	if project.Status != models.ProjectStatusOpen {
		return fail(c, fiber.StatusConflict, "This project is no longer open for proposals")
	}
	if project.ClientID == userUUID {
		return fail(c, fiber.StatusForbidden, "You cannot bid on your own project")
	}

	proposal := models.Proposal{
		ProjectID:    projectUUID,
		FreelancerID: userUUID,
		CoverLetter:  req.CoverLetter,
		BidAmount:    req.BidAmount,
		Status:       models.ProposalStatusPending,
	}
	if err := h.DB.Create(&proposal).Error; err != nil {
		if isDuplicateErr(err) {
			return fail(c, fiber.StatusConflict, "You have already submitted a proposal for this project")
		}
		logger.Errorf("submit proposal: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to submit proposal")
	}

	notify(h.DB, h.Hub, h.RDB, project.ClientID, userUUID,
		models.NotificationNewProposal,
		"/project/"+project.ID.String(),
		"You have a new proposal on \""+project.Title+"\".")

	return created(c, proposal)
}

// ListForProject returns a project's proposals to its owning client.
func (h *ProposalHandler) ListForProject(c *fiber.Ctx) error {
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
	if project.ClientID != userUUID {
		return fail(c, fiber.StatusForbidden, "You are not authorized to view these proposals")
	}

	var proposals []models.Proposal
	if err := h.DB.
		Preload("Freelancer").
		Where("project_id = ?", projectUUID).
		Order("created_at ASC").
		Find(&proposals).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch proposals")
	}
	return ok(c, proposals)
}

type RespondProposalRequest struct {
	Status string `json:"status"` // accepted | rejected
}

// Respond accepts or rejects a pending proposal. Accepting performs three
// effects as a unit: this proposal becomes accepted, the project moves
// open -> in-progress with the freelancer assigned, and every sibling
// pending proposal is force-rejected. Both transitions are conditional
// updates, so a concurrent accept on a sibling proposal cannot double-fill
// the project.
func (h *ProposalHandler) Respond(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	proposalUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid proposal ID")
	}

	var req RespondProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	to := models.ProposalStatus(req.Status)
	if to != models.ProposalStatusAccepted && to != models.ProposalStatusRejected {
		return fail(c, fiber.StatusBadRequest, "Status must be accepted or rejected")
	}

	var proposal models.Proposal
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Project").First(&proposal, "id = ?", proposalUUID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proposal not found")
		}
		if proposal.Project == nil || proposal.Project.ClientID != userUUID {
			return fiber.NewError(fiber.StatusForbidden, "You are not the owner of this project")
		}
		if proposal.Project.Status != models.ProjectStatusOpen {
			return fiber.NewError(fiber.StatusConflict, "This project is already in progress or completed")
		}

		applied, err := lifecycle.ResolveProposal(tx, proposal.ID, to)
		if err != nil {
			return err
		}
		if !applied {
			return fiber.NewError(fiber.StatusConflict, "This proposal has already been responded to")
		}

		if to == models.ProposalStatusAccepted {
			started, err := lifecycle.StartProject(tx, proposal.ProjectID, proposal.FreelancerID)
			if err != nil {
				return err
			}
			if !started {
				// Lost the race to a sibling accept; roll everything back.
				return fiber.NewError(fiber.StatusConflict, "This project is already in progress or completed")
			}
			if err := lifecycle.RejectSiblingProposals(tx, proposal.ProjectID, proposal.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if e, okErr := txErr.(*fiber.Error); okErr {
			return fail(c, e.Code, e.Message)
		}
		logger.Errorf("respond to proposal: %v", txErr)
		return fail(c, fiber.StatusInternalServerError, "Failed to update proposal")
	}

	if err := h.DB.Preload("Freelancer").Preload("Project").First(&proposal, "id = ?", proposalUUID).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to reload proposal")
	}

	h.Hub.Publish(realtime.ProjectRoom(proposal.ProjectID), fiber.Map{
		"type":     "proposalStatusUpdate",
		"proposal": proposal,
	})

	return ok(c, proposal)
}
