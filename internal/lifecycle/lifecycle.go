// Package lifecycle implements the status transitions shared by the
// project, proposal and invoice handlers as conditional updates: every
// transition is an UPDATE guarded by the expected pre-state, and the
// caller learns from the applied flag whether it won. Two requests racing
// on the same row cannot both observe a stale status.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
)

// StartProject moves a project open -> in-progress and assigns the
// freelancer in the same update. Returns false when the project was no
// longer open.
func StartProject(tx *gorm.DB, projectID, freelancerID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusOpen).
		Updates(map[string]interface{}{
			"status":        models.ProjectStatusInProgress,
			"freelancer_id": freelancerID,
		})
	return res.RowsAffected > 0, res.Error
}

// CompleteProject moves a project in-progress -> completed.
func CompleteProject(tx *gorm.DB, projectID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusInProgress).
		Update("status", models.ProjectStatusCompleted)
	return res.RowsAffected > 0, res.Error
}

// ResolveProposal moves a pending proposal to accepted or rejected.
// Returns false when the proposal was already resolved.
func ResolveProposal(tx *gorm.DB, proposalID uuid.UUID, to models.ProposalStatus) (bool, error) {
	res := tx.Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposalID, models.ProposalStatusPending).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

// RejectSiblingProposals force-rejects every other pending proposal on the
// project after one of them was accepted.
func RejectSiblingProposals(tx *gorm.DB, projectID, acceptedID uuid.UUID) error {
	return tx.Model(&models.Proposal{}).
		Where("project_id = ? AND id <> ? AND status = ?",
			projectID, acceptedID, models.ProposalStatusPending).
		Update("status", models.ProposalStatusRejected).Error
}

// SettleInvoice marks a pending invoice paid and completes its project,
// atomically with respect to a competing settle. Both the webhook and the
// client-confirmation path funnel into this one operation, so duplicate
// triggers collapse to a single project transition: the loser sees
// applied=false and must not treat that as a failure.
func SettleInvoice(db *gorm.DB, invoiceID uuid.UUID) (bool, error) {
	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", invoiceID, models.InvoiceStatusPending).
			Updates(map[string]interface{}{
				"status":  models.InvoiceStatusPaid,
				"paid_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already paid, no-op
		}

		var inv models.Invoice
		if err := tx.First(&inv, "id = ?", invoiceID).Error; err != nil {
			return err
		}
		if _, err := CompleteProject(tx, inv.ProjectID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
