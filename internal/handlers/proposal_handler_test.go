package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub-dev/projecthub/internal/models"
)

func TestSubmitProposal(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)
	token := env.tokenFor(t, freelancer)

	resp, envelope := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/proposals", token,
		map[string]interface{}{"cover_letter": "I can build this", "bid_amount": 450})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := dataField(t, envelope)
	assert.Equal(t, string(models.ProposalStatusPending), data["status"])

	// the project owner got a notification
	var count int64
	env.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", client.ID, models.NotificationNewProposal).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSubmitProposal_DuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)
	token := env.tokenFor(t, freelancer)

	body := map[string]interface{}{"cover_letter": "first", "bid_amount": 100}
	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/proposals", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, envelope := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/proposals", token, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
}

func TestSubmitProposal_ClosedProject(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	assigned := env.createUser(t, "freelancer1", models.RoleFreelancer)
	other := env.createUser(t, "freelancer2", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusInProgress, assigned)

	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/proposals",
		env.tokenFor(t, other),
		map[string]interface{}{"cover_letter": "too late", "bid_amount": 100})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitProposal_RoleGuard(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)

	// clients cannot bid at all, the route is freelancer-only
	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/proposals",
		env.tokenFor(t, client),
		map[string]interface{}{"cover_letter": "hi", "bid_amount": 100})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRespondProposal_AcceptCascade(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	winner := env.createUser(t, "freelancer1", models.RoleFreelancer)
	loser := env.createUser(t, "freelancer2", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)

	winning := models.Proposal{ProjectID: project.ID, FreelancerID: winner.ID, CoverLetter: "a", BidAmount: 100, Status: models.ProposalStatusPending}
	losing := models.Proposal{ProjectID: project.ID, FreelancerID: loser.ID, CoverLetter: "b", BidAmount: 90, Status: models.ProposalStatusPending}
	require.NoError(t, env.DB.Create(&winning).Error)
	require.NoError(t, env.DB.Create(&losing).Error)

	resp, _ := env.request(t, "PATCH", "/api/proposals/"+winning.ID.String(),
		env.tokenFor(t, client), map[string]interface{}{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// accepted proposal, assigned in-progress project, rejected sibling
	var reloaded models.Proposal
	require.NoError(t, env.DB.First(&reloaded, "id = ?", winning.ID).Error)
	assert.Equal(t, models.ProposalStatusAccepted, reloaded.Status)

	var p models.Project
	require.NoError(t, env.DB.First(&p, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusInProgress, p.Status)
	require.NotNil(t, p.FreelancerID)
	assert.Equal(t, winner.ID, *p.FreelancerID)

	var sibling models.Proposal
	require.NoError(t, env.DB.First(&sibling, "id = ?", losing.ID).Error)
	assert.Equal(t, models.ProposalStatusRejected, sibling.Status)
}

func TestRespondProposal_AlreadyResolved(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)

	proposal := models.Proposal{ProjectID: project.ID, FreelancerID: freelancer.ID, CoverLetter: "a", BidAmount: 100, Status: models.ProposalStatusPending}
	require.NoError(t, env.DB.Create(&proposal).Error)
	token := env.tokenFor(t, client)

	resp, _ := env.request(t, "PATCH", "/api/proposals/"+proposal.ID.String(), token,
		map[string]interface{}{"status": "rejected"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(t, "PATCH", "/api/proposals/"+proposal.ID.String(), token,
		map[string]interface{}{"status": "accepted"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// the rejected proposal must not have started the project
	var p models.Project
	require.NoError(t, env.DB.First(&p, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusOpen, p.Status)
	assert.Nil(t, p.FreelancerID)
}

func TestRespondProposal_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	stranger := env.createUser(t, "client2", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)

	proposal := models.Proposal{ProjectID: project.ID, FreelancerID: freelancer.ID, CoverLetter: "a", BidAmount: 100, Status: models.ProposalStatusPending}
	require.NoError(t, env.DB.Create(&proposal).Error)

	resp, _ := env.request(t, "PATCH", "/api/proposals/"+proposal.ID.String(),
		env.tokenFor(t, stranger), map[string]interface{}{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRespondProposal_ProjectNoLongerOpen(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	first := env.createUser(t, "freelancer1", models.RoleFreelancer)
	second := env.createUser(t, "freelancer2", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusOpen, nil)

	p1 := models.Proposal{ProjectID: project.ID, FreelancerID: first.ID, CoverLetter: "a", BidAmount: 100, Status: models.ProposalStatusPending}
	p2 := models.Proposal{ProjectID: project.ID, FreelancerID: second.ID, CoverLetter: "b", BidAmount: 110, Status: models.ProposalStatusPending}
	require.NoError(t, env.DB.Create(&p1).Error)
	require.NoError(t, env.DB.Create(&p2).Error)
	token := env.tokenFor(t, client)

	resp, _ := env.request(t, "PATCH", "/api/proposals/"+p1.ID.String(), token,
		map[string]interface{}{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// accepting the sibling afterwards conflicts, even though the cascade
	// already marked it rejected
	resp, _ = env.request(t, "PATCH", "/api/proposals/"+p2.ID.String(), token,
		map[string]interface{}{"status": "accepted"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var p models.Project
	require.NoError(t, env.DB.First(&p, "id = ?", project.ID).Error)
	require.NotNil(t, p.FreelancerID)
	assert.Equal(t, first.ID, *p.FreelancerID)
}
