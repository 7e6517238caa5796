package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub-dev/projecthub/internal/models"
)

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)

	resp, envelope := env.request(t, "POST", "/api/projects", env.tokenFor(t, client),
		map[string]interface{}{
			"title":       "Build a landing page",
			"description": "One-page site with a contact form",
			"budget":      500,
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := dataField(t, envelope)
	assert.Equal(t, string(models.ProjectStatusOpen), data["status"])
	// no freelancer while open
	_, hasFreelancer := data["freelancer_id"]
	assert.False(t, hasFreelancer)
}

func TestCreateProject_FreelancerForbidden(t *testing.T) {
	env := newTestEnv(t)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)

	resp, _ := env.request(t, "POST", "/api/projects", env.tokenFor(t, freelancer),
		map[string]interface{}{"title": "x", "description": "y", "budget": 100})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateProject_Validation(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	token := env.tokenFor(t, client)

	resp, _ := env.request(t, "POST", "/api/projects", token,
		map[string]interface{}{"title": " ", "description": "y", "budget": 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(t, "POST", "/api/projects", token,
		map[string]interface{}{"title": "x", "description": "y", "budget": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOpenProjects(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)

	env.seedProject(t, client, models.ProjectStatusOpen, nil)
	env.seedProject(t, client, models.ProjectStatusInProgress, freelancer)
	env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)

	resp, envelope := env.request(t, "GET", "/api/projects", env.tokenFor(t, freelancer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := envelope["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	entry := list[0].(map[string]interface{})
	assert.Equal(t, string(models.ProjectStatusOpen), entry["status"])
}

func TestListMyProjects(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	other := env.createUser(t, "client2", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)

	env.seedProject(t, client, models.ProjectStatusOpen, nil)
	env.seedProject(t, other, models.ProjectStatusInProgress, freelancer)
	env.seedProject(t, other, models.ProjectStatusOpen, nil)

	// the freelancer sees only the project they are assigned to
	resp, envelope := env.request(t, "GET", "/api/projects/my", env.tokenFor(t, freelancer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list, _ := envelope["data"].([]interface{})
	assert.Len(t, list, 1)

	// the client sees only their own
	resp, envelope = env.request(t, "GET", "/api/projects/my", env.tokenFor(t, client), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list, _ = envelope["data"].([]interface{})
	assert.Len(t, list, 1)
}

// TestProjectLifecycle drives the whole arc over the REST surface:
// post project, bid, accept, invoice, pay, review.
func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	clientTok := env.tokenFor(t, client)
	freelancerTok := env.tokenFor(t, freelancer)

	resp, envelope := env.request(t, "POST", "/api/projects", clientTok,
		map[string]interface{}{"title": "API integration", "description": "Wire up billing", "budget": 1200})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	projectID := dataField(t, envelope)["id"].(string)

	resp, envelope = env.request(t, "POST", "/api/projects/"+projectID+"/proposals", freelancerTok,
		map[string]interface{}{"cover_letter": "Done this before", "bid_amount": 1100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	proposalID := dataField(t, envelope)["id"].(string)

	resp, _ = env.request(t, "PATCH", "/api/proposals/"+proposalID, clientTok,
		map[string]interface{}{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = env.request(t, "POST", "/api/projects/"+projectID+"/invoices", freelancerTok,
		map[string]interface{}{"amount": 1100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	invoiceID := dataField(t, envelope)["id"].(string)

	resp, _ = env.request(t, "PATCH", "/api/invoices/"+invoiceID+"/pay", clientTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = env.request(t, "GET", "/api/projects/"+projectID, clientTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.ProjectStatusCompleted), dataField(t, envelope)["status"])

	resp, _ = env.request(t, "POST", "/api/projects/"+projectID+"/reviews", clientTok,
		map[string]interface{}{"rating": 5, "comment": "Smooth delivery", "reviewee_id": freelancer.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", freelancer.ID).Error)
	assert.Equal(t, 1, u.TotalReviews)
}
