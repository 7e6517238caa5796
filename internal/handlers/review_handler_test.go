package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub-dev/projecthub/internal/models"
)

func TestCreateReview(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)

	resp, envelope := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews",
		env.tokenFor(t, client), map[string]interface{}{
			"rating":      5,
			"comment":     "Great work",
			"reviewee_id": freelancer.ID.String(),
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 5, dataField(t, envelope)["rating"])

	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", freelancer.ID).Error)
	assert.InDelta(t, 5.0, u.AverageRating, 0.001)
	assert.Equal(t, 1, u.TotalReviews)
}

func TestCreateReview_AggregateAcrossProjects(t *testing.T) {
	env := newTestEnv(t)
	clientA := env.createUser(t, "client1", models.RoleClient)
	clientB := env.createUser(t, "client2", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)

	p1 := env.seedProject(t, clientA, models.ProjectStatusCompleted, freelancer)
	p2 := env.seedProject(t, clientB, models.ProjectStatusCompleted, freelancer)

	resp, _ := env.request(t, "POST", "/api/projects/"+p1.ID.String()+"/reviews",
		env.tokenFor(t, clientA), map[string]interface{}{"rating": 5, "reviewee_id": freelancer.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.request(t, "POST", "/api/projects/"+p2.ID.String()+"/reviews",
		env.tokenFor(t, clientB), map[string]interface{}{"rating": 2, "reviewee_id": freelancer.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", freelancer.ID).Error)
	assert.InDelta(t, 3.5, u.AverageRating, 0.001)
	assert.Equal(t, 2, u.TotalReviews)
}

func TestCreateReview_RequiresCompletedProject(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusInProgress, freelancer)

	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews",
		env.tokenFor(t, client), map[string]interface{}{"rating": 4, "reviewee_id": freelancer.ID.String()})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateReview_OnePerReviewer(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)
	token := env.tokenFor(t, client)

	body := map[string]interface{}{"rating": 5, "reviewee_id": freelancer.ID.String()}
	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews", token, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// the rejected duplicate must not have touched the aggregate
	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", freelancer.ID).Error)
	assert.Equal(t, 1, u.TotalReviews)
}

func TestCreateReview_BothDirections(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)

	resp, _ := env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews",
		env.tokenFor(t, client), map[string]interface{}{"rating": 5, "reviewee_id": freelancer.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// the freelancer reviews the client on the same project
	resp, _ = env.request(t, "POST", "/api/projects/"+project.ID.String()+"/reviews",
		env.tokenFor(t, freelancer), map[string]interface{}{"rating": 4, "reviewee_id": client.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", client.ID).Error)
	assert.Equal(t, 1, u.TotalReviews)
	assert.InDelta(t, 4.0, u.AverageRating, 0.001)
}

func TestCreateReview_Validation(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	stranger := env.createUser(t, "client2", models.RoleClient)
	project := env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)
	path := "/api/projects/" + project.ID.String() + "/reviews"

	// out-of-range rating
	resp, _ := env.request(t, "POST", path, env.tokenFor(t, client),
		map[string]interface{}{"rating": 6, "reviewee_id": freelancer.ID.String()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// self review
	resp, _ = env.request(t, "POST", path, env.tokenFor(t, client),
		map[string]interface{}{"rating": 5, "reviewee_id": client.ID.String()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// reviewer outside the project
	resp, _ = env.request(t, "POST", path, env.tokenFor(t, stranger),
		map[string]interface{}{"rating": 5, "reviewee_id": freelancer.ID.String()})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// reviewee outside the project
	resp, _ = env.request(t, "POST", path, env.tokenFor(t, client),
		map[string]interface{}{"rating": 5, "reviewee_id": stranger.ID.String()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListReviewsForUser(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, "client1", models.RoleClient)
	freelancer := env.createUser(t, "freelancer1", models.RoleFreelancer)
	project := env.seedProject(t, client, models.ProjectStatusCompleted, freelancer)

	review := models.Review{ProjectID: project.ID, ReviewerID: client.ID, RevieweeID: freelancer.ID, Rating: 5, Comment: "Great"}
	require.NoError(t, env.DB.Create(&review).Error)

	resp, envelope := env.request(t, "GET", "/api/users/"+freelancer.ID.String()+"/reviews",
		env.tokenFor(t, client), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := envelope["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}
