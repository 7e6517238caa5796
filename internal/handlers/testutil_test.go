package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/projecthub-dev/projecthub/internal/middleware"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
	"github.com/projecthub-dev/projecthub/internal/services/stripe"
	"github.com/projecthub-dev/projecthub/internal/utils"
)

const testJWTSecret = "test-secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// one shared in-memory db per test, torn down with it
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Proposal{},
		&models.Invoice{},
		&models.Task{},
		&models.Review{},
		&models.Deliverable{},
		&models.Notification{},
		&models.Conversation{},
		&models.Message{},
		&models.ProjectMessage{},
		&models.Post{},
		&models.PostLike{},
		&models.PostComment{},
	))
	return db
}

type testEnv struct {
	App    *fiber.App
	DB     *gorm.DB
	Hub    *realtime.Hub
	Stripe *stripe.Service
}

// newTestEnv builds the API with the same route layout the binary serves,
// against an in-memory database, a live hub and no redis.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	hub := realtime.NewHub()
	go hub.Run()

	stripeSvc := stripe.New("sk_test_dummy", "whsec_test")

	authH := &AuthHandler{DB: db, JWTSecret: testJWTSecret, Expires: 60}
	projectH := NewProjectHandler(db)
	proposalH := NewProposalHandler(db, hub, nil)
	invoiceH := NewInvoiceHandler(db, hub, nil)
	paymentH := NewPaymentHandler(db, stripeSvc, hub, nil)
	taskH := NewTaskHandler(db)
	reviewH := NewReviewHandler(db)
	deliverableH := NewDeliverableHandler(db, t.TempDir())
	notificationH := NewNotificationHandler(db)
	chatH := NewChatHandler(db, hub, nil)
	projectChatH := NewProjectChatHandler(db)
	postH := NewPostHandler(db, hub, nil)

	app := fiber.New()
	api := app.Group("/api")

	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Post("/payments/stripe-webhook", paymentH.Webhook)

	protected := api.Group("/", middleware.Protected(testJWTSecret))

	protected.Get("/me", authH.Me)
	protected.Delete("/me", authH.DeleteAccount)

	protected.Post("/projects", middleware.RequireRoles(string(models.RoleClient)), projectH.Create)
	protected.Get("/projects", projectH.ListOpen)
	protected.Get("/projects/my", projectH.ListMine)
	protected.Get("/projects/:id", projectH.GetByID)

	protected.Post("/projects/:id/proposals", middleware.RequireRoles(string(models.RoleFreelancer)), proposalH.Submit)
	protected.Get("/projects/:id/proposals", proposalH.ListForProject)
	protected.Patch("/proposals/:id", middleware.RequireRoles(string(models.RoleClient)), proposalH.Respond)

	protected.Post("/projects/:id/invoices", middleware.RequireRoles(string(models.RoleFreelancer)), invoiceH.Create)
	protected.Get("/projects/:id/invoice", invoiceH.GetForProject)
	protected.Patch("/invoices/:id/pay", middleware.RequireRoles(string(models.RoleClient)), invoiceH.Pay)
	protected.Post("/payments/create-payment-intent", middleware.RequireRoles(string(models.RoleClient)), paymentH.CreatePaymentIntent)

	protected.Post("/projects/:id/tasks", taskH.Create)
	protected.Get("/projects/:id/tasks", taskH.ListForProject)
	protected.Patch("/projects/:id/tasks/:taskId", taskH.UpdateStatus)

	protected.Post("/projects/:id/reviews", reviewH.Create)
	protected.Get("/users/:id/reviews", reviewH.ListForUser)

	protected.Post("/projects/:id/deliverables", middleware.RequireRoles(string(models.RoleFreelancer)), deliverableH.Upload)
	protected.Get("/projects/:id/deliverables", deliverableH.ListForProject)

	protected.Get("/projects/:id/messages", projectChatH.GetMessages)

	protected.Post("/conversations", chatH.CreateOrGetConversation)
	protected.Get("/conversations", chatH.GetConversations)
	protected.Get("/conversations/:id/messages", chatH.GetMessages)
	protected.Post("/conversations/:id/messages", chatH.SendMessage)

	protected.Get("/notifications", notificationH.List)
	protected.Get("/notifications/unread-count", notificationH.UnreadCount)
	protected.Patch("/notifications/read", notificationH.MarkAllRead)

	protected.Post("/posts", postH.Create)
	protected.Get("/posts", postH.List)
	protected.Post("/posts/:id/like", postH.ToggleLike)
	protected.Post("/posts/:id/comments", postH.Comment)

	return &testEnv{App: app, DB: db, Hub: hub, Stripe: stripeSvc}
}

func (e *testEnv) createUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	pw, err := utils.HashPassword("password123")
	require.NoError(t, err)
	u := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: pw,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, e.DB.Create(&u).Error)
	return &u
}

func (e *testEnv) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := utils.SignJWT(testJWTSecret, u.ID.String(), string(u.Role), 60)
	require.NoError(t, err)
	return token
}

// request performs an authenticated JSON request and returns the response
// with its decoded envelope.
func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	// middleware rejections come back as plain text from the default
	// error handler, so a failed decode just leaves the envelope nil
	var envelope map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &envelope)
	}
	return resp, envelope
}

// seedProject creates a project directly, optionally already assigned.
func (e *testEnv) seedProject(t *testing.T, client *models.User, status models.ProjectStatus, freelancer *models.User) *models.Project {
	t.Helper()
	p := models.Project{
		Title:       "Build a landing page",
		Description: "A one-page site",
		Budget:      500,
		Status:      status,
		ClientID:    client.ID,
	}
	if freelancer != nil {
		p.FreelancerID = &freelancer.ID
	}
	require.NoError(t, e.DB.Create(&p).Error)
	return &p
}

func dataField(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok, "expected object data field, got %v", envelope["data"])
	return data
}
