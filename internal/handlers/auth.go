package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
}

type RegisterReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // client | freelancer
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

func (h *AuthHandler) setTokenCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "ph_token",
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
}

func userPayload(u *models.User) fiber.Map {
	return fiber.Map{
		"id":             u.ID,
		"name":           u.Name,
		"email":          u.Email,
		"role":           u.Role,
		"average_rating": u.AverageRating,
		"total_reviews":  u.TotalReviews,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	role := strings.ToLower(strings.TrimSpace(req.Role))

	errs := FieldErrors{}
	if name == "" {
		errs.Add("name", "Name is required")
	}
	if email == "" {
		errs.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "Invalid email format")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	} else if len(password) < 6 {
		errs.Add("password", "Password must be at least 6 characters")
	}
	if role != string(models.RoleClient) && role != string(models.RoleFreelancer) {
		errs.Add("role", "Role must be client or freelancer")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		errs.Add("email", "Email is already registered")
		return validationFail(c, errs)
	} else if err != gorm.ErrRecordNotFound {
		return fail(c, fiber.StatusInternalServerError, "Server error")
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to process password")
	}

	u := models.User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     models.Role(role),
		IsActive: true,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to register")
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to create token")
	}
	h.setTokenCookie(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token": token,
			"user":  userPayload(&u),
		},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if email == "" {
		errs.Add("email", "Email is required")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	if err := h.DB.Where("email = ?", email).First(&u).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if !u.IsActive {
		return fail(c, fiber.StatusUnauthorized, "Account is not active")
	}
	if !utils.CheckPassword(u.Password, password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to create token")
	}
	h.setTokenCookie(c, token)

	return ok(c, fiber.Map{
		"token": token,
		"user":  userPayload(&u),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "ph_token",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   -1,
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var u models.User
	if err := h.DB.First(&u, "id = ?", userUUID).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "User not found")
	}
	return ok(c, userPayload(&u))
}

// DeleteAccount soft-deletes the caller. Projects, proposals and reviews
// keep their user ids; joins against users skip deleted rows.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.DB.Delete(&models.User{}, "id = ?", userUUID).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to delete account")
	}

	c.Cookie(&fiber.Cookie{
		Name:     "ph_token",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   -1,
	})
	return c.JSON(fiber.Map{"success": true})
}
