package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/utils"
)

type GoogleOAuthHandler struct {
	DB              *gorm.DB
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	st := randomState(32)

	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	if st := c.Cookies("oauth_state"); st == "" || st != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	client := h.oauthCfg().Client(c.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Email not found from Google")
	}

	var u models.User
	err = h.DB.Where("email = ?", email).First(&u).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).SendString("DB error")
	}

	if err == gorm.ErrRecordNotFound {
		// Password is required by the model; mint a random one the user
		// never sees. They can only log in through Google.
		hashed, _ := utils.HashPassword(randomState(24))
		u = models.User{
			Name:      name,
			Email:     email,
			Password:  hashed,
			Role:      models.RoleClient,
			AvatarURL: gu.Picture,
			IsActive:  true,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to create user")
		}
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to create token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     "ph_token",
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})

	return c.Redirect(h.FrontendBaseURL+"/auth/callback", http.StatusTemporaryRedirect)
}
