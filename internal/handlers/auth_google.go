package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/utils"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie  = "oauth_state"
	oauthNextCookie   = "oauth_next"
	oauthCookieMaxAge = 10 * 60
)

type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	endpoint := h.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func (h *GoogleOAuthHandler) userInfoURL() string {
	if h.UserInfoURL != "" {
		return h.UserInfoURL
	}
	return googleUserInfoURL
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// oauthCookie is Lax: it has to survive the cross-site redirect back from Google.
func (h *GoogleOAuthHandler) oauthCookie(name, value string, maxAge int) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	st := randomState(32)

	c.Cookie(h.oauthCookie(oauthStateCookie, st, oauthCookieMaxAge))
	c.Cookie(h.oauthCookie(oauthNextCookie, next, oauthCookieMaxAge))

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	if st := c.Cookies(oauthStateCookie); st == "" || st != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}
	next := c.Cookies(oauthNextCookie)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}

	ctx := c.UserContext()
	tok, err := h.oauthCfg().Exchange(ctx, code)
	if err != nil {
		slog.Warn("google code exchange failed", "err", err)
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	gu, err := h.fetchUserInfo(c, tok)
	if err != nil {
		slog.Warn("google userinfo failed", "err", err)
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Email not found from Google")
	}
	if !gu.VerifiedEmail {
		return h.redirectWithError(c, "Google email is not verified")
	}

	u, err := h.upsertUser(c, email, strings.TrimSpace(gu.Name))
	if err != nil {
		slog.Error("google upsert user failed", "email", email, "err", err)
		return h.redirectWithError(c, "Could not sign in with Google")
	}

	if err := h.Auth.issueSession(c, u); err != nil {
		return writeError(c, err)
	}

	c.Cookie(h.oauthCookie(oauthStateCookie, "", -1))
	c.Cookie(h.oauthCookie(oauthNextCookie, "", -1))

	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) fetchUserInfo(c *fiber.Ctx, tok *oauth2.Token) (*googleUserInfo, error) {
	client := h.oauthCfg().Client(c.UserContext(), tok)
	resp, err := client.Get(h.userInfoURL())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, err
	}
	return &gu, nil
}

// upsertUser finds the user by email or creates one with a random password
// that is never used for password login.
func (h *GoogleOAuthHandler) upsertUser(c *fiber.Ctx, email, name string) (*models.User, error) {
	gdb := h.Auth.DB.WithContext(c.UserContext())

	var u models.User
	err := gdb.Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}

	hashed, err := utils.HashPassword(randomState(24))
	if err != nil {
		return nil, err
	}
	u = models.User{Name: name, Email: email, Password: hashed}
	if err := gdb.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *GoogleOAuthHandler) redirectWithError(c *fiber.Ctx, msg string) error {
	return c.Redirect(h.FrontendBaseURL+"/login?err="+url.QueryEscape(msg), http.StatusTemporaryRedirect)
}
