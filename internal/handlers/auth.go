package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/middleware"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/utils"
)

const (
	maxNameLen     = 50
	minPasswordLen = 6
)

type AuthHandler struct {
	DB         *gorm.DB
	JWTSecret  string
	Expires    time.Duration
	CookieName string
	Secure     bool
}

type RegisterReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FieldErrors) first(order ...string) string {
	for _, f := range order {
		if msgs := e[f]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "Validation error"
}

func validationFail(c *fiber.Ctx, errs FieldErrors, order ...string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": errs.first(order...),
		"errors":  errs,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := req.Password

	errs := FieldErrors{}
	if name == "" {
		errs.Add("name", "Please provide a name")
	} else if len([]rune(name)) > maxNameLen {
		errs.Add("name", "Name cannot be more than 50 characters")
	}
	if email == "" {
		errs.Add("email", "Please provide an email")
	} else if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		errs.Add("email", "Please provide a valid email")
	}
	if len(password) < minPasswordLen {
		errs.Add("password", "Password must be at least 6 characters")
	}
	if len(errs) > 0 {
		return validationFail(c, errs, "name", "email", "password")
	}

	var existing int64
	if err := h.DB.WithContext(c.UserContext()).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return writeError(c, apperr.Internal("Registration failed", err))
	}
	if existing > 0 {
		return writeError(c, apperr.Validation("User already exists"))
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return writeError(c, apperr.Internal("Registration failed", err))
	}

	u := models.User{Name: name, Email: email, Password: hash}
	if err := h.DB.WithContext(c.UserContext()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return writeError(c, apperr.Validation("User already exists"))
		}
		return writeError(c, apperr.Internal("Invalid user data", err))
	}

	if err := h.issueSession(c, &u); err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"_id":     u.ID,
		"name":    u.Name,
		"email":   u.Email,
		"message": "Registration successful",
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return writeError(c, apperr.Validation("Please provide email and password"))
	}

	var u models.User
	err := h.DB.WithContext(c.UserContext()).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return writeError(c, apperr.Unauthorized("Invalid credentials"))
	}
	if err != nil {
		return writeError(c, apperr.Internal("Login failed", err))
	}
	if !utils.CheckPassword(u.Password, req.Password) {
		return writeError(c, apperr.Unauthorized("Invalid credentials"))
	}

	if err := h.issueSession(c, &u); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"_id":     u.ID,
		"name":    u.Name,
		"email":   u.Email,
		"message": "Login successful",
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return writeError(c, apperr.Unauthorized("Not authorized"))
	}
	return c.JSON(fiber.Map{
		"_id":              u.ID,
		"name":             u.Name,
		"email":            u.Email,
		"isPremium":        u.IsPremium,
		"premiumPlan":      u.PremiumPlan,
		"premiumExpiresAt": u.PremiumExpiresAt,
	})
}

// issueSession signs a token for u and sets it as the auth cookie.
func (h *AuthHandler) issueSession(c *fiber.Ctx, u *models.User) error {
	token, err := utils.SignJWT(h.JWTSecret, u.ID, h.Expires)
	if err != nil {
		return apperr.Internal("Failed to create token", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   int(h.Expires / time.Second),
	})
	return nil
}
