package handlers

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetk3436/markops/internal/config"
	"github.com/ahmetk3436/markops/internal/middleware"
)

// AuthHandler authenticates the single dashboard operator configured in env.
type AuthHandler struct {
	cfg *config.Config

	mu           sync.RWMutex
	passwordHash []byte
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash admin password", "error", err)
	}
	return &AuthHandler{cfg: cfg, passwordHash: hash}
}

func (h *AuthHandler) checkPassword(password string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return bcrypt.CompareHashAndPassword(h.passwordHash, []byte(password)) == nil
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Username != h.cfg.AdminUsername || !h.checkPassword(req.Password) {
		slog.Warn("Failed login", "username", req.Username, "ip", c.IP())
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	return h.issue(c, req.Username, h.cfg.AdminDisplayName, h.cfg.AdminRole)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	claims := &middleware.Claims{}
	token, err := jwt.ParseWithClaims(req.RefreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired refresh token")
	}
	return h.issue(c, claims.Username, claims.DisplayName, claims.Role)
}

func (h *AuthHandler) issue(c *fiber.Ctx, username, displayName, role string) error {
	access, refresh, err := middleware.GenerateTokens(username, h.cfg.JWTSecret, displayName, role)
	if err != nil {
		slog.Error("Failed to generate tokens", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to generate tokens")
	}
	return c.JSON(fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          userView(username, displayName, role),
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	username, _ := c.Locals("username").(string)
	displayName, _ := c.Locals("display_name").(string)
	role, _ := c.Locals("role").(string)
	return c.JSON(userView(username, displayName, role))
}

// ChangePassword replaces the in-memory hash. The env password applies again
// after a restart.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return fail(c, fiber.StatusBadRequest, "Both old_password and new_password are required")
	}
	if len(req.NewPassword) < 8 {
		return fail(c, fiber.StatusBadRequest, "New password must be at least 8 characters")
	}
	if !h.checkPassword(req.OldPassword) {
		return fail(c, fiber.StatusUnauthorized, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash new password", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to update password")
	}
	h.mu.Lock()
	h.passwordHash = newHash
	h.mu.Unlock()
	slog.Info("Admin password changed")

	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

func userView(username, displayName, role string) fiber.Map {
	return fiber.Map{
		"username":        username,
		"display_name":    displayName,
		"role":            role,
		"avatar_initials": buildInitials(displayName),
	}
}

// buildInitials returns up to two uppercase initials, e.g. "Sanne de Vries" -> "SD".
func buildInitials(name string) string {
	var initials []rune
	for _, p := range strings.Fields(name) {
		if len(initials) == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(p)
		initials = append(initials, unicode.ToUpper(r))
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}
