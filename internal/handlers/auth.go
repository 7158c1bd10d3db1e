package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authn *auth.Authenticator
	users *services.UserService
}

func NewAuthHandler(authn *auth.Authenticator, users *services.UserService) *AuthHandler {
	return &AuthHandler{authn: authn, users: users}
}

// RegisterRoutes mounts signup, login and logout on the public group and me
// on the authenticated one.
func (h *AuthHandler) RegisterRoutes(public, private *echo.Group) {
	public.POST("/auth/signup", h.Signup)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/logout", h.Logout)
	private.GET("/auth/me", h.Me)
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var in services.SignupInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	u, err := h.users.Signup(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return h.issue(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var in services.LoginInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	u, err := h.users.Authenticate(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return h.issue(c, http.StatusOK, u)
}

// issue returns a bearer token and sets the session cookie.
func (h *AuthHandler) issue(c echo.Context, status int, u *models.User) error {
	token, exp, err := h.authn.IssueToken(u.ID)
	if err != nil {
		return err
	}
	h.authn.CreateSession(c.Response(), u.ID)
	return c.JSON(status, loginResponse{Token: token, ExpiresAt: exp, User: u})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	auth.ClearSession(c.Response())
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.users.Get(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
