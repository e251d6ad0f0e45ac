package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shopops/portal/internal/auth"
	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
)

// AuthHandler handles login and the current-user lookup.
type AuthHandler struct {
	userService services.IUserService
	jwtSecret   string
	jwtTTL      time.Duration
}

func NewAuthHandler(userService services.IUserService, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{userService: userService, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the payload of a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user, h.jwtSecret, h.jwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, LoginResponse{Token: token, User: user})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.FindByID(c.Request.Context(), currentCaller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}
