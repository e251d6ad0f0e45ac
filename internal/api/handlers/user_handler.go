package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
)

// UserHandler serves the staff directory.
type UserHandler struct {
	userService services.IUserService
}

func NewUserHandler(userService services.IUserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type createUserRequest struct {
	Name       string      `json:"name"`
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	Role       models.Role `json:"role"`
	Department string      `json:"department"`
}

// ListUsers handles GET /api/users. Inactive accounts are only listed for
// privileged callers asking with ?all=true.
func (h *UserHandler) ListUsers(c *gin.Context) {
	includeInactive := c.Query("all") == "true" && currentCaller(c).Role.Privileged()
	users, err := h.userService.ListUsers(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, users)
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Role == models.RoleAdmin && currentCaller(c).Role != models.RoleAdmin {
		respondMessage(c, http.StatusForbidden, "Only admins can create admin accounts")
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), services.CreateUserInput{
		Name:       req.Name,
		Username:   req.Username,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, user)
}
