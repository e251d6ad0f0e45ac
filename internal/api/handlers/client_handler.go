package handlers

import (
	"github.com/gin-gonic/gin"

	"shopops/portal/internal/services"
)

// ClientHandler serves the customer directory.
type ClientHandler struct {
	clientService services.IClientService
}

func NewClientHandler(clientService services.IClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

type clientRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	AltPhone string `json:"altPhone"`
	Notes    string `json:"notes"`
}

func (r clientRequest) input() services.ClientInput {
	return services.ClientInput{Name: r.Name, Phone: r.Phone, AltPhone: r.AltPhone, Notes: r.Notes}
}

// CreateClient handles POST /api/clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req clientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.clientService.CreateClient(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, client)
}

// ListClients handles GET /api/clients?q&limit
func (h *ClientHandler) ListClients(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	clients, err := h.clientService.ListClients(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, clients)
}

// GetClient handles GET /api/clients/:id
func (h *ClientHandler) GetClient(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.GetClient(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, client)
}

// UpdateClient handles PUT /api/clients/:id
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req clientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.clientService.UpdateClient(c.Request.Context(), clientID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, client)
}

// DeleteClient handles DELETE /api/clients/:id
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.clientService.DeleteClient(c.Request.Context(), clientID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": clientID.Hex()})
}
