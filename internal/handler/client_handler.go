package handler

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/repository"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// ClientHandler manages API client provisioning.
type ClientHandler struct {
	clientRepo *repository.ClientRepository
}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler(clientRepo *repository.ClientRepository) *ClientHandler {
	return &ClientHandler{clientRepo: clientRepo}
}

// Create handles POST /v1/admin/clients.
// Keys are returned once, on creation; List never echoes them back.
func (h *ClientHandler) Create(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		IPWhitelist []string `json:"ipWhitelist"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "name is required")
		return
	}

	apiKey, err := utils.GenerateLiveKey()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}
	sandboxKey, err := utils.GenerateSandboxKey()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to generate sandbox key")
		return
	}

	client := &models.Client{
		ClientID:    uuid.New().String(),
		Name:        req.Name,
		APIKey:      apiKey,
		SandboxKey:  sandboxKey,
		IPWhitelist: req.IPWhitelist,
		IsActive:    true,
	}
	if client.IPWhitelist == nil {
		client.IPWhitelist = []string{}
	}

	if err := h.clientRepo.Create(client); err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Client creation failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to create client")
		return
	}

	log.Info().Str("client_id", client.ClientID).Str("name", client.Name).Msg("Client created")
	utils.Success(c, 201, "Client created", client)
}

// List handles GET /v1/admin/clients
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clientRepo.List()
	if err != nil {
		log.Error().Err(err).Msg("Client list failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to list clients")
		return
	}

	for _, cl := range clients {
		cl.APIKey = ""
		cl.SandboxKey = ""
	}

	utils.Success(c, 200, "Clients", clients)
}

// RegenerateKeys handles POST /v1/admin/clients/:id/regenerate.
// Both keys rotate together; the old ones stop working immediately.
func (h *ClientHandler) RegenerateKeys(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid client id")
		return
	}

	client, err := h.clientRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(c, 404, "CLIENT_NOT_FOUND", "Client not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load client")
		return
	}

	apiKey, err := utils.GenerateLiveKey()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}
	sandboxKey, err := utils.GenerateSandboxKey()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to generate sandbox key")
		return
	}

	if err := h.clientRepo.UpdateKeys(client.ID, apiKey, sandboxKey); err != nil {
		log.Error().Err(err).Int("id", client.ID).Msg("Key rotation failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to rotate keys")
		return
	}

	log.Info().Str("client_id", client.ClientID).Msg("Client keys rotated")
	utils.Success(c, 200, "Keys regenerated", gin.H{
		"clientId":   client.ClientID,
		"apiKey":     apiKey,
		"sandboxKey": sandboxKey,
	})
}
