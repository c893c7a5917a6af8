package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
)

type SupportHandler struct {
	service *services.SupportService
}

func NewSupportHandler(service *services.SupportService) *SupportHandler {
	return &SupportHandler{service: service}
}

func (h *SupportHandler) CreateTicket(c *gin.Context) {
	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
		return
	}

	ticket, err := h.service.CreateTicket(c.Request.Context(), identity(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GetTickets returns the caller's tickets, or every ticket for agents
// (optionally filtered with ?status=).
func (h *SupportHandler) GetTickets(c *gin.Context) {
	tickets, err := h.service.ListTickets(c.Request.Context(), identity(c), models.TicketStatus(c.Query("status")))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (h *SupportHandler) GetTicket(c *gin.Context) {
	ticket, err := h.service.GetTicket(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *SupportHandler) GetMessages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type assignRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *SupportHandler) AssignTicket(c *gin.Context) {
	var req assignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
			return
		}
	}

	ticket, err := h.service.AssignTicket(c.Request.Context(), identity(c), c.Param("id"), req.AgentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *SupportHandler) UpdateStatus(c *gin.Context) {
	var req models.TicketStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
		return
	}

	ticket, err := h.service.UpdateStatus(c.Request.Context(), identity(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}
