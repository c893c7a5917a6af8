package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
)

type ConversationHandler struct {
	service *services.ChatService
}

func NewConversationHandler(service *services.ChatService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// CreateConversation opens a thread between two parties. Calling it again
// for the same pair and job returns the existing thread with 200.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
		return
	}

	conv, created, err := h.service.CreateConversation(c.Request.Context(), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.service.ListConversations(c.Request.Context(), identity(c).UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// GetMessages pages backwards with ?before=<RFC3339>&limit=.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	var q models.HistoryQuery
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, errors.New("before must be an RFC3339 timestamp"))
			return
		}
		q.Before = before
	}
	q.Limit, _ = strconv.ParseInt(c.Query("limit"), 10, 64)

	msgs, err := h.service.History(c.Request.Context(), identity(c), c.Param("id"), q)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ConversationHandler) SearchMessages(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)

	msgs, err := h.service.Search(c.Request.Context(), identity(c), c.Param("id"), c.Query("q"), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
