package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
	"home-services/realtime-service/internal/utils/validator"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetNotifications lists the caller's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	notifs, err := h.service.List(c.Request.Context(), identity(c).UserID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifs)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	unread, err := h.service.MarkRead(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read", "unread_count": unread})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	count, err := h.service.MarkAllRead(c.Request.Context(), identity(c).UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count, "unread_count": 0})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), identity(c).UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Send is the internal endpoint other services post to.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req models.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
		return
	}
	if err := validator.Struct(req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrValidation, err.Error()))
		return
	}

	notif, err := h.service.Notify(c.Request.Context(), req.UserID, req.NotificationInput)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notif)
}

func (h *NotificationHandler) SendToAdmins(c *gin.Context) {
	var in models.NotificationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondWithError(c, http.StatusBadRequest, errors.New("invalid input"))
		return
	}

	notifs, err := h.service.NotifyAdmins(c.Request.Context(), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(notifs)})
}
