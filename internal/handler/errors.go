package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"home-services/realtime-service/internal/models"
)

func respondWithError(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondWithError(c, http.StatusNotFound, err)
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, models.ErrValidation):
		respondWithError(c, http.StatusBadRequest, err)
	case errors.Is(err, models.ErrUnauthenticated):
		respondWithError(c, http.StatusUnauthorized, err)
	case errors.Is(err, models.ErrForbidden):
		respondWithError(c, http.StatusForbidden, err)
	case errors.Is(err, models.ErrConflict):
		respondWithError(c, http.StatusConflict, err)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("[HTTP] request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
