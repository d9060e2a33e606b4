package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"patientbooking/backend/internal/service/bookings"
	"patientbooking/backend/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var vErr *bookings.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondError(c, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(c, http.StatusConflict, "a booking with this id already exists")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request deadline exceeded", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusGatewayTimeout, "deadline exceeded")
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid "+param+": must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
