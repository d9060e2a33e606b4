package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/service/bookings"
)

type bookingsService interface {
	AddBooking(ctx context.Context, req bookings.AddBookingRequest) error
	CancelBooking(ctx context.Context, bookingID uuid.UUID) error
	GetPatientNextBooking(ctx context.Context, patientID int64) (*domain.BookingSummary, error)
}

// BookingHandler serves the booking endpoints.
type BookingHandler struct {
	svc bookingsService
	log *zap.Logger
}

func NewBookingHandler(svc bookingsService, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log.With(zap.String("component", "http.bookings"))}
}

func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/api/booking")
	{
		g.POST("", h.AddBooking)
		g.POST("/:bookingId/cancel", h.CancelBooking)
		g.GET("/patient/:identificationNumber/next", h.GetPatientNextBooking)
	}
}

type addBookingBody struct {
	ID        string    `json:"id" binding:"required"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	PatientID int64     `json:"patientId"`
	DoctorID  int64     `json:"doctorId"`
}

// AddBooking handles POST /api/booking.
func (h *BookingHandler) AddBooking(c *gin.Context) {
	var body addBookingBody
	if !bindJSON(c, &body) {
		return
	}
	id, err := uuid.Parse(body.ID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id: must be a valid UUID")
		return
	}

	err = h.svc.AddBooking(c.Request.Context(), bookings.AddBookingRequest{
		ID:        id,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		PatientID: body.PatientID,
		DoctorID:  body.DoctorID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// CancelBooking handles POST /api/booking/:bookingId/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseUUID(c, "bookingId")
	if !ok {
		return
	}
	if err := h.svc.CancelBooking(c.Request.Context(), id); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// GetPatientNextBooking handles GET /api/booking/patient/:identificationNumber/next.
// A patient without an active booking gets 204.
func (h *BookingHandler) GetPatientNextBooking(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("identificationNumber"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid identificationNumber: must be an integer")
		return
	}

	summary, err := h.svc.GetPatientNextBooking(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if summary == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, summary)
}
