package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/booking"
)

// BookingService is the part of the booking service exposed over HTTP.
type BookingService interface {
	SubmitBooking(ctx context.Context, req booking.Request) <-chan booking.Outcome
	CancelReservation(ctx context.Context, reservationID, userID string) <-chan error
	ListUserReservations(ctx context.Context, userID string, filter booking.HistoryFilter) (booking.UserReservations, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

type BookingHandler struct {
	bookings BookingService
}

func NewBookingHandler(s BookingService) *BookingHandler {
	return &BookingHandler{bookings: s}
}

type createBookingInput struct {
	ResourceID string    `json:"resource_id" binding:"required"`
	Package    string    `json:"package" binding:"required"`
	Start      time.Time `json:"start" binding:"required"` // RFC3339
}

// POST /v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var in createBookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := booking.Request{
		ResourceID:  in.ResourceID,
		PackageName: in.Package,
		Start:       in.Start,
		Identity:    identityFrom(c),
	}

	// a client that goes away does not abort the attempt
	select {
	case out := <-h.bookings.SubmitBooking(c.Request.Context(), req):
		if out.Admitted() {
			c.JSON(http.StatusCreated, out.Admission)
			return
		}
		reason := out.Reason()
		c.JSON(admissionStatus(reason), gin.H{"error": rejectionMessage(reason, out.Err), "reason": reason})
	case <-c.Request.Context().Done():
	}
}

func admissionStatus(reason booking.Reason) int {
	switch reason {
	case booking.ReasonSlotTaken:
		return http.StatusConflict
	case booking.ReasonPastStartTime, booking.ReasonInvalidNightStart, booking.ReasonInvalidPackage:
		return http.StatusUnprocessableEntity
	case booking.ReasonResourceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func rejectionMessage(reason booking.Reason, err error) string {
	if reason == booking.ReasonStoreUnavailable {
		return booking.ErrStoreUnavailable.Error()
	}
	return err.Error()
}

// POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	userID := identityFrom(c).UserID

	select {
	case err := <-h.bookings.CancelReservation(c.Request.Context(), id, userID):
		if err != nil {
			status, msg := cancelStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reservation_id": id, "status": model.ReservationStatusCancelled})
	case <-c.Request.Context().Done():
	}
}

func cancelStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrReservationNotFound):
		return http.StatusNotFound, model.ErrReservationNotFound.Error()
	case errors.Is(err, booking.ErrNotOwner):
		return http.StatusForbidden, booking.ErrNotOwner.Error()
	case errors.Is(err, booking.ErrNotActive):
		return http.StatusConflict, booking.ErrNotActive.Error()
	default:
		return http.StatusServiceUnavailable, booking.ErrStoreUnavailable.Error()
	}
}

// GET /v1/bookings?filter=all|completed|cancelled
func (h *BookingHandler) List(c *gin.Context) {
	filter, err := booking.ParseHistoryFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.bookings.ListUserReservations(c.Request.Context(), identityFrom(c).UserID, filter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": booking.ErrStoreUnavailable.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /v1/bookings/history
func (h *BookingHandler) ClearHistory(c *gin.Context) {
	n, err := h.bookings.ClearHistory(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": booking.ErrStoreUnavailable.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
