package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// NotificationStore reads and acknowledges the notifications written by the
// notification batch.
type NotificationStore interface {
	GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error)
	UpdateIsRead(ctx context.Context, id int, userID string, isRead bool) error
}

type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(s NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: s}
}

// GET /v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	records, err := h.store.GetByUserID(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if records == nil {
		records = []model.NotificationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": records})
}

// POST /v1/notifications/:id/read   body (optional): {"is_read": false}
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	in := struct {
		IsRead *bool `json:"is_read"`
	}{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	isRead := true
	if in.IsRead != nil {
		isRead = *in.IsRead
	}

	err = h.store.UpdateIsRead(c.Request.Context(), id, identityFrom(c).UserID, isRead)
	switch {
	case errors.Is(err, model.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": id, "is_read": isRead})
	}
}
