// Package rest is the HTTP surface of the booking service.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
)

const segmentName = "club-booking-api"

type Deps struct {
	Bookings      BookingService
	Availability  AvailabilityFeed
	Notifications NotificationStore
	Catalog       *catalog.Catalog
	JWTSecret     []byte
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), Tracing(segmentName), AccessLog(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	v1 := r.Group("/v1")
	{
		ph := NewPackageHandler(d.Catalog)
		v1.GET("/packages", ph.List)

		ah := NewAvailabilityHandler(d.Availability)
		v1.GET("/availability", ah.Get)
		v1.GET("/availability/stream", ah.Stream)

		bh := NewBookingHandler(d.Bookings)
		secured := v1.Group("")
		secured.Use(JWTAuth(d.JWTSecret))
		{
			secured.POST("/bookings", bh.Create)
			secured.GET("/bookings", bh.List)
			secured.DELETE("/bookings/history", bh.ClearHistory)
			secured.POST("/bookings/:id/cancel", bh.Cancel)

			if d.Notifications != nil {
				nh := NewNotificationHandler(d.Notifications)
				secured.GET("/notifications", nh.List)
				secured.POST("/notifications/:id/read", nh.MarkRead)
			}
		}
	}
	return r
}
