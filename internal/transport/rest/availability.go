package rest

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/projection"
)

// AvailabilityFeed is the read side of the availability projection.
type AvailabilityFeed interface {
	Snapshot() projection.Snapshot
	Subscribe() (<-chan projection.Snapshot, func())
}

type AvailabilityHandler struct {
	feed AvailabilityFeed
}

func NewAvailabilityHandler(feed AvailabilityFeed) *AvailabilityHandler {
	return &AvailabilityHandler{feed: feed}
}

// GET /v1/availability
func (h *AvailabilityHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

// GET /v1/availability/stream
// Sends the current snapshot first, then every rebuild as an "availability"
// server-sent event.
func (h *AvailabilityHandler) Stream(c *gin.Context) {
	ch, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("availability", snap)
			return true
		}
	})
}

type PackageHandler struct {
	catalog *catalog.Catalog
}

func NewPackageHandler(cat *catalog.Catalog) *PackageHandler {
	return &PackageHandler{catalog: cat}
}

// GET /v1/packages?category=
func (h *PackageHandler) List(c *gin.Context) {
	if q := c.Query("category"); q != "" {
		category := model.ParseCategory(q)
		c.JSON(http.StatusOK, gin.H{
			"category": category,
			"packages": h.catalog.PackagesFor(category),
		})
		return
	}

	all := make(map[model.Category][]model.TimePackage)
	for _, category := range []model.Category{model.CategoryStandard, model.CategoryPremium, model.CategoryBootcamp} {
		all[category] = h.catalog.PackagesFor(category)
	}
	c.JSON(http.StatusOK, gin.H{"packages": all})
}
