package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/models"
)

const monthOptionCount = 12

// MetaHandler serves catalog lookup data and operational metrics
type MetaHandler struct {
	metrics *metrics.Metrics
}

// NewMetaHandler creates a new meta handler
func NewMetaHandler(m *metrics.Metrics) *MetaHandler {
	return &MetaHandler{metrics: m}
}

// RegisterRoutes registers the handler's routes
func (h *MetaHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/regions", h.Regions)
	router.GET("/metrics", h.Metrics)
}

type optionEntry struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// Regions handles GET /regions
func (h *MetaHandler) Regions(c *gin.Context) {
	regions := make([]optionEntry, 0, len(models.AllRegions))
	for _, r := range models.AllRegions {
		regions = append(regions, optionEntry{Slug: r.String(), Label: r.DisplayLabel()})
	}

	eventTypes := make([]optionEntry, 0, len(models.AllEventTypes))
	for _, t := range models.AllEventTypes {
		eventTypes = append(eventTypes, optionEntry{Slug: t.String(), Label: t.DisplayLabel()})
	}

	cities := make(map[string][]string, len(models.CitiesByRegion))
	for region, regionCities := range models.CitiesByRegion {
		cities[region.String()] = regionCities
	}

	c.JSON(http.StatusOK, gin.H{
		"regions":          regions,
		"event_types":      eventTypes,
		"cities_by_region": cities,
		"months":           monthOptions(time.Now()),
	})
}

// monthOptions lists the current month and the eleven after it for the
// catalog's month filter.
func monthOptions(now time.Time) []optionEntry {
	options := make([]optionEntry, 0, monthOptionCount)
	year, month, _ := now.Date()
	for i := 0; i < monthOptionCount; i++ {
		m := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		options = append(options, optionEntry{
			Slug:  m.Format("2006-01"),
			Label: m.Format("January 2006"),
		})
	}
	return options
}

// Metrics handles GET /metrics
func (h *MetaHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}
