package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/internal/api/middleware"
	"github.com/ro-savage/nz-tech-events/internal/cache"
	"github.com/ro-savage/nz-tech-events/internal/calendar"
	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/services"
)

const listingCacheTTL = 5 * time.Minute

// EventsHandler handles event catalog HTTP requests
type EventsHandler struct {
	events *services.EventService
	cache  *cache.RedisCache
	loc    *time.Location
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(events *services.EventService, redisCache *cache.RedisCache, loc *time.Location) *EventsHandler {
	return &EventsHandler{
		events: events,
		cache:  redisCache,
		loc:    loc,
	}
}

// RegisterRoutes registers the handler's routes
func (h *EventsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/events", h.ListUpcoming)
	router.GET("/events/past", h.ListPast)
	router.GET("/events/:id", h.Show)
	router.GET("/events/:id/calendar.ics", h.CalendarICS)
	router.GET("/events/:id/google_calendar", h.GoogleCalendar)
	router.GET("/my/events", h.ListOwn)
	router.POST("/events", h.Create)
	router.PUT("/events/:id", h.Update)
	router.DELETE("/events/:id", h.Destroy)
}

func parseFilters(c *gin.Context) (services.CatalogFilters, error) {
	var filters services.CatalogFilters
	if slug := c.Query("region"); slug != "" {
		region, err := models.ParseRegion(slug)
		if err != nil {
			return filters, err
		}
		filters.Region = &region
	}
	if city := c.Query("city"); city != "" {
		filters.City = &city
	}
	if slug := c.Query("event_type"); slug != "" {
		eventType, err := models.ParseEventType(slug)
		if err != nil {
			return filters, err
		}
		filters.EventType = &eventType
	}
	return filters, nil
}

// ListUpcoming handles GET /events
func (h *EventsHandler) ListUpcoming(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := cache.UpcomingListKey(filters.Region, filters.City, filters.EventType)
	var cached []models.Event
	if err := h.cache.Get(c.Request.Context(), key, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"events": cached})
		return
	}

	events, err := h.events.ListUpcoming(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.cache.Set(c.Request.Context(), key, events, listingCacheTTL); err != nil {
		log.Debug().Err(err).Msg("Failed to cache upcoming listing")
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListPast handles GET /events/past
func (h *EventsHandler) ListPast(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.events.ListPast(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListOwn handles GET /my/events
func (h *EventsHandler) ListOwn(c *gin.Context) {
	events, err := h.events.ListOwn(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Show handles GET /events/:id
func (h *EventsHandler) Show(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	event, err := h.events.GetEvent(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// Create handles POST /events
func (h *EventsHandler) Create(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var input services.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.CreateEvent(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// Update handles PUT /events/:id
func (h *EventsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var input services.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.UpdateEvent(c.Request.Context(), middleware.CurrentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// Destroy handles DELETE /events/:id
func (h *EventsHandler) Destroy(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.events.DestroyEvent(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CalendarICS handles GET /events/:id/calendar.ics
func (h *EventsHandler) CalendarICS(c *gin.Context) {
	event, ok := h.loadCalendarEvent(c)
	if !ok {
		return
	}

	content := calendar.ICS(event, h.loc, time.Now())
	c.Header("Content-Disposition", `attachment; filename="event.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(content))
}

// GoogleCalendar handles GET /events/:id/google_calendar
func (h *EventsHandler) GoogleCalendar(c *gin.Context) {
	event, ok := h.loadCalendarEvent(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, calendar.GoogleCalendarURL(event, h.loc))
}

func (h *EventsHandler) loadCalendarEvent(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}

	event, err := h.events.GetEvent(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return event, true
}
