package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ro-savage/nz-tech-events/internal/api/middleware"
	"github.com/ro-savage/nz-tech-events/internal/services"
)

// AdminHandler handles moderation and subscriber admin requests
type AdminHandler struct {
	events *services.EventService
	subs   *services.SubscriptionService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(events *services.EventService, subs *services.SubscriptionService) *AdminHandler {
	return &AdminHandler{
		events: events,
		subs:   subs,
	}
}

// RegisterRoutes registers the handler's routes
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/admin")
	admin.GET("/events/pending", h.PendingEvents)
	admin.POST("/events/:id/approve", h.ApproveEvent)
	admin.POST("/events/:id/reject", h.RejectEvent)
	admin.GET("/subscribers", h.Subscribers)
}

// PendingEvents handles GET /admin/events/pending
func (h *AdminHandler) PendingEvents(c *gin.Context) {
	events, err := h.events.ListPending(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ApproveEvent handles POST /admin/events/:id/approve
func (h *AdminHandler) ApproveEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	event, err := h.events.ApproveEvent(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// RejectEvent handles POST /admin/events/:id/reject
func (h *AdminHandler) RejectEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.events.RejectEvent(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": true})
}

// Subscribers handles GET /admin/subscribers
func (h *AdminHandler) Subscribers(c *gin.Context) {
	subscribers, err := h.subs.ListSubscribers(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscribers": subscribers,
		"count":       len(subscribers),
	})
}
