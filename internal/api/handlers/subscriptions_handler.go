package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ro-savage/nz-tech-events/internal/services"
)

// SubscriptionsHandler handles digest subscription HTTP requests
type SubscriptionsHandler struct {
	subs *services.SubscriptionService
}

// NewSubscriptionsHandler creates a new subscriptions handler
func NewSubscriptionsHandler(subs *services.SubscriptionService) *SubscriptionsHandler {
	return &SubscriptionsHandler{subs: subs}
}

// RegisterRoutes registers the handler's routes
func (h *SubscriptionsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/subscriptions", h.Subscribe)
	router.DELETE("/subscriptions/:token", h.Unsubscribe)
}

// SubscribeRequest is an incoming subscription request
type SubscribeRequest struct {
	EmailAddress string `json:"email_address"`
	Region       string `json:"region"`
}

// Subscribe handles POST /subscriptions
func (h *SubscriptionsHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.subs.Subscribe(c.Request.Context(), req.EmailAddress, req.Region)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"subscribed": true,
		"region":     sub.Region.DisplayLabel(),
	})
}

// Unsubscribe handles DELETE /subscriptions/:token
func (h *SubscriptionsHandler) Unsubscribe(c *gin.Context) {
	sub, err := h.subs.Unsubscribe(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"unsubscribed": true,
		"region":       sub.Region.DisplayLabel(),
	})
}
