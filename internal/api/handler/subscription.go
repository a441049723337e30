package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/jobalerts/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SubscriptionHandler handles subscriber self-service endpoints.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Create handles POST /api/v1/subscriptions
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req service.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Subscribe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// List handles GET /api/v1/subscriptions?email=
func (h *SubscriptionHandler) List(c *gin.Context) {
	subs, err := h.svc.ListForEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Update handles PUT /api/v1/subscriptions/:id
func (h *SubscriptionHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.UpdatePreference(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// DeactivateAccount handles POST /api/v1/accounts/:id/deactivate?email=
func (h *SubscriptionHandler) DeactivateAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateAccount(c.Request.Context(), id, c.Query("email")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}

// ReactivateAccount handles POST /api/v1/accounts/:id/reactivate?email=
func (h *SubscriptionHandler) ReactivateAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, err := h.svc.ReactivateAccount(c.Request.Context(), id, c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Account reactivated",
		"subscription": sub,
	})
}

// DeleteAccount handles DELETE /api/v1/accounts/:id?email=
func (h *SubscriptionHandler) DeleteAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAccount(c.Request.Context(), id, c.Query("email")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /api/v1/accounts/:id/alerts?email=&limit=
func (h *SubscriptionHandler) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rows, err := h.svc.History(c.Request.Context(), id, c.Query("email"), queryLimit(c, defaultHistoryLimit, maxHistoryLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": rows})
}
