package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/auth"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/usecase"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/ratelimit"
)

// PriceFeed is the read side of the price publisher
type PriceFeed interface {
	RefreshBy(ctx context.Context, itemID string, trigger usecase.Trigger) (domain.PriceSnapshot, bool, error)
	Current(itemID string) (usecase.Quote, bool)
	History(itemID string) []domain.PriceSnapshot
}

// Watcher starts and stops periodic re-evaluation of items
type Watcher interface {
	Start(ctx context.Context, itemID string) (usecase.Handle, error)
	StopItem(itemID string) int
	IsWatched(itemID string) bool
}

// RuleService authors pricing rules
type RuleService interface {
	ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error)
	UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// AttendanceService records ticket sales
type AttendanceService interface {
	UpdateAttendance(ctx context.Context, itemID string, attendees int) (domain.SalesState, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handler serves the pricing HTTP API
type Handler struct {
	Feed       PriceFeed
	Watcher    Watcher
	Rules      RuleService
	Attendance AttendanceService
	Validator  auth.TokenValidator
	Limiter    ratelimit.RateLimiter
	Checks     map[string]HealthCheck
}

// NewRouter builds a gin engine with the middleware chain and all routes
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestContext(), AccessLog())
	h.Register(r)
	return r
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api/v1")
	api.GET("/items/:item/price", h.getPrice)
	api.GET("/items/:item/history", h.getHistory)

	org := api.Group("", RequireOrganizer(h.Validator), RateLimit(h.Limiter))
	org.POST("/items/:item/watch", h.startWatch)
	org.DELETE("/items/:item/watch", h.stopWatch)
	org.GET("/items/:item/rules", h.listRules)
	org.PUT("/items/:item/rules", h.putRule)
	org.PATCH("/rules/:id/active", h.setActive)
	org.DELETE("/rules/:id", h.deleteRule)
	org.POST("/items/:item/attendance", h.postAttendance)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

type priceResponse struct {
	usecase.Quote
	Watched bool `json:"watched"`
	Stale   bool `json:"stale"`
}

// getPrice serves the current price. An item nobody evaluated yet is
// evaluated on the spot; ?refresh=true forces a new evaluation. When the
// inputs cannot be read the last known price is served as stale.
func (h *Handler) getPrice(c *gin.Context) {
	ctx := c.Request.Context()
	itemID := strings.TrimSpace(c.Param("item"))

	quote, known := h.Feed.Current(itemID)
	stale := false
	if !known || c.Query("refresh") == "true" {
		_, _, err := h.Feed.RefreshBy(ctx, itemID, usecase.TriggerManual)
		if err != nil {
			if !known || !usecase.IsFetchFailure(err) || usecase.IsUnknownItem(err) {
				writeError(c, err)
				return
			}
			stale = true
		} else {
			quote, _ = h.Feed.Current(itemID)
		}
	}

	ok(c, http.StatusOK, priceResponse{
		Quote:   quote,
		Watched: h.Watcher.IsWatched(itemID),
		Stale:   stale,
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	itemID := strings.TrimSpace(c.Param("item"))
	ok(c, http.StatusOK, gin.H{
		"item_id": itemID,
		"entries": h.Feed.History(itemID),
	})
}

func (h *Handler) startWatch(c *gin.Context) {
	handle, err := h.Watcher.Start(c.Request.Context(), c.Param("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, handle)
}

func (h *Handler) stopWatch(c *gin.Context) {
	itemID := strings.TrimSpace(c.Param("item"))
	stopped := h.Watcher.StopItem(itemID)
	if stopped == 0 {
		writeError(c, domain.NewNotFoundError("watch", itemID))
		return
	}
	ok(c, http.StatusOK, gin.H{"item_id": itemID, "stopped": stopped})
}

func (h *Handler) listRules(c *gin.Context) {
	rules, err := h.Rules.ListRules(c.Request.Context(), c.Param("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"rules":    rules,
		"warnings": usecase.Warnings(rules),
	})
}

type ruleRequest struct {
	ID          string  `json:"id"`
	Kind        string  `json:"rule_type" binding:"required"`
	Threshold   float64 `json:"threshold_value"`
	Multiplier  float64 `json:"price_multiplier" binding:"required"`
	Active      *bool   `json:"is_active"`
	Description string  `json:"description"`
}

func (h *Handler) putRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewInvalidInputError("invalid request body", err.Error()))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	saved, err := h.Rules.UpsertRule(c.Request.Context(), domain.PricingRule{
		ID:          req.ID,
		ItemID:      c.Param("item"),
		Kind:        domain.RuleKind(req.Kind),
		Threshold:   req.Threshold,
		Multiplier:  req.Multiplier,
		Active:      active,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

type activeRequest struct {
	Active *bool `json:"is_active" binding:"required"`
}

func (h *Handler) setActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewInvalidInputError("invalid request body", err.Error()))
		return
	}

	saved, err := h.Rules.SetRuleActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

func (h *Handler) deleteRule(c *gin.Context) {
	if err := h.Rules.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type attendanceRequest struct {
	CurrentAttendees *int `json:"current_attendees" binding:"required"`
}

func (h *Handler) postAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewInvalidInputError("invalid request body", err.Error()))
		return
	}

	state, err := h.Attendance.UpdateAttendance(c.Request.Context(), c.Param("item"), *req.CurrentAttendees)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, state)
}
