package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/goals"
	"lg/nutrition-api/internal/meals"
	"lg/nutrition-api/internal/nutrition"
	"lg/nutrition-api/internal/postgres"
	"lg/nutrition-api/internal/stats"
	"lg/nutrition-api/internal/weight"
)

type userStore interface {
	ByUsername(ctx context.Context, username string) (postgres.User, error)
	UserIDByToken(ctx context.Context, token string) (int, error)
}

type statsService interface {
	GetDaily(ctx context.Context, userID int, date, tz string) (stats.DailySummary, error)
	GetRange(ctx context.Context, userID int, from, to, tz string) (stats.RangeSummary, error)
	GetRecommendedTargets(ctx context.Context, userID int) (goals.Targets, error)
	GetDayNutrients(ctx context.Context, userID int, date, tz string) (stats.DayNutrients, error)
}

type mealService interface {
	GetDay(ctx context.Context, userID int, date, tz string) (meals.DayView, error)
	AddItems(ctx context.Context, userID int, in meals.AddInput) (nutrition.Meal, error)
	UpdateItem(ctx context.Context, userID int, itemID uuid.UUID, in meals.ItemInput) (nutrition.LineItem, error)
	MoveItem(ctx context.Context, userID int, itemID uuid.UUID, to meals.MoveTarget) (nutrition.LineItem, error)
	DeleteItem(ctx context.Context, userID int, itemID uuid.UUID) error
	MoveMeal(ctx context.Context, userID int, mealID uuid.UUID, to meals.MoveTarget) (nutrition.Meal, error)
	DeleteMeal(ctx context.Context, userID int, mealID uuid.UUID) error
}

type profileStore interface {
	Get(ctx context.Context, userID int) (nutrition.Profile, error)
	Patch(ctx context.Context, userID int, p nutrition.ProfilePatch) (nutrition.Profile, error)
}

type weightService interface {
	Add(ctx context.Context, userID int, in weight.AddInput) (nutrition.WeightEntry, error)
	Range(ctx context.Context, userID int, from, to string) ([]nutrition.WeightEntry, error)
	Latest(ctx context.Context, userID int) (nutrition.WeightEntry, error)
	Delete(ctx context.Context, userID int, id uuid.UUID) error
}

// Handler holds shared dependencies for all route handlers.
type Handler struct {
	users    userStore
	stats    statsService
	meals    mealService
	profiles profileStore
	weight   weightService
	clock    clockwork.Clock
	log      *zap.Logger
}

/* ─── Responses ───────────────────────────────────────────────────────── */

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// errStatus maps domain errors to HTTP statuses. Anything unrecognized is a
// 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, nutrition.ErrInvalidDate),
		errors.Is(err, nutrition.ErrValidation),
		errors.Is(err, nutrition.ErrRangeTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, nutrition.ErrIncompleteProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, nutrition.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, nutrition.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, nutrition.ErrStorageTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, nutrition.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged and their details kept out of the response.
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	status := errStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed",
			zap.Int("user_id", c.GetInt("user_id")),
			zap.Int("status", status),
			zap.Error(err),
		)
		apiError(c, status, op+" failed")
		return
	}
	apiError(c, status, err.Error())
}

// respondMutation writes a mutation result. A stale-stats error means the
// write committed, so the result is still returned with a flag.
func (h *Handler) respondMutation(c *gin.Context, op string, status int, body gin.H, err error) {
	if err != nil && !errors.Is(err, nutrition.ErrStatsStale) {
		h.respondError(c, op, err)
		return
	}
	if err != nil {
		h.log.Warn(op+" saved with stale stats", zap.Int("user_id", c.GetInt("user_id")), zap.Error(err))
		body["stats_stale"] = true
	}
	c.JSON(status, body)
}

// pathID parses the :id route param as a UUID, writing a 400 when it isn't.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/api/login", h.login)
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/stats/daily", h.getDailyStats)
	api.GET("/stats/range", h.getRangeStats)
	api.GET("/stats/day-nutrients", h.getDayNutrients)
	api.GET("/stats/recommended", h.getRecommendedTargets)

	api.GET("/meals", h.getMeals)
	api.POST("/meals", h.addMealItems)
	api.PUT("/meals/items/:id", h.updateMealItem)
	api.POST("/meals/items/:id/move", h.moveMealItem)
	api.DELETE("/meals/items/:id", h.deleteMealItem)
	api.POST("/meals/:id/move", h.moveMeal)
	api.DELETE("/meals/:id", h.deleteMeal)

	api.GET("/profile", h.getProfile)
	api.PATCH("/profile", h.patchProfile)

	api.GET("/weight-log", h.getWeightLog)
	api.GET("/weight-log/latest", h.getLatestWeight)
	api.POST("/weight-log", h.addWeightEntry)
	api.DELETE("/weight-log/:id", h.deleteWeightEntry)
}
