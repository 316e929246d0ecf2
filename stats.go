package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getDailyStats returns targets, actuals and progress for one day.
// GET /api/stats/daily?date=YYYY-MM-DD&tz=Zone. Both params are optional.
func (h *Handler) getDailyStats(c *gin.Context) {
	userID := c.GetInt("user_id")

	s, err := h.stats.GetDaily(c, userID, c.Query("date"), c.Query("tz"))
	if err != nil {
		h.respondError(c, "daily stats", err)
		return
	}
	c.JSON(http.StatusOK, newDailySummaryResponse(s))
}

// getRangeStats returns one summary per day in [from, to].
// GET /api/stats/range?from=YYYY-MM-DD&to=YYYY-MM-DD&tz=Zone. from and to are
// required; ranges over the configured maximum are rejected.
func (h *Handler) getRangeStats(c *gin.Context) {
	userID := c.GetInt("user_id")
	from, to := c.Query("from"), c.Query("to")

	if from == "" || to == "" {
		apiError(c, http.StatusBadRequest, "from and to query params are required")
		return
	}

	r, err := h.stats.GetRange(c, userID, from, to, c.Query("tz"))
	if err != nil {
		h.respondError(c, "range stats", err)
		return
	}

	out := rangeSummaryResponse{
		From:     r.From,
		To:       r.To,
		Timezone: r.Timezone,
		Days:     make([]dailySummaryResponse, 0, len(r.Days)),
	}
	for _, d := range r.Days {
		out.Days = append(out.Days, newDailySummaryResponse(d))
	}
	c.JSON(http.StatusOK, out)
}

// getDayNutrients returns the reduced calorie card for a day.
// GET /api/stats/day-nutrients?date=YYYY-MM-DD&tz=Zone.
func (h *Handler) getDayNutrients(c *gin.Context) {
	userID := c.GetInt("user_id")

	d, err := h.stats.GetDayNutrients(c, userID, c.Query("date"), c.Query("tz"))
	if err != nil {
		h.respondError(c, "day nutrients", err)
		return
	}
	c.JSON(http.StatusOK, dayNutrientsResponse{
		Date:         d.Date,
		TargetKcal:   d.TargetKcal,
		ConsumedKcal: d.ConsumedKcal,
		Totals:       newTotalsResponse(d.Totals),
	})
}

// getRecommendedTargets returns the targets computed from the profile.
// GET /api/stats/recommended. 422 when the profile lacks BMR inputs.
func (h *Handler) getRecommendedTargets(c *gin.Context) {
	userID := c.GetInt("user_id")

	t, err := h.stats.GetRecommendedTargets(c, userID)
	if err != nil {
		h.respondError(c, "recommended targets", err)
		return
	}
	c.JSON(http.StatusOK, newTargetsResponse(t))
}
