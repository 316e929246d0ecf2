package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lg/nutrition-api/internal/weight"
)

// getWeightLog returns weight entries for the authenticated user within [from, to].
// GET /api/weight-log?from=YYYY-MM-DD&to=YYYY-MM-DD. Both params required.
// Returns an empty array (not null) if no entries exist in the range.
func (h *Handler) getWeightLog(c *gin.Context) {
	userID := c.GetInt("user_id")

	entries, err := h.weight.Range(c, userID, c.Query("from"), c.Query("to"))
	if err != nil {
		h.respondError(c, "get weight log", err)
		return
	}

	out := make([]weightEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newWeightEntryResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

// getLatestWeight returns the most recent weight entry, or 404 if none exist.
// GET /api/weight-log/latest.
func (h *Handler) getLatestWeight(c *gin.Context) {
	userID := c.GetInt("user_id")

	e, err := h.weight.Latest(c, userID)
	if err != nil {
		h.respondError(c, "latest weight", err)
		return
	}
	c.JSON(http.StatusOK, newWeightEntryResponse(e))
}

// addWeightEntry logs a weigh-in and updates the profile's current weight.
// POST /api/weight-log. Body: { "date"?, "tz"?, "weight_kg": 72.4, "note"? }.
// date defaults to today in the user's zone.
func (h *Handler) addWeightEntry(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body weightRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.weight.Add(c, userID, weight.AddInput{
		Date:     body.Date,
		Timezone: body.Timezone,
		WeightKG: body.WeightKG,
		Note:     body.Note,
	})
	if err != nil {
		h.respondError(c, "add weight entry", err)
		return
	}
	c.JSON(http.StatusCreated, newWeightEntryResponse(e))
}

// deleteWeightEntry removes a weight log entry by ID.
// DELETE /api/weight-log/:id. Returns 204 on success, 404 if not found.
// Ownership is enforced by requiring both id and user_id to match.
func (h *Handler) deleteWeightEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.weight.Delete(c, userID, id); err != nil {
		h.respondError(c, "delete weight entry", err)
		return
	}
	c.Status(http.StatusNoContent)
}
