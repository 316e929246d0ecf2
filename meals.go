package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lg/nutrition-api/internal/meals"
	"lg/nutrition-api/internal/nutrition"
)

// getMeals returns the meals logged on a day, in slot order, with their items.
// GET /api/meals?date=YYYY-MM-DD&tz=Zone. date defaults to today in the
// user's zone.
func (h *Handler) getMeals(c *gin.Context) {
	userID := c.GetInt("user_id")

	view, err := h.meals.GetDay(c, userID, c.Query("date"), c.Query("tz"))
	if err != nil {
		h.respondError(c, "get meals", err)
		return
	}
	c.JSON(http.StatusOK, newDayViewResponse(view))
}

// addMealItems appends items to the meal for a day and slot, creating it if
// needed.
// POST /api/meals. Body: { "date" | "eaten_at", "tz", "slot", "items": [...] }.
func (h *Handler) addMealItems(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body addMealRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	in := meals.AddInput{
		Date:     body.Date,
		EatenAt:  body.EatenAt,
		Timezone: body.Timezone,
		Slot:     nutrition.Slot(body.Slot),
		Items:    make([]meals.ItemInput, 0, len(body.Items)),
	}
	for _, it := range body.Items {
		in.Items = append(in.Items, it.input())
	}

	meal, err := h.meals.AddItems(c, userID, in)
	h.respondMutation(c, "add meal items", http.StatusCreated, gin.H{"meal": newMealResponse(meal)}, err)
}

// updateMealItem replaces an item's name, quantity and nutrients.
// PUT /api/meals/items/:id.
func (h *Handler) updateMealItem(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body itemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.meals.UpdateItem(c, userID, id, body.input())
	h.respondMutation(c, "update meal item", http.StatusOK, gin.H{"item": newItemResponse(item)}, err)
}

// moveMealItem moves an item to the end of another day's or slot's meal.
// POST /api/meals/items/:id/move. Body: { "date", "slot" }.
func (h *Handler) moveMealItem(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body moveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.meals.MoveItem(c, userID, id, meals.MoveTarget{Date: body.Date, Slot: nutrition.Slot(body.Slot)})
	h.respondMutation(c, "move meal item", http.StatusOK, gin.H{"item": newItemResponse(item)}, err)
}

// deleteMealItem removes one item. The meal stays even when it becomes empty.
// DELETE /api/meals/items/:id.
func (h *Handler) deleteMealItem(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	err := h.meals.DeleteItem(c, userID, id)
	h.respondDelete(c, "delete meal item", err)
}

// moveMeal moves a whole meal, merging into an existing meal at the
// destination.
// POST /api/meals/:id/move. Body: { "date", "slot" }.
func (h *Handler) moveMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body moveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	meal, err := h.meals.MoveMeal(c, userID, id, meals.MoveTarget{Date: body.Date, Slot: nutrition.Slot(body.Slot)})
	h.respondMutation(c, "move meal", http.StatusOK, gin.H{"meal_id": meal.ID, "date": DateOnly{meal.Day}, "slot": meal.Slot}, err)
}

// deleteMeal removes a meal and all of its items.
// DELETE /api/meals/:id.
func (h *Handler) deleteMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	err := h.meals.DeleteMeal(c, userID, id)
	h.respondDelete(c, "delete meal", err)
}

// respondDelete writes 204, or 200 with the stale flag when the delete
// committed but the day's stats could not be refreshed.
func (h *Handler) respondDelete(c *gin.Context, op string, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.respondMutation(c, op, http.StatusOK, gin.H{}, err)
}
