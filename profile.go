package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getProfile returns the biometric profile of the authenticated user.
// GET /api/profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	p, err := h.profiles.Get(c, userID)
	if err != nil {
		h.respondError(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(p))
}

// patchProfile updates only the provided profile fields.
// PATCH /api/profile. Pointer fields in the body distinguish "not provided"
// from zero; explicit zero values are validated like any other.
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body patchProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := body.patch()
	if err := patch.Validate(h.clock.Now()); err != nil {
		h.respondError(c, "patch profile", err)
		return
	}

	p, err := h.profiles.Patch(c, userID, patch)
	if err != nil {
		h.respondError(c, "patch profile", err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(p))
}
