package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
	"github.com/prepwise/prepwise/backend/auth-service/internal/storage"
	"github.com/prepwise/prepwise/backend/auth-service/internal/users"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/logger"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/middleware"
)

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	users    *users.Service
	sessions *sessions.Service
	avatars  *storage.AvatarStore
}

// NewProfileHandler creates the handler. avatars may be nil when no object
// store is configured; avatar upload then reports unavailability.
func NewProfileHandler(u *users.Service, s *sessions.Service, a *storage.AvatarStore) *ProfileHandler {
	return &ProfileHandler{users: u, sessions: s, avatars: a}
}

// Register mounts the protected profile routes behind the given auth gate.
func (h *ProfileHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	a := rg.Group("/auth", auth)
	a.GET("/profile", h.GetProfile)
	a.GET("/verify", h.Verify)

	u := rg.Group("/user", auth)
	u.PUT("/profile", h.UpdateProfile)
	u.DELETE("/profile", h.DeleteAccount)
	u.POST("/avatar", h.UploadAvatar)
}

// GetProfile returns the caller's identity record.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), cu.ID)
	if err != nil {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}
	respondOK(c, http.StatusOK, "User profile retrieved successfully", u.Public())
}

// Verify confirms the presented access token is live and echoes back the
// identity it resolves to.
func (h *ProfileHandler) Verify(c *gin.Context) {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	respondOK(c, http.StatusOK, "Token is valid", gin.H{"user": cu})
}

// UpdateProfile changes the caller's display name.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Name is required")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), cu.ID, req.Name)
	if err != nil {
		if verr, ok := err.(*users.ValidationError); ok {
			respondFail(c, http.StatusBadRequest, verr.Message)
			return
		}
		respondFail(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	respondOK(c, http.StatusOK, "Profile updated successfully", u.Public())
}

// DeleteAccount removes the identity, every refresh session it owns and
// its avatar object.
func (h *ProfileHandler) DeleteAccount(c *gin.Context) {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if err := h.sessions.DeleteAllForUser(c.Request.Context(), cu.ID); err != nil {
		logger.Errorf("failed to revoke sessions for %s: %v", cu.ID, err)
		respondFail(c, http.StatusInternalServerError, "Failed to delete account")
		return
	}
	if h.avatars != nil {
		if err := h.avatars.Delete(c.Request.Context(), cu.ID); err != nil {
			logger.Warnf("failed to delete avatar for %s: %v", cu.ID, err)
		}
	}
	if err := h.users.DeleteAccount(c.Request.Context(), cu.ID); err != nil {
		respondFail(c, http.StatusInternalServerError, "Failed to delete account")
		return
	}
	respondOK(c, http.StatusOK, "Account deleted successfully", nil)
}

// UploadAvatar stores the multipart "avatar" file and records its location
// on the identity.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	cu, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if h.avatars == nil {
		respondFail(c, http.StatusServiceUnavailable, "Avatar storage is not configured")
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if _, err := h.avatars.Put(c.Request.Context(), cu.ID, f, fh.Size, contentType); err != nil {
		logger.Errorf("avatar upload failed for %s: %v", cu.ID, err)
		respondFail(c, http.StatusInternalServerError, "Failed to store avatar")
		return
	}
	url, err := h.avatars.PresignedURL(c.Request.Context(), cu.ID, 24*time.Hour)
	if err != nil {
		logger.Errorf("avatar url for %s: %v", cu.ID, err)
		respondFail(c, http.StatusInternalServerError, "Failed to store avatar")
		return
	}
	u, err := h.users.SetAvatarURL(c.Request.Context(), cu.ID, url)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Failed to store avatar")
		return
	}
	respondOK(c, http.StatusOK, "Avatar uploaded successfully", u.Public())
}
