package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{
		log:         log.With("handler", "UserHandler"),
		userService: userService,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("ListUsers failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_users_failed", err)
		return
	}
	RespondOK(c, gin.H{"users": users})
}

func (h *UserHandler) ChangeRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.userService.ChangeRole(c.Request.Context(), userID, req.Role); err != nil {
		RespondError(c, http.StatusBadRequest, "change_role_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		h.log.Error("DeleteUser failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusInternalServerError, "delete_user_failed", fmt.Errorf("failed to delete user"))
		return
	}
	RespondOK(c, gin.H{"success": true})
}
