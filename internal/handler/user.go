package handler

import (
	"net/http"

	"github.com/greencore/api/internal/ctxkeys"
	"github.com/greencore/api/internal/service"
)

type userHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewUserHandler(userService *service.UserService, authService *service.AuthService) *userHandler {
	return &userHandler{
		userService: userService,
		authService: authService,
	}
}

func (h *userHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ctxkeys.User(r.Context()))
}

func (h *userHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var update service.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondError(w, err)
		return
	}

	updated, err := h.userService.UpdateProfile(user.ID, update)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *userHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.userService.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(w, err)
		return
	}

	// Every session was revoked; the client must sign in again.
	h.authService.ClearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed, please sign in again"})
}

func (h *userHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Password string `json:"password"`
	}
	_ = decodeJSON(r, &req)

	err := h.userService.DeleteAccount(user.ID, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	h.authService.ClearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
