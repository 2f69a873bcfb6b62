package handler

import (
	"net/http"

	"github.com/greencore/api/internal/ctxkeys"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/service"
)

type adminHandler struct {
	adminService      *service.AdminService
	newsletterService *service.NewsletterService
	co2Service        *service.CO2Service
}

func NewAdminHandler(adminService *service.AdminService, newsletterService *service.NewsletterService, co2Service *service.CO2Service) *adminHandler {
	return &adminHandler{
		adminService:      adminService,
		newsletterService: newsletterService,
		co2Service:        co2Service,
	}
}

func (h *adminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.SystemStats()
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *adminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repository.UserFilter{
		Role:   query.Get("role"),
		Search: query.Get("search"),
		Page:   queryInt(query.Get("page"), 1),
		Limit:  queryInt(query.Get("limit"), 20),
	}
	if active := query.Get("active"); active != "" {
		isActive := active == "true"
		filter.Active = &isActive
	}

	users, total, err := h.adminService.ListUsers(filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, paginated{
		Items: users,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func (h *adminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := h.adminService.UpdateRole(actor, r.PathValue("id"), req.Role)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *adminHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())

	user, err := h.adminService.ToggleActive(actor, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *adminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())

	err := h.adminService.DeleteUser(actor, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *adminHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repository.SubscriberFilter{
		Page:  queryInt(query.Get("page"), 1),
		Limit: queryInt(query.Get("limit"), 20),
	}
	if active := query.Get("active"); active != "" {
		isActive := active == "true"
		filter.Active = &isActive
	}

	subscribers, total, err := h.newsletterService.List(filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, paginated{
		Items: subscribers,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func (h *adminHandler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	err := h.newsletterService.Delete(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "subscriber deleted"})
}

func (h *adminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.newsletterService.Broadcast(req.Subject, req.Body)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RecalcCO2 replays the CO₂ derivation over all stored entries, e.g.
// after a factor table update.
func (h *adminHandler) RecalcCO2(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DryRun bool `json:"dryRun"`
	}
	_ = decodeJSON(r, &req)

	result, err := h.co2Service.Recalculate(req.DryRun)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
