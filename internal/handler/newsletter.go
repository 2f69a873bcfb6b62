package handler

import (
	"net/http"

	"github.com/greencore/api/internal/service"
)

type newsletterHandler struct {
	newsletterService *service.NewsletterService
}

func NewNewsletterHandler(newsletterService *service.NewsletterService) *newsletterHandler {
	return &newsletterHandler{newsletterService: newsletterService}
}

func (h *newsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	subscriber, err := h.newsletterService.Subscribe(req.Email, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, subscriber)
}

func (h *newsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := h.newsletterService.Unsubscribe(r.PathValue("token"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "unsubscribed"})
}
