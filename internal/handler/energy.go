package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/ctxkeys"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/service"
)

type energyHandler struct {
	energyService *service.EnergyService
}

func NewEnergyHandler(energyService *service.EnergyService) *energyHandler {
	return &energyHandler{energyService: energyService}
}

func (h *energyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var input service.EntryInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, err)
		return
	}

	entry, err := h.energyService.Create(r.Context(), user.ID, input)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (h *energyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	query := r.URL.Query()

	filter := repository.EntryFilter{
		Source:  query.Get("source"),
		Search:  query.Get("search"),
		SortBy:  query.Get("sortBy"),
		SortAsc: query.Get("order") == "asc",
		Page:    queryInt(query.Get("page"), 1),
		Limit:   queryInt(query.Get("limit"), 20),
	}

	if from := query.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			respondError(w, apperr.Validation("from must be a YYYY-MM-DD date"))
			return
		}
		filter.From = &t
	}
	if to := query.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			respondError(w, apperr.Validation("to must be a YYYY-MM-DD date"))
			return
		}
		filter.To = &t
	}

	entries, total, err := h.energyService.List(user.ID, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, paginated{
		Items: entries,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func (h *energyHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	entry, err := h.energyService.ByID(user.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (h *energyHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var input service.EntryInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, err)
		return
	}

	entry, err := h.energyService.Update(r.Context(), user.ID, r.PathValue("id"), input)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (h *energyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.energyService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "entry deleted"})
}

func (h *energyHandler) Recent(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	entries, err := h.energyService.Recent(user.ID, queryInt(r.URL.Query().Get("limit"), 5))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

func (h *energyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "30d"
	}

	stats, err := h.energyService.Stats(r.Context(), user.ID, period)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *energyHandler) Chart(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "30d"
	}

	chart, err := h.energyService.Chart(r.Context(), user.ID, period)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, chart)
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
