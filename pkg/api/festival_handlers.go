package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

// MaxDescriptionLength bounds festival and performance descriptions, in characters
const MaxDescriptionLength = 2000

// FestivalHandlers handles festival endpoints
type FestivalHandlers struct {
	store  FestivalStore
	logger *observability.Logger
}

// NewFestivalHandlers creates a new festival handlers instance
func NewFestivalHandlers(store FestivalStore, logger *observability.Logger) *FestivalHandlers {
	return &FestivalHandlers{store: store, logger: logger}
}

// RegisterRoutes registers festival routes
func (h *FestivalHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/festivals", h.listFestivals).Methods(http.MethodGet)
	router.HandleFunc("/api/festivals", h.createFestival).Methods(http.MethodPost)
	router.HandleFunc("/api/festivals/{id:[0-9]+}", h.getFestival).Methods(http.MethodGet)
}

// CreateFestivalRequest is the body of POST /api/festivals
type CreateFestivalRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Venue       string `json:"venue"`
	State       string `json:"state,omitempty"`
	StartDate   Date   `json:"startDate"`
	EndDate     Date   `json:"endDate"`
}

// Validators checks the request in the order errors are reported
func (req CreateFestivalRequest) Validators() []httputil.Validator {
	return []httputil.Validator{
		httputil.RequireNonBlank(req.Name, "Festival name"),
		httputil.RequireNonBlank(req.Venue, "Venue"),
		httputil.Check(!req.StartDate.IsZero(), "Start date is required"),
		httputil.Check(!req.EndDate.IsZero(), "End date is required"),
		httputil.Check(!req.StartDate.After(req.EndDate.Time), "Start date must not be after end date"),
		descriptionLength(req.Description),
	}
}

func descriptionLength(description string) httputil.Validator {
	return httputil.Check(utf8.RuneCountInString(description) <= MaxDescriptionLength,
		fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
}

// createFestival handles POST /api/festivals
func (h *FestivalHandlers) createFestival(w http.ResponseWriter, r *http.Request) {
	var req CreateFestivalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, req.Validators()...) {
		return
	}

	festival := &Festival{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Venue:       strings.TrimSpace(req.Venue),
		State:       ParseFestivalState(req.State),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := h.store.Create(r.Context(), festival); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httputil.WriteConflict(w, "Festival name already exists")
			return
		}
		requestLogger(r, h.logger).WithError(err).Error("Failed to create festival")
		httputil.WriteInternalError(w, "Failed to create festival.")
		return
	}

	httputil.WriteCreatedAt(w, fmt.Sprintf("/api/festivals/%d", festival.ID), festival)
}

// listFestivals handles GET /api/festivals
func (h *FestivalHandlers) listFestivals(w http.ResponseWriter, r *http.Request) {
	page, size := httputil.ParsePageRequest(r, defaultPageSize, maxPageSize)
	req := PageRequest{Page: page, Size: size}
	query := strings.TrimSpace(httputil.ParseQueryString(r, "q", ""))

	var (
		festivals []*Festival
		total     int64
		err       error
	)
	if query != "" {
		festivals, total, err = h.store.Search(r.Context(), query, req)
	} else {
		festivals, total, err = h.store.List(r.Context(), req)
	}
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to fetch festivals")
		httputil.WriteInternalError(w, "Failed to fetch festivals.")
		return
	}

	httputil.WriteSuccess(w, NewPage(festivals, req, total))
}

// getFestival handles GET /api/festivals/{id}
func (h *FestivalHandlers) getFestival(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	festival, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "Festival not found")
			return
		}
		requestLogger(r, h.logger).WithError(err).WithField("festival_id", id).Error("Failed to fetch festival")
		httputil.WriteInternalError(w, "Failed to fetch festival.")
		return
	}

	httputil.WriteSuccess(w, festival)
}
