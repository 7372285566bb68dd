package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

// PerformanceHandlers handles performance endpoints
type PerformanceHandlers struct {
	performances PerformanceStore
	festivals    FestivalStore
	logger       *observability.Logger
}

// NewPerformanceHandlers creates a new performance handlers instance
func NewPerformanceHandlers(performances PerformanceStore, festivals FestivalStore, logger *observability.Logger) *PerformanceHandlers {
	return &PerformanceHandlers{
		performances: performances,
		festivals:    festivals,
		logger:       logger,
	}
}

// RegisterRoutes registers performance routes
func (h *PerformanceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/festivals/{id:[0-9]+}/performances", h.listPerformances).Methods(http.MethodGet)
	router.HandleFunc("/api/festivals/{id:[0-9]+}/performances", h.createPerformance).Methods(http.MethodPost)
	router.HandleFunc("/api/performances/{id:[0-9]+}", h.getPerformance).Methods(http.MethodGet)
}

// CreatePerformanceRequest is the body of POST /api/festivals/{id}/performances
type CreatePerformanceRequest struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	Genre                 string   `json:"genre"`
	Duration              int      `json:"duration"`
	BandMembers           []string `json:"bandMembers,omitempty"`
	Setlist               []string `json:"setlist,omitempty"`
	MerchandiseItems      []string `json:"merchandiseItems,omitempty"`
	TechnicalRequirements []string `json:"technicalRequirements,omitempty"`

	PreferredRehearsalTimes   []time.Time `json:"preferredRehearsalTimes,omitempty"`
	PreferredPerformanceSlots []time.Time `json:"preferredPerformanceSlots,omitempty"`
}

// Validators checks the request in the order errors are reported
func (req CreatePerformanceRequest) Validators() []httputil.Validator {
	return []httputil.Validator{
		httputil.RequireNonBlank(req.Name, "Performance name"),
		httputil.RequireNonBlank(req.Genre, "Genre"),
		httputil.Check(req.Duration > 0, "Duration must be a positive number of minutes"),
		descriptionLength(req.Description),
	}
}

// festivalOr404 loads the festival named by the id path variable, writing
// the error response itself when it cannot.
func (h *PerformanceHandlers) festivalOr404(w http.ResponseWriter, r *http.Request) (*Festival, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	festival, err := h.festivals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "Festival not found")
			return nil, false
		}
		requestLogger(r, h.logger).WithError(err).WithField("festival_id", id).Error("Failed to fetch festival")
		httputil.WriteInternalError(w, "Failed to fetch festival.")
		return nil, false
	}
	return festival, true
}

// listPerformances handles GET /api/festivals/{id}/performances
func (h *PerformanceHandlers) listPerformances(w http.ResponseWriter, r *http.Request) {
	festival, ok := h.festivalOr404(w, r)
	if !ok {
		return
	}

	page, size := httputil.ParsePageRequest(r, defaultPageSize, maxPageSize)
	req := PageRequest{Page: page, Size: size}
	performances, total, err := h.performances.ListByFestival(r.Context(), festival.ID, req)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).WithField("festival_id", festival.ID).Error("Failed to fetch performances")
		httputil.WriteInternalError(w, "Failed to fetch performances.")
		return
	}

	httputil.WriteSuccess(w, NewPage(performances, req, total))
}

// createPerformance handles POST /api/festivals/{id}/performances. The
// authenticated user becomes the main artist.
func (h *PerformanceHandlers) createPerformance(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.CurrentUser(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	festival, ok := h.festivalOr404(w, r)
	if !ok {
		return
	}

	var req CreatePerformanceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, req.Validators()...) {
		return
	}

	performance := &Performance{
		FestivalID:            festival.ID,
		Name:                  strings.TrimSpace(req.Name),
		Description:           req.Description,
		Genre:                 strings.TrimSpace(req.Genre),
		Duration:              req.Duration,
		Status:                PerformanceCreated,
		MainArtist:            current.Username,
		BandMembers:           req.BandMembers,
		Setlist:               req.Setlist,
		MerchandiseItems:      req.MerchandiseItems,
		TechnicalRequirements: req.TechnicalRequirements,

		PreferredRehearsalTimes:   utcTimes(req.PreferredRehearsalTimes),
		PreferredPerformanceSlots: utcTimes(req.PreferredPerformanceSlots),
	}
	if err := h.performances.Create(r.Context(), performance); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			httputil.WriteConflict(w, "Performance name already exists for this festival")
		case errors.Is(err, storage.ErrNotFound):
			// festival removed between the lookup and the insert
			httputil.WriteNotFoundError(w, "Festival not found")
		default:
			requestLogger(r, h.logger).WithError(err).WithField("festival_id", festival.ID).Error("Failed to create performance")
			httputil.WriteInternalError(w, "Failed to create performance.")
		}
		return
	}

	httputil.WriteCreatedAt(w, fmt.Sprintf("/api/performances/%d", performance.ID), performance)
}

// utcTimes normalizes slot timestamps so they compare equal after a round trip
func utcTimes(times []time.Time) []time.Time {
	if times == nil {
		return nil
	}
	out := make([]time.Time, len(times))
	for i, t := range times {
		out[i] = t.UTC()
	}
	return out
}

// getPerformance handles GET /api/performances/{id}
func (h *PerformanceHandlers) getPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	performance, err := h.performances.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "Performance not found")
			return
		}
		requestLogger(r, h.logger).WithError(err).WithField("performance_id", id).Error("Failed to fetch performance")
		httputil.WriteInternalError(w, "Failed to fetch performance.")
		return
	}

	httputil.WriteSuccess(w, performance)
}
