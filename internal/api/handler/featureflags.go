package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/api/middleware"
	"github.com/greengig/greengig/internal/api/models"
	"github.com/greengig/greengig/internal/api/response"
	"github.com/greengig/greengig/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	log     zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, log zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, log: log}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.flagList(r))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "at least one update is required", []models.FieldError{
			{Field: "updates", Message: "must not be empty", Code: "REQUIRED"},
		})
		return
	}

	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	var fieldErrs []models.FieldError
	for _, u := range req.Updates {
		key := strings.TrimSpace(u.Key)
		if key == "" {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "updates.key", Message: "must not be empty", Code: "REQUIRED"})
			continue
		}
		flags = append(flags, &featureflags.Flag{Key: key, Value: u.Value})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid flag update", fieldErrs)
		return
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info().
		Str("reviewer_id", middleware.GetUserID(r.Context())).
		Int("count", len(flags)).
		Str("reason", req.Reason).
		Msg("feature flags changed")

	response.JSON(w, r, http.StatusOK, h.flagList(r))
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate - drop cached flags.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func (h *FeatureFlagsHandler) flagList(r *http.Request) featureflags.FlagList {
	all := h.service.GetAllFlags(r.Context())
	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	return list
}
