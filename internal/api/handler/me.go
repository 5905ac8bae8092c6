package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/api/models"
	"github.com/greengig/greengig/internal/api/response"
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/user"
)

// RewardHandler handles user reward endpoints.
type RewardHandler struct {
	users   *user.Service
	engine  *reward.Engine
	catalog reward.Catalog
	log     zerolog.Logger
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(users *user.Service, engine *reward.Engine, catalog reward.Catalog, log zerolog.Logger) *RewardHandler {
	return &RewardHandler{users: users, engine: engine, catalog: catalog, log: log}
}

// GetMe handles GET /v1/me - the caller's points and badges.
func (h *RewardHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewUserProfile(u))
}

// AwardBadges handles POST /v1/users/{userId}/badges:award - reconcile
// badges with the current balance. Repeating it is a no-op.
func (h *RewardHandler) AwardBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !authorizeUser(w, r, userID) {
		return
	}

	awarded, err := h.engine.AwardBadges(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRewardSummary(u, awarded))
}

// ListRules handles GET /v1/rewards - the badge catalog.
func (h *RewardHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.catalog.ListRules(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if rules == nil {
		rules = []reward.Rule{}
	}
	response.JSON(w, r, http.StatusOK, models.RewardRuleList{Items: rules})
}
