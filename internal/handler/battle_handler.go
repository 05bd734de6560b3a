package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"versus-backend/internal/domain"
	"versus-backend/internal/service"
	"versus-backend/internal/validation"
	"versus-backend/pkg/logger"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

type BattleHandler struct {
	battles       service.BattleQueries
	validator     *validation.Validator
	logger        *logger.Logger
	trendingLimit int
}

func NewBattleHandler(battles service.BattleQueries, validator *validation.Validator, trendingLimit int, log *logger.Logger) *BattleHandler {
	return &BattleHandler{
		battles:       battles,
		validator:     validator,
		logger:        log.Component("battle_handler"),
		trendingLimit: trendingLimit,
	}
}

// GetBattle handles GET /battle/{battleId}?deviceId=
func (h *BattleHandler) GetBattle(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "battleId")
	deviceID := r.URL.Query().Get("deviceId")

	view, err := h.battles.GetOne(r.Context(), battleID, deviceID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondCached(w, r, view)
}

// Vote handles POST /battle/{battleId}/vote
func (h *BattleHandler) Vote(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "battleId")

	var req domain.VoteRequest
	if err := decodeJSON(r, w, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.battles.Vote(r.Context(), battleID, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if result.Outcome == domain.OutcomeNoOp {
		respondMessage(w, http.StatusOK, domain.AlreadyVotedMessage)
		return
	}
	respondJSON(w, http.StatusOK, domain.VoteResponse{Success: true, OptionID: req.OptionID})
}

// ListBattles handles GET /battles?page=&limit=&excludeIds=
func (h *BattleHandler) ListBattles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePositive(q.Get("page"), 1)
	limit := min(parsePositive(q.Get("limit"), defaultPageLimit), maxPageLimit)

	var excludeIDs []string
	for _, id := range strings.Split(q.Get("excludeIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			excludeIDs = append(excludeIDs, id)
		}
	}

	list, err := h.battles.ListPaged(r.Context(), pageOffset(page, limit), limit, excludeIDs)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// Trending handles GET /battles/trending
func (h *BattleHandler) Trending(w http.ResponseWriter, r *http.Request) {
	list, err := h.battles.ListTrending(r.Context(), h.trendingLimit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondCached(w, r, list)
}

// CreateBattle handles POST /battles
func (h *BattleHandler) CreateBattle(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBattleRequest
	if err := decodeJSON(r, w, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	for i := range req.Options {
		req.Options[i].Name = strings.TrimSpace(req.Options[i].Name)
	}
	if err := h.validator.Validate(&req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.battles.Create(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// DeleteBattle handles DELETE /battle/{battleId}
func (h *BattleHandler) DeleteBattle(w http.ResponseWriter, r *http.Request) {
	if err := h.battles.Delete(r.Context(), chi.URLParam(r, "battleId")); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Battle deleted")
}

// Meme handles GET /battle/{battleId}/meme
func (h *BattleHandler) Meme(w http.ResponseWriter, r *http.Request) {
	meme, err := h.battles.Meme(r.Context(), chi.URLParam(r, "battleId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, meme)
}

// pageOffset converts a 1-based page to a skip count, saturating instead of
// overflowing so far pages come back empty.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func parsePositive(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
