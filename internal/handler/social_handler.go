package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"versus-backend/internal/domain"
	"versus-backend/internal/service"
	"versus-backend/internal/validation"
	"versus-backend/pkg/logger"
)

type SocialHandler struct {
	social    service.SocialRoom
	validator *validation.Validator
	logger    *logger.Logger
}

func NewSocialHandler(social service.SocialRoom, validator *validation.Validator, log *logger.Logger) *SocialHandler {
	return &SocialHandler{
		social:    social,
		validator: validator,
		logger:    log.Component("social_handler"),
	}
}

// ListComments handles GET /battles/{battleId}/comments
func (h *SocialHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.social.ListComments(r.Context(), chi.URLParam(r, "battleId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}

	respondJSON(w, http.StatusOK, comments)
}

// PostComment handles POST /battles/{battleId}/comments
func (h *SocialHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	var req domain.CommentRequest
	if err := decodeJSON(r, w, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	comment, err := h.social.PostComment(r.Context(), chi.URLParam(r, "battleId"), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

// PostReaction handles POST /battles/{battleId}/reactions
func (h *SocialHandler) PostReaction(w http.ResponseWriter, r *http.Request) {
	var req domain.ReactionRequest
	if err := decodeJSON(r, w, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	reaction, err := h.social.PostReaction(r.Context(), chi.URLParam(r, "battleId"), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, reaction)
}
