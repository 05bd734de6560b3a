package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by Mount.
type Handlers struct {
	Battle *BattleHandler
	Social *SocialHandler
	Stream *StreamHandler
}

// Mount registers the battle routes on r. writeLimit guards every write
// endpoint; nil disables it.
func (h *Handlers) Mount(r chi.Router, writeLimit func(http.Handler) http.Handler) {
	if writeLimit == nil {
		writeLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/battles", h.Battle.ListBattles)
	r.Get("/battles/trending", h.Battle.Trending)
	r.Get("/battles/{battleId}/comments", h.Social.ListComments)

	r.Get("/battle/{battleId}", h.Battle.GetBattle)
	r.Get("/battle/{battleId}/meme", h.Battle.Meme)
	r.Get("/battle/{battleId}/events", h.Stream.Stream)

	r.Group(func(r chi.Router) {
		r.Use(writeLimit)

		r.Post("/battles", h.Battle.CreateBattle)
		r.Post("/battle/{battleId}/vote", h.Battle.Vote)
		r.Delete("/battle/{battleId}", h.Battle.DeleteBattle)
		r.Post("/battles/{battleId}/comments", h.Social.PostComment)
		r.Post("/battles/{battleId}/reactions", h.Social.PostReaction)
	})
}
