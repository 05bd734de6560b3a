package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
	"versus-backend/pkg/logger"
)

const writeDeadline = 60 * time.Second

// Rooms is the subscription side of the broadcast hub.
type Rooms interface {
	Join(battleID string) (*broadcast.Subscriber, error)
	Leave(sub *broadcast.Subscriber)
}

// Snapshotter returns the current vote state sent to a joining subscriber.
type Snapshotter interface {
	Snapshot(ctx context.Context, battleID string) (*domain.VoteUpdate, error)
}

// StreamHandler serves a battle room over Server-Sent Events.
type StreamHandler struct {
	rooms   Rooms
	battles Snapshotter
	logger  *logger.Logger
}

func NewStreamHandler(rooms Rooms, battles Snapshotter, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		rooms:   rooms,
		battles: battles,
		logger:  log.Component("stream"),
	}
}

// Stream handles GET /battle/{battleId}/events. Connecting is the join: the
// client gets a connected event, then the full current state, then every
// room event until it disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	battleID := chi.URLParam(r, "battleId")

	if ctx.Err() != nil {
		return
	}

	// Unknown battles are rejected before switching to a stream.
	if _, err := h.battles.Snapshot(ctx, battleID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	sub, err := h.rooms.Join(battleID)
	if err != nil {
		h.logger.Error("Failed to join room", zap.String("battle_id", battleID), zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Live updates unavailable"})
		return
	}
	defer h.rooms.Leave(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	log := h.logger.With(zap.String("battle_id", battleID), zap.String("subscriber_id", sub.ID))

	connected := broadcast.NewEvent(broadcast.EventConnected, battleID, map[string]string{"subscriberId": sub.ID})
	if err := h.send(rc, w, connected); err != nil {
		log.Warn("Failed to send connected event", zap.Error(err))
		return
	}

	// The snapshot is read after joining so no update between the two is lost.
	snapshot, err := h.battles.Snapshot(ctx, battleID)
	if err != nil {
		log.Warn("Failed to load snapshot", zap.Error(err))
		return
	}
	if err := h.send(rc, w, broadcast.NewEvent(broadcast.EventVoteUpdate, battleID, snapshot)); err != nil {
		return
	}

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				log.Debug("Room closed")
				return
			}
			if err := h.send(rc, w, evt); err != nil {
				log.Debug("Client disconnected during send")
				return
			}
			if evt.Type == broadcast.EventBattleDeleted {
				return
			}
		case <-ctx.Done():
			log.Debug("Client disconnected")
			return
		}
	}
}

func (h *StreamHandler) send(rc *http.ResponseController, w http.ResponseWriter, evt broadcast.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = rc.SetWriteDeadline(time.Now().Add(writeDeadline))
	return nil
}
