// Package broadcast fans battle events out to the subscribers of each battle room.
package broadcast

import "time"

// EventType names a room event. It is also the SSE event name.
type EventType string

const (
	// EventConnected is sent once when a subscriber joins.
	EventConnected EventType = "connected"
	// EventVoteUpdate carries the full projected counts of a battle.
	EventVoteUpdate EventType = "vote_update"
	// EventChatMessage carries a new comment.
	EventChatMessage EventType = "chat:new_message"
	// EventReaction carries a new emoji reaction.
	EventReaction EventType = "battle:new_reaction"
	// EventBattleDeleted tells subscribers the battle no longer exists.
	EventBattleDeleted EventType = "battle:deleted"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message for a battle room. An empty BattleID addresses every room.
type Event struct {
	Type      EventType `json:"type"`
	BattleID  string    `json:"battleId,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event for battleID.
func NewEvent(t EventType, battleID string, data any) Event {
	return Event{Type: t, BattleID: battleID, Data: data, Timestamp: time.Now().UTC()}
}

// NewHeartbeatEvent creates a keepalive addressed to every room.
func NewHeartbeatEvent() Event {
	return NewEvent(EventHeartbeat, "", map[string]any{})
}
