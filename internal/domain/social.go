package domain

import "time"

// Comment is a chat message posted in a battle room.
type Comment struct {
	ID          string    `json:"id"`
	BattleID    string    `json:"battleId"`
	Fingerprint string    `json:"fingerprint"`
	Nickname    string    `json:"nickname"`
	Team        string    `json:"team,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Reaction is an emoji burst sent to a battle room.
type Reaction struct {
	ID          string    `json:"id"`
	BattleID    string    `json:"battleId"`
	OptionID    string    `json:"optionId,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MaxCommentLength is the longest accepted comment body, in characters.
const MaxCommentLength = 200

// CommentRequest is the body of POST /battles/{id}/comments.
type CommentRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Nickname    string `json:"nickname"`
}

// ReactionRequest is the body of POST /battles/{id}/reactions.
type ReactionRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required"`
	Type        string `json:"type" validate:"required"`
	OptionID    string `json:"optionId"`
}
