package service

import (
	"context"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
)

// Publisher delivers room events without blocking the caller.
type Publisher interface {
	Publish(evt broadcast.Event)
}

// BattleQueries defines the battle read and write operations used by the HTTP layer
type BattleQueries interface {
	// GetOne returns the projected view of a battle, with userVote for deviceID
	GetOne(ctx context.Context, battleID, deviceID string) (*domain.BattleView, error)

	// ListPaged returns one page of battle summaries by popularity
	ListPaged(ctx context.Context, skip, limit int, excludeIDs []string) ([]domain.BattleSummary, error)

	// ListTrending returns the most voted battles
	ListTrending(ctx context.Context, limit int) ([]domain.BattleSummary, error)

	// Create stores a new battle
	Create(ctx context.Context, req domain.CreateBattleRequest) (*domain.CreateBattleResponse, error)

	// Vote applies a device's vote and broadcasts the new counts
	Vote(ctx context.Context, battleID string, req domain.VoteRequest) (*domain.VoteResult, error)

	// Delete removes a battle
	Delete(ctx context.Context, battleID string) error

	// Snapshot returns the current vote_update payload for a battle
	Snapshot(ctx context.Context, battleID string) (*domain.VoteUpdate, error)

	// Meme returns captions for a battle
	Meme(ctx context.Context, battleID string) (*domain.Meme, error)

	// HealthCheck verifies the store and cache
	HealthCheck(ctx context.Context) error
}

// SocialRoom defines the chat and reaction operations of a battle room
type SocialRoom interface {
	ListComments(ctx context.Context, battleID string) ([]domain.Comment, error)
	PostComment(ctx context.Context, battleID string, req domain.CommentRequest) (*domain.Comment, error)
	PostReaction(ctx context.Context, battleID string, req domain.ReactionRequest) (*domain.Reaction, error)
}
