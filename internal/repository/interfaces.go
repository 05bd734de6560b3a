package repository

import (
	"context"

	"versus-backend/internal/domain"
)

// UpdateFunc mutates a freshly read battle. It returns false when nothing
// changed, in which case the repository skips the write. It may run more
// than once when the store retries a conflicting transaction.
type UpdateFunc func(b *domain.Battle) (changed bool, err error)

// BattleRepository defines the interface for battle persistence
type BattleRepository interface {
	// Get retrieves a battle by id, or domain.ErrBattleNotFound
	Get(ctx context.Context, battleID string) (*domain.Battle, error)

	// Create stores a new battle and assigns its creation sequence
	Create(ctx context.Context, battle *domain.Battle) error

	// Update runs fn atomically against the current state of one battle
	Update(ctx context.Context, battleID string, fn UpdateFunc) (*domain.Battle, error)

	// SetTheme stores the decoration theme without touching votes
	SetTheme(ctx context.Context, battleID string, theme domain.Theme) error

	// Delete removes a battle and its social data
	Delete(ctx context.Context, battleID string) error

	// List returns battles ordered by total votes desc, then creation order asc
	List(ctx context.Context, q domain.ListQuery) ([]*domain.Battle, error)

	// Count returns the number of stored battles
	Count(ctx context.Context) (int, error)
}

// CommentRepository defines the interface for battle chat storage
type CommentRepository interface {
	// Add stores a comment
	Add(ctx context.Context, comment *domain.Comment) error

	// Recent returns up to limit comments, newest first
	Recent(ctx context.Context, battleID string, limit int) ([]domain.Comment, error)

	// NicknameTaken reports whether another fingerprint already used nickname
	// in the battle, compared case-insensitively
	NicknameTaken(ctx context.Context, battleID, nickname, fingerprint string) (bool, error)
}

// ReactionRepository defines the interface for reaction storage
type ReactionRepository interface {
	Add(ctx context.Context, reaction *domain.Reaction) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Battle   BattleRepository
	Comment  CommentRepository
	Reaction ReactionRepository
}
