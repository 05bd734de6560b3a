package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"versus-backend/internal/domain"
	"versus-backend/pkg/database"
)

func commentPrefix(battleID string) string {
	return "comment:" + battleID + ":"
}

func reactionPrefix(battleID string) string {
	return "reaction:" + battleID + ":"
}

// Timestamps are zero padded so keys sort chronologically.
func timeOrderedKey(prefix string, unixNano int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefix, unixNano, id))
}

type BadgerCommentRepository struct {
	db *database.BadgerDB
}

func NewBadgerCommentRepository(db *database.BadgerDB) *BadgerCommentRepository {
	return &BadgerCommentRepository{db: db}
}

func (r *BadgerCommentRepository) Add(ctx context.Context, comment *domain.Comment) error {
	data, err := json.Marshal(comment)
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}
	key := timeOrderedKey(commentPrefix(comment.BattleID), comment.CreatedAt.UnixNano(), comment.ID)
	return r.db.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// scan visits comments newest first until visit returns false
func (r *BadgerCommentRepository) scan(battleID string, visit func(c domain.Comment) bool) error {
	return r.db.DB.View(func(txn *badger.Txn) error {
		prefix := []byte(commentPrefix(battleID))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last key under prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			var c domain.Comment
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("failed to decode comment: %w", err)
			}
			if !visit(c) {
				return nil
			}
		}
		return nil
	})
}

func (r *BadgerCommentRepository) Recent(ctx context.Context, battleID string, limit int) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	err := r.scan(battleID, func(c domain.Comment) bool {
		comments = append(comments, c)
		return limit <= 0 || len(comments) < limit
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *BadgerCommentRepository) NicknameTaken(ctx context.Context, battleID, nickname, fingerprint string) (bool, error) {
	taken := false
	err := r.scan(battleID, func(c domain.Comment) bool {
		if c.Fingerprint != fingerprint && strings.EqualFold(c.Nickname, nickname) {
			taken = true
			return false
		}
		return true
	})
	return taken, err
}

type BadgerReactionRepository struct {
	db *database.BadgerDB
}

func NewBadgerReactionRepository(db *database.BadgerDB) *BadgerReactionRepository {
	return &BadgerReactionRepository{db: db}
}

func (r *BadgerReactionRepository) Add(ctx context.Context, reaction *domain.Reaction) error {
	data, err := json.Marshal(reaction)
	if err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}
	key := timeOrderedKey(reactionPrefix(reaction.BattleID), reaction.CreatedAt.UnixNano(), reaction.ID)
	return r.db.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
