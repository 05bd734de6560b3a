package repository

import (
	"context"
	"fmt"

	"versus-backend/internal/domain"
	"versus-backend/pkg/database"
)

type PostgresCommentRepository struct {
	db *database.PostgresDB
}

func NewPostgresCommentRepository(db *database.PostgresDB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

func (r *PostgresCommentRepository) Add(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO battle_comments (id, battle_id, fingerprint, nickname, team, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query, c.ID, c.BattleID, c.Fingerprint, c.Nickname, c.Team, c.Content, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *PostgresCommentRepository) Recent(ctx context.Context, battleID string, limit int) ([]domain.Comment, error) {
	query := `
		SELECT id, battle_id, fingerprint, nickname, team, content, created_at
		FROM battle_comments
		WHERE battle_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, battleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.BattleID, &c.Fingerprint, &c.Nickname, &c.Team, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *PostgresCommentRepository) NicknameTaken(ctx context.Context, battleID, nickname, fingerprint string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM battle_comments
			WHERE battle_id = $1 AND LOWER(nickname) = LOWER($2) AND fingerprint <> $3
		)
	`
	var taken bool
	if err := r.db.Pool.QueryRow(ctx, query, battleID, nickname, fingerprint).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check nickname: %w", err)
	}
	return taken, nil
}

type PostgresReactionRepository struct {
	db *database.PostgresDB
}

func NewPostgresReactionRepository(db *database.PostgresDB) *PostgresReactionRepository {
	return &PostgresReactionRepository{db: db}
}

func (r *PostgresReactionRepository) Add(ctx context.Context, re *domain.Reaction) error {
	query := `
		INSERT INTO battle_reactions (id, battle_id, option_id, fingerprint, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query, re.ID, re.BattleID, re.OptionID, re.Fingerprint, re.Type, re.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reaction: %w", err)
	}
	return nil
}
