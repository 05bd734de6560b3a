package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"versus-backend/internal/domain"
	"versus-backend/internal/tally"
	"versus-backend/pkg/database"
)

// PostgresBattleRepository keeps one row per battle. Updates lock the row
// with SELECT ... FOR UPDATE, which serializes votes across processes.
type PostgresBattleRepository struct {
	db *database.PostgresDB
}

func NewPostgresBattleRepository(db *database.PostgresDB) *PostgresBattleRepository {
	return &PostgresBattleRepository{db: db}
}

const selectBattle = `
	SELECT seq, battle_id, name, options, votes, theme, version, created_at, updated_at
	FROM battles
`

func scanBattle(row pgx.Row) (*domain.Battle, error) {
	var (
		b                     domain.Battle
		options, votes, theme []byte
	)
	err := row.Scan(&b.Seq, &b.BattleID, &b.Name, &options, &votes, &theme, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &b.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options of %s: %w", b.BattleID, err)
	}
	b.Votes = make(map[string]domain.VoteRecord)
	if len(votes) > 0 {
		if err := json.Unmarshal(votes, &b.Votes); err != nil {
			return nil, fmt.Errorf("failed to decode votes of %s: %w", b.BattleID, err)
		}
	}
	if len(theme) > 0 {
		b.Theme = &domain.Theme{}
		if err := json.Unmarshal(theme, b.Theme); err != nil {
			return nil, fmt.Errorf("failed to decode theme of %s: %w", b.BattleID, err)
		}
	}
	return &b, nil
}

func (r *PostgresBattleRepository) Get(ctx context.Context, battleID string) (*domain.Battle, error) {
	return scanBattle(r.db.Pool.QueryRow(ctx, selectBattle+" WHERE battle_id = $1", battleID))
}

func (r *PostgresBattleRepository) Create(ctx context.Context, battle *domain.Battle) error {
	options, err := json.Marshal(battle.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if battle.Votes == nil {
		battle.Votes = make(map[string]domain.VoteRecord)
	}
	votes, err := json.Marshal(battle.Votes)
	if err != nil {
		return fmt.Errorf("failed to encode votes: %w", err)
	}

	query := `
		INSERT INTO battles (battle_id, name, options, votes, total_votes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at, updated_at
	`
	err = r.db.Pool.QueryRow(ctx, query, battle.BattleID, battle.Name, options, votes, tally.Total(battle.Options)).
		Scan(&battle.Seq, &battle.CreatedAt, &battle.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrBattleExists
	}
	if err != nil {
		return fmt.Errorf("failed to create battle: %w", err)
	}
	return nil
}

func (r *PostgresBattleRepository) Update(ctx context.Context, battleID string, fn UpdateFunc) (*domain.Battle, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	b, err := scanBattle(tx.QueryRow(ctx, selectBattle+" WHERE battle_id = $1 FOR UPDATE", battleID))
	if err != nil {
		return nil, err
	}

	changed, err := fn(b)
	if err != nil {
		return nil, err
	}
	if !changed {
		return b, tx.Commit(ctx)
	}

	options, err := json.Marshal(b.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	votes, err := json.Marshal(b.Votes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode votes: %w", err)
	}

	query := `
		UPDATE battles
		SET options = $2, votes = $3, total_votes = $4, version = version + 1, updated_at = NOW()
		WHERE battle_id = $1
		RETURNING version, updated_at
	`
	if err := tx.QueryRow(ctx, query, battleID, options, votes, tally.Total(b.Options)).Scan(&b.Version, &b.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update battle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit battle update: %w", err)
	}
	return b, nil
}

func (r *PostgresBattleRepository) SetTheme(ctx context.Context, battleID string, theme domain.Theme) error {
	data, err := json.Marshal(theme)
	if err != nil {
		return fmt.Errorf("failed to encode theme: %w", err)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE battles SET theme = $2, version = version + 1 WHERE battle_id = $1`, battleID, data)
	if err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBattleNotFound
	}
	return nil
}

func (r *PostgresBattleRepository) Delete(ctx context.Context, battleID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM battles WHERE battle_id = $1`, battleID)
	if err != nil {
		return fmt.Errorf("failed to delete battle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBattleNotFound
	}
	for _, table := range []string{"battle_comments", "battle_reactions"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE battle_id = $1", battleID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresBattleRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Battle, error) {
	exclude := q.ExcludeIDs
	if exclude == nil {
		exclude = []string{}
	}
	limit := any(nil)
	if q.Limit > 0 {
		limit = q.Limit
	}

	query := selectBattle + `
		WHERE NOT (battle_id = ANY($1))
		ORDER BY total_votes DESC, seq ASC
		OFFSET $2 LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, exclude, max(q.Skip, 0), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer rows.Close()

	battles := []*domain.Battle{}
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

func (r *PostgresBattleRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM battles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count battles: %w", err)
	}
	return n, nil
}
