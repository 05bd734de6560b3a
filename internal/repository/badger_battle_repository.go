package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"versus-backend/internal/domain"
	"versus-backend/internal/tally"
	"versus-backend/pkg/database"
)

const (
	battlePrefix   = "battle:"
	battleSeqKey   = "seq:battle"
	maxTxnAttempts = 32
)

// BadgerBattleRepository stores battles as JSON documents keyed by id.
// Updates are optimistic transactions retried on conflict.
type BadgerBattleRepository struct {
	db  *database.BadgerDB
	seq *badger.Sequence

	// OnConflict is called each time a transaction is retried
	OnConflict func()
	now        func() time.Time
}

func NewBadgerBattleRepository(db *database.BadgerDB) (*BadgerBattleRepository, error) {
	seq, err := db.DB.GetSequence([]byte(battleSeqKey), 100)
	if err != nil {
		return nil, fmt.Errorf("failed to open battle sequence: %w", err)
	}
	return &BadgerBattleRepository{db: db, seq: seq, now: time.Now}, nil
}

// Close releases the leased sequence range
func (r *BadgerBattleRepository) Close() error {
	return r.seq.Release()
}

func battleKey(id string) []byte {
	return []byte(battlePrefix + id)
}

func readBattle(txn *badger.Txn, id string) (*domain.Battle, error) {
	item, err := txn.Get(battleKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}

	var b domain.Battle
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &b)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode battle %s: %w", id, err)
	}
	if b.Votes == nil {
		b.Votes = make(map[string]domain.VoteRecord)
	}
	return &b, nil
}

func writeBattle(txn *badger.Txn, b *domain.Battle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode battle %s: %w", b.BattleID, err)
	}
	return txn.Set(battleKey(b.BattleID), data)
}

// retry runs fn in a read-write transaction until it commits without conflict
func (r *BadgerBattleRepository) retry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.db.DB.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if r.OnConflict != nil {
			r.OnConflict()
		}
	}
	return badger.ErrConflict
}

func (r *BadgerBattleRepository) Get(ctx context.Context, battleID string) (*domain.Battle, error) {
	var b *domain.Battle
	err := r.db.DB.View(func(txn *badger.Txn) error {
		var err error
		b, err = readBattle(txn, battleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BadgerBattleRepository) Create(ctx context.Context, battle *domain.Battle) error {
	seq, err := r.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate battle sequence: %w", err)
	}

	now := r.now().UTC()
	battle.Seq = int64(seq) + 1
	battle.CreatedAt = now
	battle.UpdatedAt = now
	if battle.Votes == nil {
		battle.Votes = make(map[string]domain.VoteRecord)
	}

	return r.retry(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(battleKey(battle.BattleID))
		if err == nil {
			return domain.ErrBattleExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeBattle(txn, battle)
	})
}

func (r *BadgerBattleRepository) Update(ctx context.Context, battleID string, fn UpdateFunc) (*domain.Battle, error) {
	var result *domain.Battle
	err := r.retry(ctx, func(txn *badger.Txn) error {
		b, err := readBattle(txn, battleID)
		if err != nil {
			return err
		}

		changed, err := fn(b)
		if err != nil {
			return err
		}
		if changed {
			b.Version++
			b.UpdatedAt = r.now().UTC()
			if err := writeBattle(txn, b); err != nil {
				return err
			}
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BadgerBattleRepository) SetTheme(ctx context.Context, battleID string, theme domain.Theme) error {
	return r.retry(ctx, func(txn *badger.Txn) error {
		b, err := readBattle(txn, battleID)
		if err != nil {
			return err
		}
		b.Theme = &theme
		b.Version++
		return writeBattle(txn, b)
	})
}

func (r *BadgerBattleRepository) Delete(ctx context.Context, battleID string) error {
	return r.retry(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(battleKey(battleID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrBattleNotFound
			}
			return err
		}
		if err := txn.Delete(battleKey(battleID)); err != nil {
			return err
		}
		for _, prefix := range []string{commentPrefix(battleID), reactionPrefix(battleID)} {
			if err := deletePrefix(txn, []byte(prefix)); err != nil {
				return err
			}
		}
		return nil
	})
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (r *BadgerBattleRepository) all() ([]*domain.Battle, error) {
	var battles []*domain.Battle
	err := r.db.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(battlePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var b domain.Battle
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("failed to decode battle: %w", err)
			}
			battles = append(battles, &b)
		}
		return nil
	})
	return battles, err
}

func (r *BadgerBattleRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Battle, error) {
	battles, err := r.all()
	if err != nil {
		return nil, err
	}

	if len(q.ExcludeIDs) > 0 {
		battles = slices.DeleteFunc(battles, func(b *domain.Battle) bool {
			return slices.Contains(q.ExcludeIDs, b.BattleID)
		})
	}
	SortByPopularity(battles)

	return page(battles, q.Skip, q.Limit), nil
}

func (r *BadgerBattleRepository) Count(ctx context.Context) (int, error) {
	n := 0
	err := r.db.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(battlePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// SortByPopularity orders battles by total votes desc, then creation order asc
func SortByPopularity(battles []*domain.Battle) {
	slices.SortStableFunc(battles, func(a, b *domain.Battle) int {
		if ta, tb := tally.Total(a.Options), tally.Total(b.Options); ta != tb {
			return tb - ta
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
