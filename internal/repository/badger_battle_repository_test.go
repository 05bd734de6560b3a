package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versus-backend/internal/domain"
	"versus-backend/pkg/database"
)

func newTestStore(t *testing.T) *database.BadgerDB {
	t.Helper()
	db, err := database.NewBadgerDB(database.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestBattleRepo(t *testing.T) *BadgerBattleRepository {
	t.Helper()
	repo, err := NewBadgerBattleRepository(newTestStore(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleBattle(id string, votes ...int) *domain.Battle {
	b := &domain.Battle{BattleID: id, Name: id}
	for i, v := range votes {
		b.Options = append(b.Options, domain.Option{ID: string(rune('a' + i)), Name: string(rune('A' + i)), Votes: v})
	}
	return b
}

func TestBadgerBattleRepository_CreateAndGet(t *testing.T) {
	repo := newTestBattleRepo(t)
	ctx := context.Background()

	first := sampleBattle("first", 0, 0)
	second := sampleBattle("second", 0, 0)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	assert.Less(t, first.Seq, second.Seq)
	assert.False(t, first.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", got.BattleID)
	assert.Len(t, got.Options, 2)
	assert.NotNil(t, got.Votes)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBattleNotFound)

	err = repo.Create(ctx, sampleBattle("first", 0, 0))
	assert.ErrorIs(t, err, domain.ErrBattleExists)
}

func TestBadgerBattleRepository_Update(t *testing.T) {
	repo := newTestBattleRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleBattle("b", 0, 0)))

	t.Run("changed writes and bumps version", func(t *testing.T) {
		got, err := repo.Update(ctx, "b", func(b *domain.Battle) (bool, error) {
			b.Options[0].Votes++
			b.Votes["dev"] = domain.VoteRecord{OptionID: "a", ChangedAt: time.Now()}
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)

		stored, err := repo.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Options[0].Votes)
		assert.Equal(t, "a", stored.Votes["dev"].OptionID)
	})

	t.Run("unchanged skips the write", func(t *testing.T) {
		got, err := repo.Update(ctx, "b", func(b *domain.Battle) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("callback error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.Update(ctx, "b", func(b *domain.Battle) (bool, error) {
			b.Options[0].Votes = 100
			return true, boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := repo.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Options[0].Votes)
	})

	t.Run("missing battle", func(t *testing.T) {
		_, err := repo.Update(ctx, "nope", func(b *domain.Battle) (bool, error) { return true, nil })
		assert.ErrorIs(t, err, domain.ErrBattleNotFound)
	})
}

func TestBadgerBattleRepository_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	repo := newTestBattleRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleBattle("hot", 0, 0)))

	var mu sync.Mutex
	conflicts := 0
	repo.OnConflict = func() {
		mu.Lock()
		conflicts++
		mu.Unlock()
	}

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "hot", func(b *domain.Battle) (bool, error) {
				b.Options[0].Votes++
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, writers, stored.Options[0].Votes)
	assert.Equal(t, int64(writers), stored.Version)
	t.Logf("retried %d conflicting transactions", conflicts)
}

func TestBadgerBattleRepository_SetTheme(t *testing.T) {
	repo := newTestBattleRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleBattle("b", 3, 1)))

	theme := domain.Theme{OptionAColor: "#000", OptionBColor: "#fff", Background: "black"}
	require.NoError(t, repo.SetTheme(ctx, "b", theme))

	stored, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, stored.Theme)
	assert.Equal(t, theme, *stored.Theme)
	assert.Equal(t, 3, stored.Options[0].Votes)

	assert.ErrorIs(t, repo.SetTheme(ctx, "nope", theme), domain.ErrBattleNotFound)
}

func TestBadgerBattleRepository_Delete(t *testing.T) {
	db := newTestStore(t)
	repo, err := NewBadgerBattleRepository(db)
	require.NoError(t, err)
	defer repo.Close()
	comments := NewBadgerCommentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleBattle("gone", 0, 0)))
	require.NoError(t, comments.Add(ctx, &domain.Comment{ID: "c1", BattleID: "gone", Nickname: "n", CreatedAt: time.Now()}))

	require.NoError(t, repo.Delete(ctx, "gone"))

	_, err = repo.Get(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrBattleNotFound)
	recent, err := comments.Recent(ctx, "gone", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	assert.ErrorIs(t, repo.Delete(ctx, "gone"), domain.ErrBattleNotFound)
}

func TestBadgerBattleRepository_ListAndCount(t *testing.T) {
	repo := newTestBattleRepo(t)
	ctx := context.Background()

	// created in order: tie-a, popular, tie-b, empty
	require.NoError(t, repo.Create(ctx, sampleBattle("tie-a", 2, 1)))
	require.NoError(t, repo.Create(ctx, sampleBattle("popular", 5, 5)))
	require.NoError(t, repo.Create(ctx, sampleBattle("tie-b", 0, 3)))
	require.NoError(t, repo.Create(ctx, sampleBattle("empty", 0, 0)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ids := func(battles []*domain.Battle) []string {
		out := make([]string, 0, len(battles))
		for _, b := range battles {
			out = append(out, b.BattleID)
		}
		return out
	}

	all, err := repo.List(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"popular", "tie-a", "tie-b", "empty"}, ids(all))

	paged, err := repo.List(ctx, domain.ListQuery{Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-a", "tie-b"}, ids(paged))

	excluded, err := repo.List(ctx, domain.ListQuery{Limit: 2, ExcludeIDs: []string{"popular"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-a", "tie-b"}, ids(excluded))

	past, err := repo.List(ctx, domain.ListQuery{Skip: 10, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, past)
}
