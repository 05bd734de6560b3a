package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
	"versus-backend/internal/generator"
	"versus-backend/internal/metrics"
	"versus-backend/internal/repository"
	"versus-backend/pkg/database"
	"versus-backend/pkg/logger"
	"versus-backend/pkg/redis"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(evt broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) ofType(t broadcast.EventType) []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.Event
	for _, evt := range p.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	if len(g.responses) > 0 {
		return g.responses[len(g.responses)-1], nil
	}
	return "", nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	repos      *repository.Repositories
	battleRepo *repository.BadgerBattleRepository
	cache      *CacheService
	miniredis  *miniredis.Miniredis
	ledger     *Ledger
	decoration *DecorationService
	publisher  *recordingPublisher
	battles    *BattleService
	social     *SocialService
	metrics    *metrics.Metrics
}

type envOption func(*envConfig)

type envConfig struct {
	withRedis bool
	gen       *fakeGenerator
}

func withRedis() envOption { return func(c *envConfig) { c.withRedis = true } }

func withGenerator(g *fakeGenerator) envOption { return func(c *envConfig) { c.gen = g } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.NewNop()
	m := metrics.NewNop()

	db, err := database.NewBadgerDB(database.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	battleRepo, err := repository.NewBadgerBattleRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = battleRepo.Close() })

	repos := &repository.Repositories{
		Battle:   battleRepo,
		Comment:  repository.NewBadgerCommentRepository(db),
		Reaction: repository.NewBadgerReactionRepository(db),
	}

	env := &testEnv{repos: repos, battleRepo: battleRepo, metrics: m, publisher: &recordingPublisher{}}

	var client *redis.Client
	if cfg.withRedis {
		env.miniredis = miniredis.RunT(t)
		client, err = redis.NewClient("redis://"+env.miniredis.Addr(), "test", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
	}
	env.cache = NewCacheService(client, log)

	var gen generator.TextGenerator
	if cfg.gen != nil {
		gen = cfg.gen
	}
	env.decoration = NewDecorationService(gen, battleRepo, env.cache, RetrySettings{MaxAttempts: 2}, m, log)
	t.Cleanup(env.decoration.Close)

	env.ledger = NewLedger(battleRepo, m, log)
	env.battles = NewBattleService(env.ledger, battleRepo, env.cache, env.decoration, env.publisher, 5, log)
	env.social = NewSocialService(repos, env.publisher, log)
	return env
}

func (e *testEnv) createBattle(t *testing.T, name string, options ...string) string {
	t.Helper()
	req := domain.CreateBattleRequest{Name: name}
	for _, opt := range options {
		req.Options = append(req.Options, domain.OptionInput{Name: opt})
	}
	resp, err := e.battles.Create(context.Background(), req)
	require.NoError(t, err)
	e.decoration.Wait()
	return resp.BattleID
}
