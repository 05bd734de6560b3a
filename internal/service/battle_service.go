package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
	"versus-backend/internal/id"
	"versus-backend/internal/repository"
	"versus-backend/internal/tally"
	"versus-backend/pkg/logger"
)

const maxSlugAttempts = 5

// DefaultBattleID is seeded into an empty store.
const DefaultBattleID = "red-vs-blue"

type BattleService struct {
	ledger        *Ledger
	repo          repository.BattleRepository
	cache         *CacheService
	decoration    *DecorationService
	publisher     Publisher
	logger        *logger.Logger
	trendingLimit int
}

func NewBattleService(ledger *Ledger, repo repository.BattleRepository, cache *CacheService, decoration *DecorationService, publisher Publisher, trendingLimit int, log *logger.Logger) *BattleService {
	return &BattleService{
		ledger:        ledger,
		repo:          repo,
		cache:         cache,
		decoration:    decoration,
		publisher:     publisher,
		logger:        log.Component("battles"),
		trendingLimit: trendingLimit,
	}
}

func buildView(b *domain.Battle) domain.BattleView {
	theme := DefaultTheme
	if b.Theme != nil {
		theme = *b.Theme
	}
	return domain.BattleView{
		BattleID:   b.BattleID,
		Name:       b.Name,
		Options:    tally.Project(b.Options),
		TotalVotes: tally.Total(b.Options),
		Theme:      theme,
	}
}

func buildSummary(b *domain.Battle) domain.BattleSummary {
	refs := make([]domain.OptionRef, 0, len(b.Options))
	for _, opt := range b.Options {
		refs = append(refs, domain.OptionRef{ID: opt.ID, Name: opt.Name})
	}
	return domain.BattleSummary{
		BattleID:   b.BattleID,
		Name:       b.Name,
		TotalVotes: tally.Total(b.Options),
		Options:    refs,
	}
}

func buildUpdate(b *domain.Battle) domain.VoteUpdate {
	return domain.VoteUpdate{
		BattleID:   b.BattleID,
		Options:    tally.Project(b.Options),
		TotalVotes: tally.Total(b.Options),
	}
}

// GetOne serves from cache only when both the view and the device's vote
// hit; otherwise it reads the ledger and refills the cache.
func (s *BattleService) GetOne(ctx context.Context, battleID, deviceID string) (*domain.BattleView, error) {
	if view, ok := s.cache.GetView(ctx, battleID); ok {
		if deviceID == "" {
			return view, nil
		}
		if optionID, ok := s.cache.DeviceVote(ctx, battleID, deviceID); ok {
			view.UserVote = &optionID
			return view, nil
		}
	}

	b, err := s.ledger.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}

	view := buildView(b)
	s.cache.SetView(ctx, view, b.Version)
	if b.Theme == nil {
		s.decoration.UpgradeOnRead(b)
	}

	if optionID, ok := b.DeviceVote(deviceID); ok {
		view.UserVote = &optionID
		s.cache.RememberDeviceVote(ctx, battleID, deviceID, optionID, b.Version)
	}
	return &view, nil
}

// ListPaged returns battles ordered by total votes, ties in creation order.
func (s *BattleService) ListPaged(ctx context.Context, skip, limit int, excludeIDs []string) ([]domain.BattleSummary, error) {
	battles, err := s.repo.List(ctx, domain.ListQuery{Skip: skip, Limit: limit, ExcludeIDs: excludeIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}

	summaries := make([]domain.BattleSummary, 0, len(battles))
	for _, b := range battles {
		summaries = append(summaries, buildSummary(b))
	}
	return summaries, nil
}

// ListTrending returns the top battles by votes. Only the configured limit is cached.
func (s *BattleService) ListTrending(ctx context.Context, limit int) ([]domain.BattleSummary, error) {
	if limit <= 0 {
		limit = s.trendingLimit
	}
	cacheable := limit == s.trendingLimit

	if cacheable {
		if list, ok := s.cache.GetTrending(ctx, limit); ok {
			return list, nil
		}
	}

	list, err := s.ListPaged(ctx, 0, limit, nil)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.SetTrending(ctx, limit, list)
	}
	return list, nil
}

// Create stores a battle under "<slug>-<4 digits>", retrying on id collisions.
func (s *BattleService) Create(ctx context.Context, req domain.CreateBattleRequest) (*domain.CreateBattleResponse, error) {
	options := make([]domain.Option, 0, len(req.Options))
	for i, opt := range req.Options {
		options = append(options, domain.Option{ID: fmt.Sprintf("opt%d", i+1), Name: opt.Name})
	}

	var battle *domain.Battle
	for attempt := 1; ; attempt++ {
		battleID, err := id.BattleID(req.Name)
		if err != nil {
			return nil, err
		}

		battle = &domain.Battle{BattleID: battleID, Name: req.Name, Options: options}
		err = s.repo.Create(ctx, battle)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrBattleExists) || attempt == maxSlugAttempts {
			return nil, err
		}
		s.logger.Debug("Battle id collision, retrying", zap.String("battle_id", battleID))
	}

	s.cache.InvalidateBattle(ctx, battle.BattleID, s.trendingLimit, false)
	s.decoration.UpgradeOnRead(battle)

	s.logger.Info("Battle created",
		zap.String("battle_id", battle.BattleID),
		zap.Int("options", len(battle.Options)))

	return &domain.CreateBattleResponse{
		BattleID: battle.BattleID,
		Name:     battle.Name,
		Options:  battle.Options,
		Message:  "Battle created successfully",
	}, nil
}

// Vote applies a vote and, unless it was a NoOp, refreshes the cache and
// broadcasts the new counts. Neither step can fail the vote.
func (s *BattleService) Vote(ctx context.Context, battleID string, req domain.VoteRequest) (*domain.VoteResult, error) {
	result, err := s.ledger.ApplyVote(ctx, battleID, req.DeviceID, req.OptionID)
	if err != nil {
		return nil, err
	}
	if result.Outcome == domain.OutcomeNoOp {
		return result, nil
	}

	s.cache.RecordVote(ctx, battleID, req.DeviceID, req.OptionID, result.Battle.Version, s.trendingLimit)
	s.publisher.Publish(broadcast.NewEvent(broadcast.EventVoteUpdate, battleID, buildUpdate(result.Battle)))

	return result, nil
}

// Delete removes a battle and tells its room.
func (s *BattleService) Delete(ctx context.Context, battleID string) error {
	if err := s.repo.Delete(ctx, battleID); err != nil {
		return err
	}

	s.cache.InvalidateBattle(ctx, battleID, s.trendingLimit, true)
	s.publisher.Publish(broadcast.NewEvent(broadcast.EventBattleDeleted, battleID, map[string]string{"battleId": battleID}))

	s.logger.Info("Battle deleted", zap.String("battle_id", battleID))
	return nil
}

// Snapshot returns the full current state, sent to subscribers as they join.
func (s *BattleService) Snapshot(ctx context.Context, battleID string) (*domain.VoteUpdate, error) {
	b, err := s.ledger.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	update := buildUpdate(b)
	return &update, nil
}

// Meme returns captions for the battle's template.
func (s *BattleService) Meme(ctx context.Context, battleID string) (*domain.Meme, error) {
	b, err := s.ledger.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	meme := s.decoration.Meme(ctx, b)
	return &meme, nil
}

// EnsureDefaultBattle seeds the red-vs-blue battle into an empty store.
func (s *BattleService) EnsureDefaultBattle(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count battles: %w", err)
	}
	if n > 0 {
		return nil
	}

	battle := &domain.Battle{
		BattleID: DefaultBattleID,
		Name:     "Red Team vs Blue Team",
		Options: []domain.Option{
			{ID: "red", Name: "Red Team"},
			{ID: "blue", Name: "Blue Team"},
		},
	}
	if err := s.repo.Create(ctx, battle); err != nil && !errors.Is(err, domain.ErrBattleExists) {
		return fmt.Errorf("failed to seed default battle: %w", err)
	}

	s.logger.Info("Default battle created", zap.String("battle_id", DefaultBattleID))
	return nil
}

// HealthCheck verifies the store answers and the cache is reachable.
func (s *BattleService) HealthCheck(ctx context.Context) error {
	if _, err := s.repo.Count(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := s.cache.HealthCheck(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
