package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"versus-backend/internal/domain"
	"versus-backend/internal/metrics"
	"versus-backend/internal/repository"
	"versus-backend/internal/tally"
	"versus-backend/pkg/logger"
)

// Ledger is the single writer of vote state. Votes on one battle are
// serialized in-process by a per-battle lock and across processes by the
// repository's atomic update.
type Ledger struct {
	repo    repository.BattleRepository
	locks   *keyedMutex
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewLedger(repo repository.BattleRepository, m *metrics.Metrics, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:    repo,
		locks:   newKeyedMutex(),
		metrics: m,
		logger:  log.Component("ledger"),
		now:     time.Now,
	}
}

// GetBattle returns the current battle state or domain.ErrBattleNotFound.
func (l *Ledger) GetBattle(ctx context.Context, battleID string) (*domain.Battle, error) {
	return l.repo.Get(ctx, battleID)
}

// ApplyVote records deviceID's choice of optionID. The transition is decided
// inside the repository update, so a retried transaction re-derives it from
// fresh state. A NoOp performs no write.
func (l *Ledger) ApplyVote(ctx context.Context, battleID, deviceID, optionID string) (*domain.VoteResult, error) {
	unlock := l.locks.Lock(battleID)
	defer unlock()

	var outcome domain.VoteOutcome
	battle, err := l.repo.Update(ctx, battleID, func(b *domain.Battle) (bool, error) {
		d, err := tally.Decide(b.Votes, deviceID, optionID, b.Options)
		if err != nil {
			return false, err
		}
		outcome = d.Outcome
		if d.Outcome == domain.OutcomeNoOp {
			return false, nil
		}

		if tally.Apply(b, d, l.now().UTC()) {
			l.logger.Warn("Vote counter underflow clamped at zero",
				zap.String("battle_id", battleID),
				zap.String("option_id", d.From))
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Votes.WithLabelValues(string(outcome)).Inc()
	l.logger.Debug("Vote applied",
		zap.String("battle_id", battleID),
		zap.String("outcome", string(outcome)))

	return &domain.VoteResult{Outcome: outcome, Battle: battle}, nil
}
