package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versus-backend/internal/domain"
	"versus-backend/internal/tally"
)

func TestLedger_ApplyVote_Outcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createBattle(t, "A vs B", "A", "B")

	res, err := env.ledger.ApplyVote(ctx, id, "d1", "opt1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFirstVote, res.Outcome)
	assert.Equal(t, 1, res.Battle.Options[0].Votes)
	version := res.Battle.Version

	res, err = env.ledger.ApplyVote(ctx, id, "d1", "opt1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, res.Outcome)
	assert.Equal(t, version, res.Battle.Version, "noop must not write")

	res, err = env.ledger.ApplyVote(ctx, id, "d1", "opt2")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSwitch, res.Outcome)
	assert.Equal(t, 0, res.Battle.Options[0].Votes)
	assert.Equal(t, 1, res.Battle.Options[1].Votes)
	assert.True(t, tally.Consistent(res.Battle))

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Votes.WithLabelValues(string(domain.OutcomeFirstVote))))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Votes.WithLabelValues(string(domain.OutcomeNoOp))))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Votes.WithLabelValues(string(domain.OutcomeSwitch))))
}

func TestLedger_ApplyVote_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createBattle(t, "A vs B", "A", "B")

	_, err := env.ledger.ApplyVote(ctx, "missing", "d1", "opt1")
	assert.ErrorIs(t, err, domain.ErrBattleNotFound)

	_, err = env.ledger.ApplyVote(ctx, id, "d1", "opt9")
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	b, err := env.ledger.GetBattle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Total(b.Options))
	assert.Empty(t, b.Votes)
}

func TestLedger_ConcurrentVotesKeepCountersConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createBattle(t, "A vs B vs C", "A", "B", "C")
	options := []string{"opt1", "opt2", "opt3"}

	const devices = 24
	const rounds = 6

	var wg sync.WaitGroup
	for d := 0; d < devices; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			deviceID := fmt.Sprintf("device-%d", d)
			for r := 0; r < rounds; r++ {
				_, err := env.ledger.ApplyVote(ctx, id, deviceID, options[(d+r)%len(options)])
				assert.NoError(t, err)
			}
		}(d)
	}
	wg.Wait()

	b, err := env.ledger.GetBattle(ctx, id)
	require.NoError(t, err)
	assert.True(t, tally.Consistent(b))
	assert.Equal(t, devices, tally.Total(b.Options))
	assert.Len(t, b.Votes, devices)

	for d := 0; d < devices; d++ {
		optionID, ok := b.DeviceVote(fmt.Sprintf("device-%d", d))
		require.True(t, ok)
		assert.Equal(t, options[(d+rounds-1)%len(options)], optionID)
	}
	assert.Zero(t, env.ledger.locks.size())
}

func TestLedger_DifferentBattlesDoNotShareState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createBattle(t, "One", "A", "B")
	second := env.createBattle(t, "Two", "A", "B")

	_, err := env.ledger.ApplyVote(ctx, first, "d1", "opt1")
	require.NoError(t, err)

	res, err := env.ledger.ApplyVote(ctx, second, "d1", "opt1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFirstVote, res.Outcome)
}
