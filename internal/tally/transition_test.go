package tally

import (
	"testing"
	"time"

	"versus-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBattle(votes ...int) *domain.Battle {
	b := &domain.Battle{BattleID: "a-vs-b", Name: "A vs B", Votes: map[string]domain.VoteRecord{}}
	for i, v := range votes {
		b.Options = append(b.Options, domain.Option{ID: "opt" + string(rune('1'+i)), Name: string(rune('A' + i)), Votes: v})
	}
	return b
}

func TestDecide(t *testing.T) {
	options := newBattle(0, 0).Options
	votes := map[string]domain.VoteRecord{
		"d1": {OptionID: "opt1"},
	}

	tests := []struct {
		name        string
		deviceID    string
		optionID    string
		wantOutcome domain.VoteOutcome
		wantFrom    string
		wantErr     error
	}{
		{
			name:        "first vote",
			deviceID:    "d2",
			optionID:    "opt2",
			wantOutcome: domain.OutcomeFirstVote,
		},
		{
			name:        "same option is a no-op",
			deviceID:    "d1",
			optionID:    "opt1",
			wantOutcome: domain.OutcomeNoOp,
			wantFrom:    "opt1",
		},
		{
			name:        "different option switches",
			deviceID:    "d1",
			optionID:    "opt2",
			wantOutcome: domain.OutcomeSwitch,
			wantFrom:    "opt1",
		},
		{
			name:     "unknown option",
			deviceID: "d1",
			optionID: "opt9",
			wantErr:  domain.ErrInvalidOption,
		},
		{
			name:     "unknown option for a new device",
			deviceID: "d3",
			optionID: "red",
			wantErr:  domain.ErrInvalidOption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(votes, tt.deviceID, tt.optionID, options)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, d.Outcome)
			assert.Equal(t, tt.wantFrom, d.From)
			assert.Equal(t, tt.optionID, d.To)
			assert.Equal(t, tt.deviceID, d.DeviceID)
		})
	}

	// Decide must not touch the snapshot it was given.
	assert.Len(t, votes, 1)
	assert.Equal(t, "opt1", votes["d1"].OptionID)
}

func TestApply_SequenceKeepsInvariant(t *testing.T) {
	b := newBattle(0, 0)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	steps := []struct {
		deviceID string
		optionID string
		want     [2]int
		outcome  domain.VoteOutcome
	}{
		{"d1", "opt1", [2]int{1, 0}, domain.OutcomeFirstVote},
		{"d1", "opt1", [2]int{1, 0}, domain.OutcomeNoOp},
		{"d2", "opt1", [2]int{2, 0}, domain.OutcomeFirstVote},
		{"d1", "opt2", [2]int{1, 1}, domain.OutcomeSwitch},
		{"d2", "opt2", [2]int{0, 2}, domain.OutcomeSwitch},
		{"d1", "opt1", [2]int{1, 1}, domain.OutcomeSwitch},
	}

	for i, step := range steps {
		d, err := Decide(b.Votes, step.deviceID, step.optionID, b.Options)
		require.NoError(t, err)
		assert.Equal(t, step.outcome, d.Outcome, "step %d", i)

		underflow := Apply(b, d, now.Add(time.Duration(i)*time.Second))
		assert.False(t, underflow)
		assert.Equal(t, step.want[0], b.Options[0].Votes, "step %d opt1", i)
		assert.Equal(t, step.want[1], b.Options[1].Votes, "step %d opt2", i)
		assert.True(t, Consistent(b), "step %d", i)
	}
}

func TestApply_SwitchKeepsTotal(t *testing.T) {
	b := newBattle(0, 0)
	d, err := Decide(b.Votes, "d1", "opt1", b.Options)
	require.NoError(t, err)
	Apply(b, d, time.Now())
	before := Total(b.Options)

	d, err = Decide(b.Votes, "d1", "opt2", b.Options)
	require.NoError(t, err)
	Apply(b, d, time.Now())

	assert.Equal(t, before, Total(b.Options))
	assert.Equal(t, 0, b.Options[0].Votes)
	assert.Equal(t, 1, b.Options[1].Votes)
}

func TestApply_NoOpLeavesTimestamp(t *testing.T) {
	b := newBattle(0, 0)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d, _ := Decide(b.Votes, "d1", "opt2", b.Options)
	Apply(b, d, first)

	d, _ = Decide(b.Votes, "d1", "opt2", b.Options)
	Apply(b, d, first.Add(time.Hour))

	assert.Equal(t, first, b.Votes["d1"].ChangedAt)
	assert.Equal(t, 1, b.Options[1].Votes)
}

func TestApply_UnderflowIsClamped(t *testing.T) {
	// A map entry with no matching counter: the invariant is already broken.
	b := newBattle(0, 0)
	b.Votes["d1"] = domain.VoteRecord{OptionID: "opt1"}

	d, err := Decide(b.Votes, "d1", "opt2", b.Options)
	require.NoError(t, err)

	underflow := Apply(b, d, time.Now())
	assert.True(t, underflow)
	assert.Equal(t, 0, b.Options[0].Votes)
	assert.Equal(t, 1, b.Options[1].Votes)
}

func TestApply_InitializesNilVoteMap(t *testing.T) {
	b := newBattle(0, 0)
	b.Votes = nil

	d, err := Decide(b.Votes, "d1", "opt1", b.Options)
	require.NoError(t, err)
	Apply(b, d, time.Now())

	require.NotNil(t, b.Votes)
	assert.Equal(t, "opt1", b.Votes["d1"].OptionID)
}
