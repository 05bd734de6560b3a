// Package tally holds the pure vote bookkeeping: deciding what a vote does to a
// battle and projecting counters into display percentages.
package tally

import (
	"fmt"
	"time"

	"versus-backend/internal/domain"
)

// Decision is the state change a vote produces. From is empty for a first vote.
type Decision struct {
	Outcome  domain.VoteOutcome
	DeviceID string
	From     string
	To       string
}

// Decide works out what a vote by deviceID for optionID does, given the current
// vote map and option list. It never mutates its inputs.
func Decide(votes map[string]domain.VoteRecord, deviceID, optionID string, options []domain.Option) (Decision, error) {
	if !containsOption(options, optionID) {
		return Decision{}, fmt.Errorf("%w: %s", domain.ErrInvalidOption, optionID)
	}

	prev, voted := votes[deviceID]
	switch {
	case !voted:
		return Decision{Outcome: domain.OutcomeFirstVote, DeviceID: deviceID, To: optionID}, nil
	case prev.OptionID == optionID:
		return Decision{Outcome: domain.OutcomeNoOp, DeviceID: deviceID, From: optionID, To: optionID}, nil
	default:
		return Decision{Outcome: domain.OutcomeSwitch, DeviceID: deviceID, From: prev.OptionID, To: optionID}, nil
	}
}

// Apply mutates b according to d. It reports underflow when the previous
// option's counter was already zero, which means the counter/map invariant was
// broken before this vote; the counter is clamped at zero in that case.
func Apply(b *domain.Battle, d Decision, now time.Time) (underflow bool) {
	if d.Outcome == domain.OutcomeNoOp {
		return false
	}

	if d.Outcome == domain.OutcomeSwitch {
		if i := b.OptionIndex(d.From); i >= 0 {
			if b.Options[i].Votes > 0 {
				b.Options[i].Votes--
			} else {
				underflow = true
			}
		}
	}

	if i := b.OptionIndex(d.To); i >= 0 {
		b.Options[i].Votes++
	}

	if b.Votes == nil {
		b.Votes = make(map[string]domain.VoteRecord)
	}
	b.Votes[d.DeviceID] = domain.VoteRecord{OptionID: d.To, ChangedAt: now}
	return underflow
}

// Consistent reports whether every option counter equals the number of vote
// map entries pointing at it, and every entry points at a known option.
func Consistent(b *domain.Battle) bool {
	counts := make(map[string]int, len(b.Options))
	for _, rec := range b.Votes {
		if !b.HasOption(rec.OptionID) {
			return false
		}
		counts[rec.OptionID]++
	}
	for _, opt := range b.Options {
		if opt.Votes != counts[opt.ID] {
			return false
		}
	}
	return true
}

func containsOption(options []domain.Option, optionID string) bool {
	for _, opt := range options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
