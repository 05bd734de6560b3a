package tally

import "versus-backend/internal/domain"

// emptyPercentage is shown for every option before any vote is cast so the
// two-sided bar starts centered.
const emptyPercentage = 50

// Total sums the vote counters of options.
func Total(options []domain.Option) int {
	total := 0
	for _, opt := range options {
		total += opt.Votes
	}
	return total
}

// Project annotates options with integer percentages, keeping their order.
//
// Percentages are rounded half up, independently per option. With exactly two
// options whose counts differ, a leader that would round to 50 is shown as
// 51 against 49 so an uneven race never displays as a tie.
func Project(options []domain.Option) []domain.OptionStats {
	out := make([]domain.OptionStats, len(options))
	total := Total(options)

	for i, opt := range options {
		pct := emptyPercentage
		if total > 0 {
			pct = roundPercent(opt.Votes, total)
		}
		out[i] = domain.OptionStats{ID: opt.ID, Name: opt.Name, Votes: opt.Votes, Percentage: pct}
	}

	if total > 0 && len(options) == 2 && options[0].Votes != options[1].Votes {
		leader, trailer := 0, 1
		if options[1].Votes > options[0].Votes {
			leader, trailer = 1, 0
		}
		if out[leader].Percentage == 50 {
			out[leader].Percentage = 51
			out[trailer].Percentage = 49
		}
	}

	return out
}

// roundPercent returns round(votes/total*100) with halves rounded up, in
// integer arithmetic.
func roundPercent(votes, total int) int {
	return (votes*200 + total) / (2 * total)
}
