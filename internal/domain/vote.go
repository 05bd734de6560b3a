package domain

// VoteOutcome classifies what a vote did to the ledger.
type VoteOutcome string

const (
	OutcomeFirstVote VoteOutcome = "first_vote"
	OutcomeSwitch    VoteOutcome = "switch"
	OutcomeNoOp      VoteOutcome = "noop"
)

// AlreadyVotedMessage is returned when a device repeats its current choice.
const AlreadyVotedMessage = "Already voted for this option"

// VoteRequest is the body of POST /battle/{battleId}/vote.
type VoteRequest struct {
	OptionID string `json:"optionId" validate:"required"`
	DeviceID string `json:"deviceId" validate:"required"`
}

// VoteResponse acknowledges a vote that changed the ledger.
type VoteResponse struct {
	Success  bool   `json:"success"`
	OptionID string `json:"optionId"`
}

// VoteResult is the outcome of a vote together with the post-vote battle state.
type VoteResult struct {
	Outcome VoteOutcome
	Battle  *Battle
}
