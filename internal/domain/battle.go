package domain

import "time"

// Battle is the unit of consistency for voting: options and the device vote map
// are always mutated together.
type Battle struct {
	BattleID  string                `json:"battleId"`
	Name      string                `json:"name"`
	Options   []Option              `json:"options"`
	Votes     map[string]VoteRecord `json:"votes"` // deviceID -> most recent choice
	Theme     *Theme                `json:"theme,omitempty"`
	Seq       int64                 `json:"seq"`
	Version   int64                 `json:"version"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Option is one selectable side of a battle. Votes must equal the number of
// entries in Battle.Votes pointing at ID.
type Option struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// VoteRecord is a device's current choice in a battle.
type VoteRecord struct {
	OptionID  string    `json:"optionId"`
	ChangedAt time.Time `json:"changedAt"`
}

// Theme is the advisory color decoration of a battle.
type Theme struct {
	OptionAColor string `json:"optionAColor"`
	OptionBColor string `json:"optionBColor"`
	Background   string `json:"background"`
}

// Meme is a caption set for one of the meme templates.
type Meme struct {
	TemplateID string   `json:"templateId"`
	Texts      []string `json:"texts"`
	Generated  bool     `json:"generated"`
}

// HasOption reports whether optionID belongs to the battle.
func (b *Battle) HasOption(optionID string) bool {
	return b.OptionIndex(optionID) >= 0
}

// OptionIndex returns the position of optionID in Options, or -1.
func (b *Battle) OptionIndex(optionID string) int {
	for i := range b.Options {
		if b.Options[i].ID == optionID {
			return i
		}
	}
	return -1
}

// DeviceVote returns the option the device currently backs, if any.
func (b *Battle) DeviceVote(deviceID string) (string, bool) {
	if deviceID == "" || b.Votes == nil {
		return "", false
	}
	rec, ok := b.Votes[deviceID]
	if !ok {
		return "", false
	}
	return rec.OptionID, true
}

// OptionStats is an option annotated with its display percentage.
type OptionStats struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// OptionRef is the option shape used in battle listings.
type OptionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BattleView is the response for GET /battle/{battleId}.
type BattleView struct {
	BattleID   string        `json:"battleId"`
	Name       string        `json:"name"`
	Options    []OptionStats `json:"options"`
	TotalVotes int           `json:"totalVotes"`
	UserVote   *string       `json:"userVote"`
	Theme      Theme         `json:"theme"`
}

// BattleSummary is one row of the paged and trending listings.
type BattleSummary struct {
	BattleID   string      `json:"battleId"`
	Name       string      `json:"name"`
	TotalVotes int         `json:"totalVotes"`
	Options    []OptionRef `json:"options"`
}

// VoteUpdate is the real-time payload pushed to a battle's room.
type VoteUpdate struct {
	BattleID   string        `json:"battleId"`
	Options    []OptionStats `json:"options"`
	TotalVotes int           `json:"totalVotes"`
}

// CreateBattleRequest is the body of POST /battles.
type CreateBattleRequest struct {
	Name    string        `json:"name" validate:"required"`
	Options []OptionInput `json:"options" validate:"required,min=2,dive"`
}

// OptionInput names one option of a battle being created.
type OptionInput struct {
	Name string `json:"name" validate:"required"`
}

// CreateBattleResponse is returned after a battle is created.
type CreateBattleResponse struct {
	BattleID string   `json:"battleId"`
	Name     string   `json:"name"`
	Options  []Option `json:"options"`
	Message  string   `json:"message"`
}

// ListQuery selects a page of battles.
type ListQuery struct {
	Skip       int
	Limit      int
	ExcludeIDs []string
}
