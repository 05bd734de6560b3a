package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}
	if environment == "test" {
		prefix = "test"
	}

	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyBattleView(battleID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyBattleView, battleID))
}

func (kb *KeyBuilder) KeyBattleDevices(battleID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyBattleDevices, battleID))
}

func (kb *KeyBuilder) KeyBattleVersion(battleID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyBattleVersion, battleID))
}

func (kb *KeyBuilder) KeyTrending(limit int) string {
	return kb.BuildKey(fmt.Sprintf(KeyTrending, limit))
}

// ChannelRooms is shared by every instance in one environment
func (kb *KeyBuilder) ChannelRooms() string {
	return kb.BuildKey(ChannelRooms)
}
