package domain

import "errors"

var (
	// ErrBattleNotFound is returned for an unknown battle id.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrInvalidOption is returned when a vote targets an option outside the battle.
	ErrInvalidOption = errors.New("invalid option")
	// ErrBattleExists is returned when a battle id is already taken.
	ErrBattleExists = errors.New("battle already exists")
	// ErrNicknameTaken is returned when another fingerprint already uses a nickname in a battle.
	ErrNicknameTaken = errors.New("nickname already in use")
)
