package id

import (
	"fmt"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const digits = "0123456789"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and collapses every run of other characters into a
// single hyphen, trimming hyphens at both ends.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// BattleID builds "<slug>-<4 digits>" from a battle name.
func BattleID(name string) (string, error) {
	suffix, err := gonanoid.Generate(digits, 4)
	if err != nil {
		return "", fmt.Errorf("generate battle suffix: %w", err)
	}
	slug := Slugify(name)
	if slug == "" {
		return suffix, nil
	}
	return slug + "-" + suffix, nil
}

// Generate creates a prefixed unique ID, e.g. "sub-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
