package model

import "strings"

// Difficulty is the tri-valued difficulty tag attached to every problem by
// its source list.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Difficulties lists all valid difficulties in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty maps a raw source tag to a Difficulty. Matching is
// case-insensitive and tolerates surrounding whitespace. Returns false for
// anything unrecognized.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EASY", "E":
		return DifficultyEasy, true
	case "MEDIUM", "MED", "M":
		return DifficultyMedium, true
	case "HARD", "H":
		return DifficultyHard, true
	default:
		return "", false
	}
}

// Valid reports whether d is one of the three known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
