package model

import "fmt"

// Count is a solved/total pair for one difficulty bucket or for a whole scope.
type Count struct {
	Solved int `json:"solved"`
	Total  int `json:"total"`
}

// ScopeAggregate holds the derived statistics for one scope: per-difficulty
// solved/total counts plus the overall pair. Totals count unique item
// identities within the scope, so an item listed twice inside one scope
// contributes once.
type ScopeAggregate struct {
	PerDifficulty map[Difficulty]Count `json:"per_difficulty"`
	Overall       Count                `json:"overall"`
}

// NewScopeAggregate returns an aggregate with all buckets present and zeroed.
func NewScopeAggregate() *ScopeAggregate {
	per := make(map[Difficulty]Count, len(Difficulties))
	for _, d := range Difficulties {
		per[d] = Count{}
	}
	return &ScopeAggregate{PerDifficulty: per}
}

// Add records one item with the given difficulty and completion state.
// Unknown difficulties still count toward Overall so totals stay honest.
func (a *ScopeAggregate) Add(d Difficulty, solved bool) {
	if a.PerDifficulty == nil {
		a.PerDifficulty = make(map[Difficulty]Count, len(Difficulties))
	}
	if d.Valid() {
		c := a.PerDifficulty[d]
		c.Total++
		if solved {
			c.Solved++
		}
		a.PerDifficulty[d] = c
	}
	a.Overall.Total++
	if solved {
		a.Overall.Solved++
	}
}

// Bucket returns the count pair for one difficulty, zero if absent.
func (a *ScopeAggregate) Bucket(d Difficulty) Count {
	if a == nil || a.PerDifficulty == nil {
		return Count{}
	}
	return a.PerDifficulty[d]
}

// ScopeKey composes the cache key for one derived-stats entry. Generation is
// the opaque dataset generation id; changing the underlying dataset changes
// the generation and strands every old entry under an unreachable key.
type ScopeKey struct {
	Generation string
	ScopeID    string
}

// String renders the key in its persisted form.
func (k ScopeKey) String() string {
	return fmt.Sprintf("%s/%s", k.Generation, k.ScopeID)
}
