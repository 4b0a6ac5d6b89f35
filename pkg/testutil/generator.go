// Package testutil provides deterministic fixture generators and assertion
// helpers for tests that need problem lists and seeded ledgers.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"solvetrack/internal/store"
	"solvetrack/pkg/model"
	"solvetrack/pkg/source"
)

// GeneratorConfig controls row generation.
type GeneratorConfig struct {
	Seed          int64              // Random seed for determinism (0 = use current time)
	Host          string             // Host for generated URLs (default: "problems.test")
	DifficultyMix []model.Difficulty // Difficulty distribution (nil = uniform over all three)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed: 42, // Deterministic
		Host: "problems.test",
	}
}

// Generator creates deterministic problem-row fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Host == "" {
		cfg.Host = "problems.test"
	}
	if len(cfg.DifficultyMix) == 0 {
		cfg.DifficultyMix = model.Difficulties
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Identity returns the canonical identity for the i-th generated problem.
func (g *Generator) Identity(i int) string {
	return fmt.Sprintf("https://%s/p/%04d", g.cfg.Host, i)
}

// Rows generates n rows with identities Identity(0)..Identity(n-1) and a
// difficulty drawn from the configured mix.
func (g *Generator) Rows(n int) []source.Row {
	rows := make([]source.Row, n)
	for i := range rows {
		rows[i] = source.Row{
			Identity:   g.Identity(i),
			Title:      fmt.Sprintf("Problem %d", i),
			Difficulty: g.cfg.DifficultyMix[g.rng.Intn(len(g.cfg.DifficultyMix))],
		}
	}
	return rows
}

// RowsWithDifficulties generates one row per given difficulty, in order.
func (g *Generator) RowsWithDifficulties(diffs ...model.Difficulty) []source.Row {
	rows := make([]source.Row, len(diffs))
	for i, d := range diffs {
		rows[i] = source.Row{
			Identity:   g.Identity(i),
			Title:      fmt.Sprintf("Problem %d", i),
			Difficulty: d,
		}
	}
	return rows
}

// ToJSONL encodes rows in the source file wire format, one JSON object per
// line.
func ToJSONL(rows []source.Row) string {
	var b strings.Builder
	for _, row := range rows {
		line, err := json.Marshal(map[string]string{
			"url":        row.Identity,
			"title":      row.Title,
			"difficulty": string(row.Difficulty),
		})
		if err != nil {
			panic(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteSourceFile writes rows as a JSONL source file under dir and returns
// its path.
func WriteSourceFile(t *testing.T, dir, name string, rows []source.Row) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(ToJSONL(rows)), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	return path
}

// OpenStore opens a throwaway SQLite store under t.TempDir.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "solvetrack.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// MarkCompleted toggles the given identities to completed in the ledger.
// Identities must not already be completed.
func MarkCompleted(t *testing.T, s *store.Store, rows []source.Row, identities ...string) {
	t.Helper()
	for _, id := range identities {
		row := FindRow(rows, id)
		difficulty := model.DifficultyEasy
		if row != nil {
			difficulty = row.Difficulty
		}
		rec, _, err := s.ToggleCompleted(context.Background(), id, difficulty)
		if err != nil {
			t.Fatalf("failed to toggle %s: %v", id, err)
		}
		if !rec.Completed {
			t.Fatalf("toggle left %s uncompleted; was it already completed?", id)
		}
	}
}
