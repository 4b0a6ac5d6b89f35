// Package prefs persists small user preference state: pinned lists and a
// bounded most-recently-used scope list. Prefs live in the XDG state dir,
// carry no version stamp, and are never cached; losing the file loses
// nothing but convenience.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"solvetrack/pkg/config"
)

// MaxRecents bounds the MRU list.
const MaxRecents = 10

// Prefs is the persisted preference state.
type Prefs struct {
	Pinned  []string `yaml:"pinned,omitempty"`
	Recents []string `yaml:"recents,omitempty"`
}

// Path returns the full path of the prefs file, or empty when the state dir
// cannot be determined.
func Path() string {
	dir := config.StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "prefs.yaml")
}

// Load reads prefs from the XDG state dir. A missing file yields empty prefs.
func Load() (Prefs, error) {
	path := Path()
	if path == "" {
		return Prefs{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads prefs from a specific path.
func LoadFrom(path string) (Prefs, error) {
	var p Prefs

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("reading prefs: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing prefs: %w", err)
	}
	if len(p.Recents) > MaxRecents {
		p.Recents = p.Recents[:MaxRecents]
	}
	return p, nil
}

// Save writes prefs to the XDG state dir.
func Save(p Prefs) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine state directory")
	}
	return SaveTo(p, path)
}

// SaveTo writes prefs to a specific path.
func SaveTo(p Prefs, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling prefs: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing prefs: %w", err)
	}
	return nil
}

// Touch moves scopeID to the front of the recents MRU, trimming to
// MaxRecents.
func (p *Prefs) Touch(scopeID string) {
	recents := make([]string, 0, len(p.Recents)+1)
	recents = append(recents, scopeID)
	for _, r := range p.Recents {
		if r != scopeID {
			recents = append(recents, r)
		}
	}
	if len(recents) > MaxRecents {
		recents = recents[:MaxRecents]
	}
	p.Recents = recents
}

// Pin adds scopeID to the pinned set if not already present.
func (p *Prefs) Pin(scopeID string) {
	if p.IsPinned(scopeID) {
		return
	}
	p.Pinned = append(p.Pinned, scopeID)
}

// Unpin removes scopeID from the pinned set.
func (p *Prefs) Unpin(scopeID string) {
	for i, s := range p.Pinned {
		if s == scopeID {
			p.Pinned = append(p.Pinned[:i], p.Pinned[i+1:]...)
			return
		}
	}
}

// IsPinned reports whether scopeID is pinned.
func (p *Prefs) IsPinned(scopeID string) bool {
	for _, s := range p.Pinned {
		if s == scopeID {
			return true
		}
	}
	return false
}
