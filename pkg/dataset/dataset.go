// Package dataset loads the problem-list dataset definition: named groups,
// each holding named lists, each list backed by one or more source files.
// The definition file's content hash is the dataset generation id; editing
// the file changes the generation and strands every cached aggregate keyed
// under the old one.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"solvetrack/pkg/source"
)

// List is one curated problem list inside a group.
type List struct {
	Name    string   `yaml:"name"`
	Sources []string `yaml:"sources"`
}

// Group is a named set of lists, e.g. one company's lists.
type Group struct {
	Name  string `yaml:"name"`
	Lists []List `yaml:"lists"`
}

// Definition is the parsed dataset definition file.
type Definition struct {
	Groups []Group `yaml:"groups"`
}

// Dataset is a loaded definition plus its generation id.
type Dataset struct {
	def        Definition
	path       string
	generation string
}

// Load reads and parses the definition file at path and computes its
// generation id.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset definition: %w", err)
	}
	return Parse(data, path)
}

// Parse builds a Dataset from raw definition bytes. The path is recorded for
// watching and error messages only.
func Parse(data []byte, path string) (*Dataset, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing dataset definition: %w", err)
	}
	if err := validate(def); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &Dataset{
		def:        def,
		path:       path,
		generation: hex.EncodeToString(sum[:8]),
	}, nil
}

func validate(def Definition) error {
	seenGroups := make(map[string]struct{})
	for _, g := range def.Groups {
		if g.Name == "" {
			return fmt.Errorf("dataset definition: group with empty name")
		}
		if strings.Contains(g.Name, "/") {
			return fmt.Errorf("dataset definition: group name %q contains '/'", g.Name)
		}
		if _, dup := seenGroups[g.Name]; dup {
			return fmt.Errorf("dataset definition: duplicate group %q", g.Name)
		}
		seenGroups[g.Name] = struct{}{}

		seenLists := make(map[string]struct{})
		for _, l := range g.Lists {
			if l.Name == "" {
				return fmt.Errorf("dataset definition: group %q has a list with empty name", g.Name)
			}
			if strings.Contains(l.Name, "/") {
				return fmt.Errorf("dataset definition: list name %q contains '/'", l.Name)
			}
			if _, dup := seenLists[l.Name]; dup {
				return fmt.Errorf("dataset definition: group %q has duplicate list %q", g.Name, l.Name)
			}
			seenLists[l.Name] = struct{}{}
			if len(l.Sources) == 0 {
				return fmt.Errorf("dataset definition: list %s/%s has no sources", g.Name, l.Name)
			}
		}
	}
	return nil
}

// GenerationID returns the content-derived generation id of this dataset.
func (d *Dataset) GenerationID() string {
	return d.generation
}

// Path returns the definition file path, empty for in-memory datasets.
func (d *Dataset) Path() string {
	return d.path
}

// Groups returns the group names in definition order.
func (d *Dataset) Groups() []string {
	names := make([]string, 0, len(d.def.Groups))
	for _, g := range d.def.Groups {
		names = append(names, g.Name)
	}
	return names
}

// Lists returns the list names of a group in definition order, or nil for an
// unknown group.
func (d *Dataset) Lists(group string) []string {
	for _, g := range d.def.Groups {
		if g.Name == group {
			names := make([]string, 0, len(g.Lists))
			for _, l := range g.Lists {
				names = append(names, l.Name)
			}
			return names
		}
	}
	return nil
}

// ScopeIDs returns every resolvable scope id: one per group plus one per
// group/list pair, sorted.
func (d *Dataset) ScopeIDs() []string {
	var ids []string
	for _, g := range d.def.Groups {
		ids = append(ids, g.Name)
		for _, l := range g.Lists {
			ids = append(ids, g.Name+"/"+l.Name)
		}
	}
	sort.Strings(ids)
	return ids
}

// ResolveScope maps a scope id to its source list. A bare group name resolves
// to the union of the group's lists' sources (duplicates collapsed, order
// preserved); "group/list" resolves to that list's sources.
func (d *Dataset) ResolveScope(scopeID string) (source.Scope, bool) {
	group, list, isList := strings.Cut(scopeID, "/")
	for _, g := range d.def.Groups {
		if g.Name != group {
			continue
		}
		if isList {
			for _, l := range g.Lists {
				if l.Name == list {
					return source.Scope{ID: scopeID, Sources: append([]string(nil), l.Sources...)}, true
				}
			}
			return source.Scope{}, false
		}

		var sources []string
		seen := make(map[string]struct{})
		for _, l := range g.Lists {
			for _, src := range l.Sources {
				if _, dup := seen[src]; dup {
					continue
				}
				seen[src] = struct{}{}
				sources = append(sources, src)
			}
		}
		return source.Scope{ID: scopeID, Sources: sources}, true
	}
	return source.Scope{}, false
}
