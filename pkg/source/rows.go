// Package source fetches and parses raw scope data and reduces it to the
// identity→difficulty map the stats pipeline consumes. Sources are JSONL:
// one row per problem with url, title, and difficulty fields. Malformed rows
// are dropped and counted as issues, never fatal.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"solvetrack/pkg/model"
)

// DefaultMaxLineSize is the largest source row accepted (1MB).
const DefaultMaxLineSize = 1024 * 1024

// Row is one validated problem row from a source list.
type Row struct {
	// Identity is the normalized global key derived from the raw URL field.
	Identity string
	// Title is the display title from the source.
	Title string
	// Difficulty is the parsed tri-valued tag.
	Difficulty model.Difficulty
}

// rawRow is the loose on-disk shape before validation.
type rawRow struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
}

// Issue records one dropped row or failed source, for surfacing as a soft
// problem count rather than an error.
type Issue struct {
	SourceID string
	Line     int
	Reason   string
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", i.SourceID, i.Line, i.Reason)
	}
	return fmt.Sprintf("%s: %s", i.SourceID, i.Reason)
}

// ParseOptions configures ParseRows.
type ParseOptions struct {
	// SourceID labels issues produced while parsing.
	SourceID string

	// WarningHandler receives a message per dropped row. Nil means silent;
	// issues are still returned either way.
	WarningHandler func(string)

	// MaxLineSize caps the accepted row size in bytes. Longer rows are
	// dropped with an issue. Zero uses DefaultMaxLineSize.
	MaxLineSize int
}

// ParseRows parses JSONL source content into validated rows. Rows that fail
// to decode, have no usable identity, or carry an unknown difficulty are
// dropped and reported in the returned issues. Only a read failure on the
// underlying reader is an error.
func ParseRows(r io.Reader, opts ParseOptions) ([]Row, []Issue, error) {
	maxLine := opts.MaxLineSize
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(string) {}
	}

	var rows []Row
	var issues []Issue
	drop := func(line int, reason string) {
		issues = append(issues, Issue{SourceID: opts.SourceID, Line: line, Reason: reason})
		warn(fmt.Sprintf("%s: skipping line %d: %s", opts.SourceID, line, reason))
	}

	reader := bufio.NewReaderSize(r, maxLine)
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, issues, fmt.Errorf("reading source stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			drop(lineNum, fmt.Sprintf("line too long (exceeds %d bytes)", maxLine))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, issues, fmt.Errorf("skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var raw rawRow
		if err := json.Unmarshal(line, &raw); err != nil {
			drop(lineNum, fmt.Sprintf("malformed JSON: %v", err))
			continue
		}

		identity := model.NormalizeIdentity(raw.URL)
		if identity == "" {
			drop(lineNum, "missing or empty url")
			continue
		}
		difficulty, ok := model.ParseDifficulty(raw.Difficulty)
		if !ok {
			drop(lineNum, fmt.Sprintf("unknown difficulty %q", raw.Difficulty))
			continue
		}

		rows = append(rows, Row{
			Identity:   identity,
			Title:      strings.TrimSpace(raw.Title),
			Difficulty: difficulty,
		})
	}

	return rows, issues, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present.
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
