// Package phrases classifies inbound messages into special prompt modes by keyword lists
package phrases

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mode is the per-message classification outcome. It is never persisted.
type Mode int

const (
	ModePlain Mode = iota
	ModeTerminal
	ModeManipulation
	ModeStrawberry
)

func (m Mode) String() string {
	switch m {
	case ModeTerminal:
		return "terminal"
	case ModeManipulation:
		return "manipulation"
	case ModeStrawberry:
		return "strawberry"
	default:
		return "plain"
	}
}

// ErrListMissing is returned by LoadCSV when the list file does not exist.
// Callers treat it as a warning and continue with an empty list.
var ErrListMissing = errors.New("phrase list not found")

// Rule binds a mode to its trigger phrases.
type Rule struct {
	Mode    Mode
	Phrases []string
}

// Classifier scans rules in order; the first rule with a hit wins.
type Classifier struct {
	rules []Rule
}

// New builds a classifier with the fixed priority terminal > manipulation > strawberry.
func New(terminal, manipulation, strawberry []string) *Classifier {
	return &Classifier{rules: []Rule{
		{Mode: ModeTerminal, Phrases: normalize(terminal)},
		{Mode: ModeManipulation, Phrases: normalize(manipulation)},
		{Mode: ModeStrawberry, Phrases: normalize(strawberry)},
	}}
}

// Classify returns the mode of the first rule whose phrase appears anywhere in msg.
// Matching is case-insensitive substring containment, so "rmdir" matches "dir".
func (c *Classifier) Classify(msg string) Mode {
	lower := strings.ToLower(msg)
	for _, r := range c.rules {
		for _, p := range r.Phrases {
			if strings.Contains(lower, p) {
				return r.Mode
			}
		}
	}
	return ModePlain
}

// Rules returns a copy of the ordered rule table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// LoadCSV reads the first column of every non-empty row, lowercased.
func LoadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrListMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readPhrases(f)
}

func readPhrases(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var out []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read phrases: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if p := strings.ToLower(strings.TrimSpace(row[0])); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func normalize(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		// an empty phrase would match every message
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
