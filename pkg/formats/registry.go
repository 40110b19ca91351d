// Package formats holds the catalog of known bank CSV export layouts and the
// heuristic that picks one for an arbitrary file.
package formats

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ghodss/yaml"
)

// Key identifies a format in the registry.
type Key string

// Generic is the fallback format used when nothing else scores high enough.
const Generic Key = "generic"

//go:embed formats.yml
var rawFormats []byte

// Format describes how a bank lays out its CSV export. Formats are loaded once
// and must be treated as read only.
type Format struct {
	Key                Key      `json:"key"`
	Name               string   `json:"name"`
	Country            string   `json:"country"`
	DateColumns        []string `json:"dateColumns"`
	AmountColumns      []string `json:"amountColumns"`
	DescriptionColumns []string `json:"descriptionColumns"`
	// Go time layouts, tried in order
	DateLayouts      []string `json:"dateLayouts"`
	Encoding         string   `json:"encoding"`
	Delimiter        string   `json:"delimiter"`
	DecimalSeparator string   `json:"decimalSeparator"`
}

// Comma returns the field delimiter as a rune.
func (f Format) Comma() rune {
	r, _ := utf8.DecodeRuneInString(f.Delimiter)
	return r
}

// Decimal returns the decimal separator, '.' or ','.
func (f Format) Decimal() byte {
	if f.DecimalSeparator == "," {
		return ','
	}
	return '.'
}

// Summary is the listing view of a format.
type Summary struct {
	Key  Key    `json:"key"`
	Name string `json:"name"`
}

type Registry struct {
	formats []Format
	byKey   map[Key]int
}

type registryFile struct {
	Formats []Format `json:"formats"`
}

var defaultRegistry = mustLoad(rawFormats)

// Default returns the registry built from the embedded format catalog.
func Default() *Registry {
	return defaultRegistry
}

// Supported lists every non generic format of the default registry.
func Supported() []Summary {
	return defaultRegistry.Supported()
}

func mustLoad(raw []byte) *Registry {
	r, err := Load(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Load parses a YAML format catalog. The catalog must contain a generic entry.
func Load(raw []byte) (*Registry, error) {
	var file registryFile

	err := yaml.Unmarshal(raw, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse format catalog: %w", err)
	}

	r := &Registry{
		formats: make([]Format, 0, len(file.Formats)),
		byKey:   make(map[Key]int, len(file.Formats)),
	}

	for _, f := range file.Formats {
		if err := validate(f); err != nil {
			return nil, err
		}

		if _, ok := r.byKey[f.Key]; ok {
			return nil, fmt.Errorf("duplicate format key %q", f.Key)
		}

		r.byKey[f.Key] = len(r.formats)
		r.formats = append(r.formats, f)
	}

	if _, ok := r.byKey[Generic]; !ok {
		return nil, fmt.Errorf("format catalog has no %q entry", Generic)
	}

	return r, nil
}

func validate(f Format) error {
	if f.Key == "" {
		return fmt.Errorf("format %q has no key", f.Name)
	}

	if utf8.RuneCountInString(f.Delimiter) != 1 {
		return fmt.Errorf("format %s: delimiter must be a single character, got %q", f.Key, f.Delimiter)
	}

	if f.DecimalSeparator != "." && f.DecimalSeparator != "," {
		return fmt.Errorf("format %s: decimal separator must be '.' or ',', got %q", f.Key, f.DecimalSeparator)
	}

	if len(f.DateColumns) == 0 || len(f.AmountColumns) == 0 {
		return fmt.Errorf("format %s: date and amount columns are required", f.Key)
	}

	return nil
}

// Lookup returns the format registered under key.
func (r *Registry) Lookup(key Key) (Format, bool) {
	i, ok := r.byKey[Key(strings.ToLower(string(key)))]
	if !ok {
		return Format{}, false
	}
	return r.formats[i], true
}

// Generic returns the fallback format.
func (r *Registry) Generic() Format {
	return r.formats[r.byKey[Generic]]
}

// All returns the formats in catalog order.
func (r *Registry) All() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

func (r *Registry) Supported() []Summary {
	summaries := make([]Summary, 0, len(r.formats))
	for _, f := range r.formats {
		if f.Key == Generic {
			continue
		}
		summaries = append(summaries, Summary{Key: f.Key, Name: f.Name})
	}
	return summaries
}
