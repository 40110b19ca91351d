package formats

import (
	"encoding/csv"
	"strings"
)

// ScoreThreshold is the score a format has to beat to be trusted over the
// generic fallback. It takes two of date column, amount column and delimiter.
const ScoreThreshold = 15

const (
	dateColumnScore        = 10
	amountColumnScore      = 10
	descriptionColumnScore = 5
	delimiterScore         = 5
)

var candidateDelimiters = []rune{',', ';', '\t'}

// Detection is the outcome of Detect.
type Detection struct {
	Format Format
	// Delimiter the header row parsed with. It can differ from the format's
	// configured delimiter when the format won on column names alone.
	Delimiter  rune
	Score      int
	ByFilename bool
}

// Detect picks the format that best fits the header row of content. A
// filename containing a format key or display name wins outright.
func (r *Registry) Detect(content string, filename string) Detection {
	if f, ok := r.matchFilename(filename); ok {
		return Detection{Format: f, Delimiter: f.Comma(), ByFilename: true}
	}

	var (
		best          Detection
		widestColumns int
		widest        rune
	)

	for _, delimiter := range candidateDelimiters {
		headers, ok := readHeader(content, delimiter)
		if !ok || len(headers) < 2 {
			continue
		}

		if len(headers) > widestColumns {
			widestColumns = len(headers)
			widest = delimiter
		}

		present := headerSet(headers)

		for _, f := range r.formats {
			if f.Key == Generic {
				continue
			}

			score := Score(f, present, delimiter)
			if score > best.Score {
				best = Detection{Format: f, Delimiter: delimiter, Score: score}
			}
		}
	}

	if best.Score > ScoreThreshold {
		return best
	}

	generic := r.Generic()
	fallback := Detection{Format: generic, Delimiter: generic.Comma(), Score: best.Score}
	if widestColumns > 0 {
		fallback.Delimiter = widest
	}

	return fallback
}

// Score rates how well f matches a header row parsed with delimiter. present
// holds the lowercased, trimmed header names.
func Score(f Format, present map[string]bool, delimiter rune) int {
	score := 0

	if anyPresent(f.DateColumns, present) {
		score += dateColumnScore
	}

	if anyPresent(f.AmountColumns, present) {
		score += amountColumnScore
	}

	if anyPresent(f.DescriptionColumns, present) {
		score += descriptionColumnScore
	}

	if f.Comma() == delimiter {
		score += delimiterScore
	}

	return score
}

func (r *Registry) matchFilename(filename string) (Format, bool) {
	if filename == "" {
		return Format{}, false
	}

	lower := strings.ToLower(filename)
	for _, f := range r.formats {
		if strings.Contains(lower, string(f.Key)) || strings.Contains(lower, strings.ToLower(f.Name)) {
			return f, true
		}
	}

	return Format{}, false
}

// FindColumn returns the index of the first header matching one of the
// candidates, trying candidates in order. It returns -1 if none match.
func FindColumn(headers []string, candidates []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	for _, candidate := range candidates {
		c := normalizeHeader(candidate)
		for i, h := range normalized {
			if h == c {
				return i
			}
		}
	}

	return -1
}

func readHeader(content string, delimiter rune) ([]string, bool) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, false
	}

	return headers, true
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[normalizeHeader(h)] = true
	}
	return set
}

func anyPresent(candidates []string, present map[string]bool) bool {
	for _, c := range candidates {
		if present[normalizeHeader(c)] {
			return true
		}
	}
	return false
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
