package financialimporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bcaldwell/finimporter/pkg/formats"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw       string
		separator byte
		want      string
		ok        bool
	}{
		{"1.234,56", ',', "1234.56", true},
		{"(100.00)", '.', "-100", true},
		{"50.00CR", '.', "50", true},
		{"50.00DR", '.', "-50", true},
		{"50.00 dr", '.', "-50", true},
		{"-1,234.50", '.', "-1234.5", true},
		{"EUR -12,30", ',', "-12.3", true},
		{"-12.30 CHF", '.', "-12.3", true},
		{"€ 9.99", '.', "9.99", true},
		{"1'234.50", '.', "1234.5", true},
		{"1 234,50", ',', "1234.5", true},
		{"abc", '.', "0", false},
		{"", '.', "0", false},
		{"   ", ',', "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw, tt.separator)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got, ok := ParseDate("01.01.2025", []string{"02.01.2006", DateLayout})
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// non padded layouts accept padded and unpadded values
	got, ok = ParseDate("1.1.2025", []string{"2.1.2006"})
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// ISO fallback
	got, ok = ParseDate("2025-01-01T13:45:00+02:00", []string{"2.1.2006"})
	assert.True(t, ok)
	assert.Equal(t, want, got)

	for _, raw := range []string{"", "not a date", "32.13.2025", "2025/99/99"} {
		got, ok = ParseDate(raw, []string{"02.01.2006", DateLayout})
		assert.False(t, ok, raw)
		assert.True(t, got.IsZero(), raw)
	}
}

func TestParseDateUnpadded(t *testing.T) {
	want := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	got, ok := ParseDate("2025-1-5", nil)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	checked := 0
	for _, f := range formats.Default().All() {
		for _, layout := range f.DateLayouts {
			var values []string
			switch layout {
			case "2006-1-2":
				values = []string{"2025-1-5", "2025-01-05"}
			case "2/1/2006":
				values = []string{"5/1/2025", "05/01/2025"}
			default:
				continue
			}

			for _, raw := range values {
				got, ok := ParseDate(raw, []string{layout})
				assert.True(t, ok, "%s %s %s", f.Key, layout, raw)
				assert.Equal(t, want, got, "%s %s %s", f.Key, layout, raw)
			}
			checked++
		}
	}
	assert.NotZero(t, checked)

	got, ok = ParseDate("2025-1-5", formats.Default().Generic().DateLayouts)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
