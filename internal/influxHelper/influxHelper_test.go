package influxHelper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/finimporter/pkg/categorizer"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

func TestImportPoint(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	pt, err := ImportPoint("imports", &financialimporter.ImportResult{
		RunID:          "run-1",
		AccountID:      "acct",
		FormatKey:      "ubs",
		TotalRows:      12,
		Imported:       9,
		DuplicateCount: 2,
		ErrorCount:     1,
	}, at)
	require.NoError(t, err)

	assert.Equal(t, "imports", pt.Name())
	assert.Equal(t, map[string]string{"account": "acct", "format": "ubs"}, pt.Tags())
	assert.Equal(t, at, pt.Time())

	fields, err := pt.Fields()
	require.NoError(t, err)
	assert.Equal(t, int64(9), fields["imported"])
	assert.Equal(t, int64(2), fields["duplicates"])
	assert.Equal(t, int64(1), fields["errors"])
	assert.Equal(t, int64(12), fields["total_rows"])
	assert.Equal(t, "run-1", fields["run_id"])
}

func TestCategorizationPoint(t *testing.T) {
	pt, err := CategorizationPoint("imports_categorization", &categorizer.PassResult{
		Examined:   5,
		Updated:    3,
		ByCategory: map[categorizer.Category]int{categorizer.Dining: 3},
	}, time.Now())
	require.NoError(t, err)

	fields, err := pt.Fields()
	require.NoError(t, err)
	assert.Equal(t, int64(5), fields["examined"])
	assert.Equal(t, int64(3), fields["updated"])
	assert.Empty(t, pt.Tags())
}
