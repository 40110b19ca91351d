package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	supported := r.Supported()
	assert.Len(t, supported, len(r.All())-1)
	for _, s := range supported {
		assert.NotEqual(t, Generic, s.Key)
	}

	ubs, ok := r.Lookup("UBS")
	require.True(t, ok)
	assert.Equal(t, "UBS (Switzerland)", ubs.Name)
	assert.Equal(t, ';', ubs.Comma())
	assert.Equal(t, byte('.'), ubs.Decimal())

	dnb, ok := r.Lookup("dnb")
	require.True(t, ok)
	assert.Equal(t, "NO", dnb.Country)

	assert.Equal(t, Generic, r.Generic().Key)
}

func TestLoadRequiresGeneric(t *testing.T) {
	_, err := Load([]byte(`
formats:
- key: mybank
  name: My Bank
  dateColumns: [Date]
  amountColumns: [Amount]
  dateLayouts: ["2006-01-02"]
  encoding: utf-8
  delimiter: ","
  decimalSeparator: "."
`))
	assert.Error(t, err)
}

func TestLoadRejectsBadDelimiter(t *testing.T) {
	_, err := Load([]byte(`
formats:
- key: generic
  name: Generic
  dateColumns: [Date]
  amountColumns: [Amount]
  delimiter: ",;"
  decimalSeparator: "."
`))
	assert.Error(t, err)
}

func TestDetectByFilename(t *testing.T) {
	d := Default().Detect("anything,at,all\n", "PostFinance-Export-2025.csv")

	assert.True(t, d.ByFilename)
	assert.Equal(t, Key("postfinance"), d.Format.Key)
	assert.Equal(t, ';', d.Delimiter)
}

func TestDetectByHeader(t *testing.T) {
	d := Default().Detect("Valuta;Betrag\n01.01.2025;-12.50\n", "")

	assert.False(t, d.ByFilename)
	assert.Equal(t, Key("ubs"), d.Format.Key)
	assert.Equal(t, 25, d.Score)
	assert.Equal(t, ';', d.Delimiter)
}

func TestDetectDelimiterOnlyFallsBackToGeneric(t *testing.T) {
	d := Default().Detect("foo;bar;baz\n1;2;3\n", "")

	assert.Equal(t, Generic, d.Format.Key)
	assert.Equal(t, 5, d.Score)
	assert.Equal(t, ';', d.Delimiter)
}

func TestDetectSingleColumnFallsBackToGeneric(t *testing.T) {
	d := Default().Detect("just one column\n", "")

	assert.Equal(t, Generic, d.Format.Key)
	assert.Equal(t, ',', d.Delimiter)
}

func TestScore(t *testing.T) {
	ubs, _ := Default().Lookup("ubs")
	present := map[string]bool{"valuta": true, "betrag": true, "buchungstext": true}

	assert.Equal(t, 30, Score(ubs, present, ';'))
	assert.Equal(t, 25, Score(ubs, present, ','))
	assert.Equal(t, 5, Score(ubs, map[string]bool{}, ';'))
}

func TestFindColumn(t *testing.T) {
	headers := []string{" Datum ", "Text", "BETRAG"}

	assert.Equal(t, 2, FindColumn(headers, []string{"Amount", "Betrag"}))
	assert.Equal(t, 0, FindColumn(headers, []string{"datum"}))
	assert.Equal(t, 1, FindColumn(headers, []string{"Text", "Datum"}))
	assert.Equal(t, -1, FindColumn(headers, []string{"Valuta"}))
}
