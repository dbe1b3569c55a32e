package numeric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseNumericOrDefault(t *testing.T) {
	t.Parallel()

	def := decimal.RequireFromString("-1")

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "dot decimal string", input: "99.90", want: "99.9"},
		{name: "comma decimal string", input: "12,50", want: "12.5"},
		{name: "brazilian thousands", input: "1.234,56", want: "1234.56"},
		{name: "us thousands", input: "1,234.56", want: "1234.56"},
		{name: "dot thousands", input: "1.234.567", want: "1234567"},
		{name: "negative dot thousands", input: "-12.345.678", want: "-12345678"},
		{name: "brazilian millions", input: "1.234.567,89", want: "1234567.89"},
		{name: "single dot is decimal", input: "1.234", want: "1.234"},
		{name: "uneven dot groups fall back", input: "1.23.456", want: "-1"},
		{name: "currency prefix", input: "R$ 10,00", want: "10"},
		{name: "padded", input: "  7 ", want: "7"},
		{name: "negative", input: "-3.5", want: "-3.5"},
		{name: "json number", input: json.Number("99.90"), want: "99.9"},
		{name: "float", input: 2.25, want: "2.25"},
		{name: "int", input: 4, want: "4"},
		{name: "int64", input: int64(9), want: "9"},
		{name: "nil falls back", input: nil, want: "-1"},
		{name: "empty falls back", input: "", want: "-1"},
		{name: "letters fall back", input: "abc", want: "-1"},
		{name: "trailing garbage falls back", input: "12abc", want: "-1"},
		{name: "several commas fall back", input: "1,2,3", want: "-1"},
		{name: "NaN falls back", input: math.NaN(), want: "-1"},
		{name: "bool falls back", input: true, want: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseNumericOrDefault(tt.input, def)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseNumeric_DefaultsToZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ParseNumeric("not a price").IsZero())
	assert.True(t, ParseNumeric(nil).IsZero())
	assert.Equal(t, "99.9", ParseNumeric("99.90").String())
}
