package engine_test

import (
	"testing"

	"github.com/dom/stream-games/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoneyToCents(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr error
	}{
		{name: "comma decimal", raw: "15,50", want: 1550},
		{name: "dot decimal", raw: "20.00", want: 2000},
		{name: "integer", raw: "230", want: 23000},
		{name: "currency symbol", raw: "R$ 9,99", want: 999},
		{name: "thousands dot and decimal comma", raw: "1.234,56", want: 123456},
		{name: "rounds to nearest cent", raw: "0,005", want: 1},
		{name: "surrounding text", raw: "  uns 25,00 reais ", want: 2500},
		{name: "zero", raw: "0", want: 0},
		{name: "empty", raw: "", wantErr: engine.ErrNotNumeric},
		{name: "letters only", raw: "abc", wantErr: engine.ErrNotNumeric},
		{name: "two commas", raw: "1,2,3", wantErr: engine.ErrNotNumeric},
		{name: "negative", raw: "-5,00", wantErr: engine.ErrNegative},
		{name: "exponent", raw: "1e3", want: 100000},
		{name: "signed exponent", raw: "1.5E+3", want: 150000},
		{name: "negative exponent", raw: "25e-1", want: 250},
		{name: "tiny exponent", raw: "1e-9", want: 0},
		{name: "largest amount", raw: "92233720368547758.07", want: 9223372036854775807},
		{name: "one cent past int64", raw: "92233720368547758.08", wantErr: engine.ErrOutOfRange},
		{name: "wraps to a small amount", raw: "184467440737095532.16", wantErr: engine.ErrOutOfRange},
		{name: "huge with separators", raw: "R$ 999.999.999.999.999.999.999,00", wantErr: engine.ErrOutOfRange},
		{name: "huge exponent", raw: "1e999999999", wantErr: engine.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ParseMoneyToCents(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNumberToCents(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		want    int64
		wantErr error
	}{
		{name: "integer", literal: "42", want: 4200},
		{name: "fraction", literal: "15.5", want: 1550},
		{name: "exponent", literal: "1e3", want: 100000},
		{name: "signed exponent", literal: "1.5E+3", want: 150000},
		{name: "comma is not a decimal mark here", literal: "15,5", wantErr: engine.ErrNotNumeric},
		{name: "negative", literal: "-1", wantErr: engine.ErrNegative},
		{name: "too large", literal: "1e17", wantErr: engine.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ParseNumberToCents(tt.literal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "15,50", engine.FormatCents(1550))
	assert.Equal(t, "0,07", engine.FormatCents(7))
	assert.InDelta(t, 15.5, engine.CentsToUnits(1550), 0.0001)
}
