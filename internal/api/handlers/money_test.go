package handlers_test

import (
	"encoding/json"
	"testing"

	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Cents(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr error
	}{
		{name: "json number", body: `{"buyThreshold": 15.5}`, want: 1550},
		{name: "json number with exponent", body: `{"buyThreshold": 1e3}`, want: 100000},
		{name: "json number with signed exponent", body: `{"buyThreshold": 1.5E+3}`, want: 150000},
		{name: "free text", body: `{"buyThreshold": "R$ 15,50"}`, want: 1550},
		{name: "exponent as text", body: `{"buyThreshold": "1e3"}`, want: 100000},
		{name: "json number out of range", body: `{"buyThreshold": 1e20}`, wantErr: domain.ErrInvalidValue},
		{name: "text out of range", body: `{"buyThreshold": "92233720368547758.08"}`, wantErr: domain.ErrInvalidValue},
		{name: "negative number", body: `{"buyThreshold": -1}`, wantErr: domain.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req handlers.OpenRoundRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			require.True(t, req.BuyThreshold.IsSet())

			got, err := req.BuyThreshold.Cents()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
