package app

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEndDate(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	tests := []struct {
		name  string
		query string
		want  time.Time
	}{
		{"plain date covers the day", "endDate=2025-03-31", time.Date(2025, 3, 31, 23, 59, 59, 999999000, loc)},
		{"instant kept as is", "endDate=2025-03-31T12:00:00Z", time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/feedback/stats?"+tt.query, nil)
			got, err := queryEndDate(r, "endDate", loc)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}

	r := httptest.NewRequest("GET", "/api/feedback/stats", nil)
	got, err := queryEndDate(r, "endDate", loc)
	require.NoError(t, err)
	assert.Nil(t, got)

	r = httptest.NewRequest("GET", "/api/feedback/stats?endDate=31.03.2025", nil)
	_, err = queryEndDate(r, "endDate", loc)
	assert.Error(t, err)

	r = httptest.NewRequest("GET", "/api/feedback/stats?startDate=2025-03-31", nil)
	start, err := queryDate(r, "startDate", loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 3, 31, 0, 0, 0, 0, loc).Equal(*start))
}
