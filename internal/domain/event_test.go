package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFix(t *testing.T) {
	fallback := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  RawEvent
		want Fix
	}{
		{
			name: "record timestamp wins",
			raw: RawEvent{
				Value:     []byte(`{"lat":37.7749,"lng":-122.4194,"accuracy":12.5,"timestamp":"2024-04-26T08:30:00-07:00"}`),
				Timestamp: fallback,
			},
			want: Fix{
				Coordinates: Coordinates{Latitude: 37.7749, Longitude: -122.4194},
				Accuracy:    12.5,
				Timestamp:   time.Date(2024, 4, 26, 15, 30, 0, 0, time.UTC),
			},
		},
		{
			name: "message timestamp fallback",
			raw: RawEvent{
				Value:     []byte(`{"lat":0,"lng":0}`),
				Timestamp: fallback,
			},
			want: Fix{Timestamp: fallback},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, reported, err := ParseFix(tt.raw)
			require.NoError(t, err)
			require.NoError(t, reported)
			if diff := cmp.Diff(tt.want, fix); diff != "" {
				t.Errorf("ParseFix() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFix_ClockFallback(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	fix, _, err := ParseFix(RawEvent{Value: []byte(`{"lat":1,"lng":2}`)})

	require.NoError(t, err)
	assert.Equal(t, now, fix.Timestamp)
}

func TestParseFix_ReportedFailure(t *testing.T) {
	_, reported, err := ParseFix(RawEvent{Value: []byte(`{"error":"kCLErrorLocationUnknown"}`)})

	require.NoError(t, err)
	require.Error(t, reported)
	assert.True(t, errors.Is(reported, ErrPositioning))
	assert.Contains(t, reported.Error(), "kCLErrorLocationUnknown")
}

func TestParseFix_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `{`,
		"missing lat":      `{"lng":1}`,
		"missing lng":      `{"lat":1}`,
		"lat out of range": `{"lat":91,"lng":0}`,
		"lng out of range": `{"lat":0,"lng":-181}`,
		"bad timestamp":    `{"lat":0,"lng":0,"timestamp":"yesterday"}`,
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, reported, err := ParseFix(RawEvent{Value: []byte(value)})
			assert.Error(t, err)
			assert.NoError(t, reported)
		})
	}
}

func TestSerializeResults(t *testing.T) {
	rating := 4.5
	results := SearchResults{
		Origin: Fix{Coordinates: Coordinates{Latitude: 1, Longitude: 2}},
		Terms:  Terms("ramen"),
		Restaurants: []Restaurant{
			{ID: "a", Name: "Ramen Ya", Rating: &rating},
			{ID: "b", Name: "Noodle Bar"},
		},
	}
	task := NewTask(results.Terms, nil)

	out, err := SerializeResults(task, results)

	require.NoError(t, err)
	assert.Equal(t, task.ID.String(), string(out.Key))
	assert.Equal(t, "2", out.Headers["result_count"])
	assert.Equal(t, "ramen", out.Headers["terms"])

	var decoded SearchResults
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Len(t, decoded.Restaurants, 2)
	assert.Equal(t, "Ramen Ya", decoded.Restaurants[0].Name)
}

func TestSerializeResults_NoTerms(t *testing.T) {
	out, err := SerializeResults(nil, SearchResults{})

	require.NoError(t, err)
	assert.Nil(t, out.Key)
	assert.Equal(t, "0", out.Headers["result_count"])
	assert.NotContains(t, out.Headers, "terms")
}
