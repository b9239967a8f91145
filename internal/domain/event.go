package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// RawEvent represents an unprocessed message from the location fix topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawFixRecord is the JSON shape of a location fix message. A non-empty Error
// reports a positioning failure instead of a fix.
type RawFixRecord struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"` // RFC 3339
	Error     string   `json:"error,omitempty"`
}

// ErrPositioning is the cause recorded for failures read off the fix topic.
var ErrPositioning = errors.New("positioning failed")

// ParseFix decodes a raw message into either a fix or a reported positioning
// failure (returned as reported, with a nil error). Malformed messages return
// an error.
func ParseFix(raw RawEvent) (fix Fix, reported error, err error) {
	var rec RawFixRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Fix{}, nil, fmt.Errorf("parse location fix: %w", err)
	}

	if rec.Error != "" {
		return Fix{}, fmt.Errorf("%w: %s", ErrPositioning, rec.Error), nil
	}

	if rec.Lat == nil || rec.Lng == nil {
		return Fix{}, nil, errors.New("parse location fix: missing lat/lng")
	}
	coords := Coordinates{Latitude: *rec.Lat, Longitude: *rec.Lng}
	if !coords.Valid() {
		return Fix{}, nil, fmt.Errorf("parse location fix: coordinates out of range: %s", coords)
	}

	ts := raw.Timestamp
	if rec.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			return Fix{}, nil, fmt.Errorf("parse location fix timestamp: %w", err)
		}
		ts = parsed
	}
	if ts.IsZero() {
		ts = clock.Now()
	}

	return Fix{Coordinates: coords, Accuracy: rec.Accuracy, Timestamp: ts.UTC()}, nil, nil
}

// OutputEvent is the serialized form destined for the results topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeResults marshals a completed search, keyed by the task that
// produced it.
func SerializeResults(task *Task, results SearchResults) (OutputEvent, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize search results: %w", err)
	}

	headers := map[string]string{
		"result_count": strconv.Itoa(len(results.Restaurants)),
	}
	if results.Terms != nil {
		headers["terms"] = *results.Terms
	}

	var key []byte
	if task != nil {
		key = []byte(task.ID.String())
	}
	return OutputEvent{Key: key, Value: data, Headers: headers}, nil
}
