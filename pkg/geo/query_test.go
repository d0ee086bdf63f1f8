package geo

import (
	"testing"
)

func TestNewQuery(t *testing.T) {
	tests := []struct {
		name     string
		viewport Viewport
		expected Query
	}{
		{
			name:     "London",
			viewport: Viewport{North: 52, South: 51, East: 0.1, West: -0.1},
			expected: Query{XMin: -0.1, XMax: 0.1, YMin: 51, YMax: 52},
		},
		{
			name:     "Swapped edges",
			viewport: Viewport{North: 51, South: 52, East: -0.1, West: 0.1},
			expected: Query{XMin: -0.1, XMax: 0.1, YMin: 51, YMax: 52},
		},
		{
			name:     "Southern hemisphere",
			viewport: Viewport{North: -33.8, South: -34.0, East: 151.3, West: 151.1},
			expected: Query{XMin: 151.1, XMax: 151.3, YMin: -34.0, YMax: -33.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewQuery(tt.viewport)
			if got != tt.expected {
				t.Errorf("NewQuery(%v) = %+v, want %+v", tt.viewport, got, tt.expected)
			}
		})
	}
}

func TestQueryValues(t *testing.T) {
	q := NewQuery(Viewport{North: 52, South: 51, East: 0.1, West: -0.1})
	vals := q.Values()

	expected := map[string]string{
		"xmin": "-0.1",
		"xmax": "0.1",
		"ymin": "51",
		"ymax": "52",
	}
	for key, want := range expected {
		if got := vals.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if vals.Has("limit") {
		t.Error("limit should be omitted when zero")
	}
}

func TestQueryEncodeNoExponent(t *testing.T) {
	q := Query{XMin: 0.00001, XMax: 1e-7, YMin: 51.123456789, YMax: 52}
	got := q.Encode()
	want := "xmax=0.0000001&xmin=0.00001&ymax=52&ymin=51.123456789"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestQueryWithLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -5, want: 0},
		{in: 0, want: 0},
		{in: 250, want: 250},
		{in: 5000, want: MaxLimit},
	}

	for _, tt := range tests {
		q := Query{}.WithLimit(tt.in)
		if q.Limit != tt.want {
			t.Errorf("WithLimit(%d) = %d, want %d", tt.in, q.Limit, tt.want)
		}
	}

	if got := (Query{}).WithLimit(250).Values().Get("limit"); got != "250" {
		t.Errorf("limit param = %q, want 250", got)
	}
}
