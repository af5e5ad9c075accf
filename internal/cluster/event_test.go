package cluster

import (
	"math"
	"testing"
)

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
func i64p(i int64) *int64     { return &i }

func TestParseEvents_ValidElement(t *testing.T) {
	events, skipped := ParseEvents([]RawEvent{{
		ID:         strp("ev1"),
		Magnitude:  f64p(4.2),
		TimeMillis: i64p(1700000000000),
		Place:      strp("10km SW of Ridgecrest, CA"),
		Latitude:   f64p(35.6),
		Longitude:  f64p(-117.6),
		DepthKm:    f64p(8.1),
	}})
	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", skipped)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID != "ev1" || e.Magnitude != 4.2 || e.Latitude != 35.6 || e.Longitude != -117.6 {
		t.Fatalf("unexpected event fields: %+v", e)
	}
	if e.DepthKm == nil || *e.DepthKm != 8.1 {
		t.Fatalf("depth not carried over: %+v", e.DepthKm)
	}
}

func TestParseEvents_InvalidElementsAreSkippedNotFatal(t *testing.T) {
	raw := []RawEvent{
		{ID: nil, Latitude: f64p(1), Longitude: f64p(1)},                            // missing id
		{ID: strp(""), Latitude: f64p(1), Longitude: f64p(1)},                       // empty id
		{ID: strp("no-coords")},                                                     // missing coordinates
		{ID: strp("nan"), Latitude: f64p(math.NaN()), Longitude: f64p(1)},           // NaN
		{ID: strp("inf"), Latitude: f64p(1), Longitude: f64p(math.Inf(1))},          // Inf
		{ID: strp("ok"), Latitude: f64p(10), Longitude: f64p(20)},                   // valid
	}
	events, skipped := ParseEvents(raw)
	if len(events) != 1 || events[0].ID != "ok" {
		t.Fatalf("expected only the valid event to survive, got %+v", events)
	}
	if len(skipped) != 5 {
		t.Fatalf("expected 5 skipped elements, got %d: %+v", len(skipped), skipped)
	}
	for _, s := range skipped {
		if s.Reason == "" {
			t.Errorf("skip at index %d has no reason", s.Index)
		}
	}
}

func TestParseEvents_OptionalFieldsDefault(t *testing.T) {
	events, _ := ParseEvents([]RawEvent{{
		ID: strp("bare"), Latitude: f64p(0), Longitude: f64p(0),
	}})
	if len(events) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := events[0]
	if e.Magnitude != 0 || e.TimeMillis != 0 || e.Place != "" || e.DepthKm != nil {
		t.Fatalf("optional fields should default to zero values: %+v", e)
	}
}
