// Package cluster groups geolocated earthquake events by proximity and
// derives durable identities for groupings that cross a significance
// threshold. Like the rest of the core, it is deterministic and does no
// logging of its own: diagnostics are returned to the caller.
package cluster

import (
	"fmt"
	"math"
	"time"
)

// Event is an immutable point record being clustered. Instances are built by
// ParseEvents, which guarantees ID is non-empty and the coordinates are
// finite numbers.
type Event struct {
	ID         string   `json:"id"`
	Magnitude  float64  `json:"magnitude"`
	TimeMillis int64    `json:"time"`
	Place      string   `json:"place,omitempty"`
	Longitude  float64  `json:"longitude"`
	Latitude   float64  `json:"latitude"`
	DepthKm    *float64 `json:"depth_km,omitempty"`
}

// Time returns the event timestamp as a UTC time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TimeMillis).UTC()
}

// RawEvent is the wire shape of an event before validation. Pointer fields
// distinguish "absent" from zero values so malformed elements can be
// reported precisely.
type RawEvent struct {
	ID         *string  `json:"id"`
	Magnitude  *float64 `json:"magnitude"`
	TimeMillis *int64   `json:"time"`
	Place      *string  `json:"place"`
	Longitude  *float64 `json:"longitude"`
	Latitude   *float64 `json:"latitude"`
	DepthKm    *float64 `json:"depth_km"`
}

// Skipped describes one input element excluded from clustering, by its
// position in the request payload.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ParseEvents validates raw input elements into Events. Elements lacking an
// id, or whose coordinates are missing or not finite, are reported in the
// second return value and excluded; they never fail the whole batch.
func ParseEvents(raw []RawEvent) ([]Event, []Skipped) {
	events := make([]Event, 0, len(raw))
	var skipped []Skipped

	for i, r := range raw {
		if r.ID == nil || *r.ID == "" {
			skipped = append(skipped, Skipped{Index: i, Reason: "missing id"})
			continue
		}
		if r.Latitude == nil || r.Longitude == nil {
			skipped = append(skipped, Skipped{Index: i, Reason: fmt.Sprintf("event %s: missing coordinates", *r.ID)})
			continue
		}
		if !isFinite(*r.Latitude) || !isFinite(*r.Longitude) {
			skipped = append(skipped, Skipped{Index: i, Reason: fmt.Sprintf("event %s: non-finite coordinates", *r.ID)})
			continue
		}

		e := Event{
			ID:        *r.ID,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
			DepthKm:   r.DepthKm,
		}
		if r.Magnitude != nil {
			e.Magnitude = *r.Magnitude
		}
		if r.TimeMillis != nil {
			e.TimeMillis = *r.TimeMillis
		}
		if r.Place != nil {
			e.Place = *r.Place
		}
		events = append(events, e)
	}
	return events, skipped
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
