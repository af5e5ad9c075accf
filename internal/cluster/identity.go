package cluster

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StableKeyVersion prefixes every stable key so the derivation scheme can be
// revised without colliding with previously persisted definitions.
const StableKeyVersion = "v1"

// timeBucket is the window used to coarsen cluster start times in stable
// keys. Two runs over overlapping data that start within the same window map
// to the same persisted definition.
const timeBucket = 6 * time.Hour

// fallbackLocationSlug is used when the strongest event carries no usable
// place string.
const fallbackLocationSlug = "unknown-location"

// maxLocationSlugLen caps location slugs to keep keys and URLs short.
const maxLocationSlugLen = 30

// Summary is the derived, human-facing view of one cluster: the strongest
// event, magnitude statistics, time range, depth range, centroid and
// significance score. It is the input to stable keys, slugs and persistence.
type Summary struct {
	Strongest     Event
	MemberIDs     []string
	Count         int
	MaxMagnitude  float64
	MinMagnitude  float64
	MeanMagnitude float64
	Start         time.Time
	End           time.Time
	DurationHours float64
	DepthRange    string
	CentroidLat   float64
	CentroidLon   float64
	Score         float64
}

// Summarize computes the Summary of a non-empty cluster.
//
// The strongest event is the member with the highest magnitude (ties keep
// the first encountered). The centroid is the strongest event's coordinates,
// not a geometric mean, so the identity of a swarm follows its mainshock.
// The significance score is maxMagnitude * log10(memberCount), 0 for a
// single member.
func Summarize(c Cluster) Summary {
	s := Summary{MemberIDs: c.MemberIDs(), Count: len(c.Events)}
	if s.Count == 0 {
		return s
	}

	strongest := c.Events[0]
	minMag := c.Events[0].Magnitude
	sumMag := 0.0
	minT, maxT := c.Events[0].TimeMillis, c.Events[0].TimeMillis

	var depths []float64
	for _, e := range c.Events {
		if e.Magnitude > strongest.Magnitude {
			strongest = e
		}
		if e.Magnitude < minMag {
			minMag = e.Magnitude
		}
		sumMag += e.Magnitude
		if e.TimeMillis < minT {
			minT = e.TimeMillis
		}
		if e.TimeMillis > maxT {
			maxT = e.TimeMillis
		}
		if e.DepthKm != nil {
			depths = append(depths, *e.DepthKm)
		}
	}

	s.Strongest = strongest
	s.MaxMagnitude = strongest.Magnitude
	s.MinMagnitude = minMag
	s.MeanMagnitude = sumMag / float64(s.Count)
	s.Start = time.UnixMilli(minT).UTC()
	s.End = time.UnixMilli(maxT).UTC()
	s.DurationHours = s.End.Sub(s.Start).Hours()
	s.DepthRange = depthRange(depths)
	s.CentroidLat = strongest.Latitude
	s.CentroidLon = strongest.Longitude
	if s.Count > 0 {
		s.Score = s.MaxMagnitude * math.Log10(float64(s.Count))
	}
	return s
}

// IsSignificant reports whether the summarized cluster is eligible for
// identity assignment and persistence: it needs at least minMembers members
// and a strongest magnitude of at least minMagnitude.
func (s Summary) IsSignificant(minMembers int, minMagnitude float64) bool {
	return s.Count >= minMembers && s.MaxMagnitude >= minMagnitude
}

// StableKey derives the coarse identity "v1_{locationSlug}_{timeBucket}_{geoBucket}"
// under which recurring observations of the same swarm are persisted.
//
// The key intentionally ignores exact membership: the location slug and geo
// bucket come from the strongest event, and the time bucket floors the
// cluster start into 6-hour windows, so a re-clustering that picks up one
// more aftershock still maps to the same definition.
func (s Summary) StableKey() string {
	bucket := s.Start.UnixMilli() / timeBucket.Milliseconds()
	geoBucket := fmt.Sprintf("%.1f-%.1f", s.Strongest.Latitude, s.Strongest.Longitude)
	return fmt.Sprintf("%s_%s_%d_%s", StableKeyVersion, locationSlug(s.Strongest.Place), bucket, geoBucket)
}

// Slug builds the URL-safe, human-facing identifier
// "{count}-quakes-near-{loc}-m{maxMag}-{timePart}-{geoPart}" from the stable
// key's components. Unlike the stable key it embeds the member count and
// magnitude, so it is fixed at creation time (see the persistence layer) to
// keep public URLs stable across updates.
//
// If the stable key does not decompose into its four parts, the slug falls
// back to "skh" plus a short hash of the key.
func (s Summary) Slug() string {
	key := s.StableKey()
	parts := strings.SplitN(key, "_", 4)
	if len(parts) != 4 || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "skh" + shortHash(key)
	}
	return fmt.Sprintf("%d-quakes-near-%s-m%.1f-%s-%s",
		s.Count, parts[1], s.MaxMagnitude, parts[2], parts[3])
}

// LocationName returns the display form of the strongest event's region, as
// used in titles and persisted definitions.
func (s Summary) LocationName() string {
	return locationName(s.Strongest.Place)
}

// Title renders the human-readable headline for the cluster.
func (s Summary) Title() string {
	return fmt.Sprintf("%d Earthquakes Near %s (max M%.1f)",
		s.Count, locationName(s.Strongest.Place), s.MaxMagnitude)
}

// Description renders the one-paragraph summary used in listings.
func (s Summary) Description() string {
	return fmt.Sprintf(
		"A sequence of %d earthquakes near %s between %s and %s. "+
			"Magnitudes ranged from %.1f to %.1f (mean %.1f), depth %s.",
		s.Count,
		locationName(s.Strongest.Place),
		s.Start.Format(time.RFC3339),
		s.End.Format(time.RFC3339),
		s.MinMagnitude, s.MaxMagnitude, s.MeanMagnitude,
		s.DepthRange,
	)
}

// depthRange formats "{min}-{max}km" from the available member depths, or
// "Unknown" when no member reported one.
func depthRange(depths []float64) string {
	if len(depths) == 0 {
		return "Unknown"
	}
	min, max := depths[0], depths[0]
	for _, d := range depths[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return fmt.Sprintf("%.1f-%.1fkm", min, max)
}

var slugCleanRE = regexp.MustCompile(`[^a-z0-9]+`)

// locationSlug extracts the region from a USGS-style place string ("10km SW
// of Ridgecrest, CA" → everything after the last " of ") and sanitizes it to
// lowercase alphanumerics and hyphens, capped at 30 characters.
func locationSlug(place string) string {
	region := place
	if i := strings.LastIndex(place, " of "); i >= 0 {
		region = place[i+len(" of "):]
	}
	slug := slugCleanRE.ReplaceAllString(strings.ToLower(region), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxLocationSlugLen {
		slug = strings.Trim(slug[:maxLocationSlugLen], "-")
	}
	if slug == "" {
		return fallbackLocationSlug
	}
	return slug
}

// titleCaser capitalizes all-lowercase region strings for display. Feed
// strings that already carry case (like "Ridgecrest, CA") are left alone.
var titleCaser = cases.Title(language.English)

// locationName is the display form of the region used in titles.
func locationName(place string) string {
	region := place
	if i := strings.LastIndex(place, " of "); i >= 0 {
		region = place[i+len(" of "):]
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return "an unknown location"
	}
	if region == strings.ToLower(region) {
		return titleCaser.String(region)
	}
	return region
}

// shortHash returns a compact hex digest for slug fallbacks.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())[:10]
}
