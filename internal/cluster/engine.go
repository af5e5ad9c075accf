package cluster

import (
	"sort"
	"strings"

	"github.com/seismolab/go-quake-backend/internal/geo"
)

// Cluster is an ephemeral, request-scoped grouping of events, ordered by
// discovery. It has no identity beyond its membership; durable identities
// are derived separately (see Summarize and StableKey).
type Cluster struct {
	Events []Event `json:"events"`
}

// MemberIDs returns the member event ids in discovery order.
func (c Cluster) MemberIDs() []string {
	ids := make([]string, len(c.Events))
	for i, e := range c.Events {
		ids[i] = e.ID
	}
	return ids
}

// fingerprint is a canonical key for the member-id set, used to suppress
// duplicate clusters without comparing every pair of emitted clusters.
func (c Cluster) fingerprint() string {
	ids := c.MemberIDs()
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

// Result carries the clusters produced by one run plus its diagnostics.
type Result struct {
	Clusters []Cluster
	// Strategy is "direct" or "indexed" — whichever actually ran.
	Strategy string
	// IndexFallback is true when the indexed strategy was selected but index
	// construction failed and the run degraded to the direct scan.
	IndexFallback bool
}

// Option configures a clustering run.
type Option func(*options)

type options struct {
	indexThreshold int
	forceDirect    bool
	profiler       Profiler
}

// defaultIndexThreshold is the event count above which the spatial index is
// used for neighbor discovery.
const defaultIndexThreshold = 100

func defaultOptions() options {
	return options{
		indexThreshold: defaultIndexThreshold,
		profiler:       nopProfiler{},
	}
}

// WithIndexThreshold overrides the event count above which the indexed
// strategy is selected. Non-positive values keep the default.
func WithIndexThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.indexThreshold = n
		}
	}
}

// WithDirectOnly forces the direct pairwise scan regardless of input size.
// Used by tests and by callers comparing strategies.
func WithDirectOnly() Option {
	return func(o *options) { o.forceDirect = true }
}

// WithProfiler attaches stage timing instrumentation to the run.
func WithProfiler(p Profiler) Option {
	return func(o *options) {
		if p != nil {
			o.profiler = p
		}
	}
}

// Group clusters events by proximity: each unprocessed event, visited in
// magnitude-descending order, seeds a cluster that absorbs every other
// unprocessed event within maxDistanceKm of it. Groups smaller than
// minMembers are discarded, but their members still count as processed so no
// event is reused. Clusters whose member-id set duplicates an earlier one in
// the same run are suppressed.
//
// Above the index threshold neighbor discovery is delegated to a geo.Grid;
// both strategies produce identical membership, and the run degrades to the
// direct scan if index construction fails.
func Group(events []Event, maxDistanceKm float64, minMembers int, opts ...Option) Result {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	if len(events) == 0 || maxDistanceKm <= 0 || minMembers <= 0 {
		return Result{Strategy: "direct"}
	}

	ordered := bySeedPriority(events)

	if !o.forceDirect && len(events) > o.indexThreshold {
		var grid *geo.Grid
		var err error
		timed(o.profiler, "index_build", func() {
			grid, err = geo.BuildGrid(toGridPoints(events), maxDistanceKm)
		})
		if err == nil {
			res := Result{Strategy: "indexed"}
			timed(o.profiler, "grouping", func() {
				res.Clusters = groupIndexed(ordered, grid, maxDistanceKm, minMembers)
			})
			return res
		}
		// Index construction failing is never fatal to the request.
		res := Result{Strategy: "direct", IndexFallback: true}
		timed(o.profiler, "grouping", func() {
			res.Clusters = groupDirect(ordered, maxDistanceKm, minMembers)
		})
		return res
	}

	res := Result{Strategy: "direct"}
	timed(o.profiler, "grouping", func() {
		res.Clusters = groupDirect(ordered, maxDistanceKm, minMembers)
	})
	return res
}

// bySeedPriority returns the events sorted by magnitude descending; ties
// keep input order so runs are deterministic.
func bySeedPriority(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Magnitude > out[j].Magnitude
	})
	return out
}

func toGridPoints(events []Event) []geo.Point {
	pts := make([]geo.Point, len(events))
	for i, e := range events {
		pts[i] = geo.Point{ID: e.ID, Lat: e.Latitude, Lon: e.Longitude}
	}
	return pts
}

// groupDirect scans all unprocessed events for each seed.
func groupDirect(ordered []Event, maxDistanceKm float64, minMembers int) []Cluster {
	processed := make(map[string]bool, len(ordered))
	seen := make(map[string]bool)
	var out []Cluster

	for i, seed := range ordered {
		if processed[seed.ID] {
			continue
		}
		members := []Event{seed}
		for j, cand := range ordered {
			if j == i || processed[cand.ID] {
				continue
			}
			d := geo.Distance(seed.Latitude, seed.Longitude, cand.Latitude, cand.Longitude)
			if d <= maxDistanceKm {
				members = append(members, cand)
			}
		}
		out = emit(out, members, processed, seen, minMembers)
	}
	return out
}

// groupIndexed is the same greedy pass with neighbor discovery delegated to
// the grid. Membership is identical to groupDirect because the grid query
// returns exactly the points within the radius.
func groupIndexed(ordered []Event, grid *geo.Grid, maxDistanceKm float64, minMembers int) []Cluster {
	byID := make(map[string]Event, len(ordered))
	for _, e := range ordered {
		byID[e.ID] = e
	}
	processed := make(map[string]bool, len(ordered))
	seen := make(map[string]bool)
	var out []Cluster

	for _, seed := range ordered {
		if processed[seed.ID] {
			continue
		}
		members := []Event{seed}
		for _, n := range grid.Query(seed.Latitude, seed.Longitude, maxDistanceKm) {
			if n.Point.ID == seed.ID || processed[n.Point.ID] {
				continue
			}
			if e, ok := byID[n.Point.ID]; ok {
				members = append(members, e)
			}
		}
		out = emit(out, members, processed, seen, minMembers)
	}
	return out
}

// emit marks the group's members processed, applies the minimum-size and
// duplicate-suppression rules, and appends the surviving cluster.
func emit(out []Cluster, members []Event, processed, seen map[string]bool, minMembers int) []Cluster {
	for _, m := range members {
		processed[m.ID] = true
	}
	if len(members) < minMembers {
		return out
	}
	c := Cluster{Events: members}
	fp := c.fingerprint()
	if seen[fp] {
		return out
	}
	seen[fp] = true
	return append(out, c)
}
