package geo

import (
	"errors"
	"math"
)

// Point is a single indexed coordinate. ID carries the caller's identity for
// the point (an event id); the grid itself never interprets it.
type Point struct {
	ID  string
	Lat float64
	Lon float64
}

// Neighbor is a query result: an indexed point together with its exact
// Haversine distance from the query center.
type Neighbor struct {
	Point      Point
	DistanceKm float64
}

// ErrNoPoints is returned by BuildGrid when there is nothing to index.
var ErrNoPoints = errors.New("geo: no points to index")

// minCellSizeDeg floors the grid cell size so that very small clustering
// radii do not degenerate into one cell per point.
const minCellSizeDeg = 0.01

// boundsMarginFrac widens the bounding box on each side by this fraction of
// the coordinate span.
const boundsMarginFrac = 0.10

type cellKey struct {
	row int
	col int
}

// Grid is a uniform spatial index over a bounding region. Points are
// bucketed into cells sized relative to the clustering radius, so a radius
// query inspects only the cells overlapping the search circle instead of the
// whole point set.
//
// A Grid is built once per clustering run and is read-only afterwards.
type Grid struct {
	minLat, maxLat float64
	minLon, maxLon float64
	cellSizeDeg    float64
	cells          map[cellKey][]Point

	// dropped counts points that fell outside the bounding box at insert
	// time. The box is computed from the same point set, so this stays 0
	// unless callers insert after construction; it is kept visible because
	// out-of-bounds points are silently excluded from query results.
	dropped int
}

// BuildGrid indexes the given points for radius queries of roughly
// radiusKm. The bounding box of the inputs is widened by 10% on each side,
// and the cell size is derived from the radius (converted to degrees of
// latitude), scaled up mildly as the point count grows and floored at a
// minimum size to avoid degenerate single-point cells.
func BuildGrid(points []Point, radiusKm float64) (*Grid, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, errors.New("geo: radius must be a positive finite number")
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLon, maxLon := points[0].Lon, points[0].Lon
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}

	latMargin := (maxLat - minLat) * boundsMarginFrac
	lonMargin := (maxLon - minLon) * boundsMarginFrac
	// A cloud of (near-)coincident points has zero span; give it room so the
	// single occupied cell still has a box around it.
	if latMargin == 0 {
		latMargin = minCellSizeDeg
	}
	if lonMargin == 0 {
		lonMargin = minCellSizeDeg
	}

	cell := radiusKm / kmPerDegreeLat
	// Mild density scaling: bigger cells for bigger point sets keep the cell
	// map small without hurting the superset guarantee of queries.
	if n := len(points); n > 1000 {
		cell *= 1 + 0.25*math.Log10(float64(n)/1000)
	}
	if cell < minCellSizeDeg {
		cell = minCellSizeDeg
	}

	g := &Grid{
		minLat:      minLat - latMargin,
		maxLat:      maxLat + latMargin,
		minLon:      minLon - lonMargin,
		maxLon:      maxLon + lonMargin,
		cellSizeDeg: cell,
		cells:       make(map[cellKey][]Point, len(points)/2+1),
	}
	for _, p := range points {
		g.insert(p)
	}
	return g, nil
}

// insert buckets p into its cell. Points outside the bounding box are
// dropped rather than expanding the box; the box is derived from the indexed
// set itself, so this only fires for inputs the builder never saw.
func (g *Grid) insert(p Point) {
	if p.Lat < g.minLat || p.Lat > g.maxLat || p.Lon < g.minLon || p.Lon > g.maxLon {
		g.dropped++
		return
	}
	k := g.keyFor(p.Lat, p.Lon)
	g.cells[k] = append(g.cells[k], p)
}

// Dropped reports how many points were discarded at insert time for falling
// outside the index bounds.
func (g *Grid) Dropped() int { return g.dropped }

func (g *Grid) keyFor(lat, lon float64) cellKey {
	return cellKey{
		row: int(math.Floor((lat - g.minLat) / g.cellSizeDeg)),
		col: int(math.Floor((lon - g.minLon) / g.cellSizeDeg)),
	}
}

// Query returns every indexed point within radiusKm of the given center,
// with exact distances. It first collects candidates from the rectangular
// range of cells overlapping the search circle (always a superset of the
// circle), then filters them by Haversine distance, so results match an
// exhaustive scan over the indexed points.
func (g *Grid) Query(lat, lon, radiusKm float64) []Neighbor {
	if radiusKm <= 0 {
		return nil
	}

	latDelta := radiusKm / kmPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	// Near the poles one degree of longitude covers almost no distance;
	// widen to the full column range rather than dividing by ~0.
	var lonDelta float64
	if cosLat < 1e-6 {
		lonDelta = g.maxLon - g.minLon
	} else {
		lonDelta = radiusKm / (kmPerDegreeLonEquator * cosLat)
	}

	lo := g.keyFor(clamp(lat-latDelta, g.minLat, g.maxLat), clamp(lon-lonDelta, g.minLon, g.maxLon))
	hi := g.keyFor(clamp(lat+latDelta, g.minLat, g.maxLat), clamp(lon+lonDelta, g.minLon, g.maxLon))

	var out []Neighbor
	for row := lo.row; row <= hi.row; row++ {
		for col := lo.col; col <= hi.col; col++ {
			for _, p := range g.cells[cellKey{row: row, col: col}] {
				d := Distance(lat, lon, p.Lat, p.Lon)
				if d <= radiusKm {
					out = append(out, Neighbor{Point: p, DistanceKm: d})
				}
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
