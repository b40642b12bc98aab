package geozone

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// boundsPadding widens every box so that points on a border and
// degenerate (flat) boxes still produce valid, overlapping rectangles.
const boundsPadding = 1.0

// zoneEntry wraps a zone for R-tree storage.
type zoneEntry struct {
	idx  int
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *zoneEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// zoneIndex answers which zones a point or segment can possibly touch.
type zoneIndex struct {
	tree *rtreego.Rtree
	n    int
}

func newZoneIndex(zones []Zone) *zoneIndex {
	tree := rtreego.NewTree(2, 2, 8)
	for i := range zones {
		lo, hi := zones[i].Shape.Bounds()
		bbox, err := paddedRect(lo, hi)
		if err != nil {
			continue
		}
		tree.Insert(&zoneEntry{idx: i, bbox: bbox})
	}
	return &zoneIndex{tree: tree, n: len(zones)}
}

func paddedRect(lo, hi r2.Vec) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{lo.X - boundsPadding, lo.Y - boundsPadding},
		[]float64{hi.X - lo.X + 2*boundsPadding, hi.Y - lo.Y + 2*boundsPadding},
	)
}

// query returns the indices of zones whose boxes overlap the box spanned by
// the points, in ascending order so callers see zones in registry order.
func (ix *zoneIndex) query(points ...r3.Vec) []int {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range points {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	bbox, err := paddedRect(lo, hi)
	if err != nil {
		// Not a usable box (NaN input), let the caller test everything.
		all := make([]int, ix.n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	results := ix.tree.SearchIntersect(bbox)
	out := make([]int, 0, len(results))
	for _, item := range results {
		out = append(out, item.(*zoneEntry).idx)
	}
	sort.Ints(out)
	return out
}
