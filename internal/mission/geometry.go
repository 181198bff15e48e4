package mission

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// OverlayLatOffset is how far below the southernmost point the summary box sits.
const OverlayLatOffset = 3.0

// LeastLatitude returns the minimum latitude over every point of every path,
// or +Inf when there are no points.
func LeastLatitude(paths Paths) float64 {
	least := math.Inf(1)
	for _, p := range paths {
		for _, pt := range p.Line {
			least = math.Min(least, pt.Lat())
		}
	}
	return least
}

// AverageLongitude returns the mean longitude over every point of every path.
// Each point counts once regardless of which path it belongs to. With no
// points the result is NaN.
func AverageLongitude(paths Paths) float64 {
	var sum float64
	n := 0
	for _, p := range paths {
		for _, pt := range p.Line {
			sum += pt.Lon()
			n++
		}
	}
	return sum / float64(n)
}

// OverlayAnchor is where the summary box is placed: OverlayLatOffset degrees
// below the least latitude, at the average longitude.
func OverlayAnchor(paths Paths) orb.Point {
	return orb.Point{AverageLongitude(paths), LeastLatitude(paths) - OverlayLatOffset}
}

// PointCount returns the number of points over all paths.
func PointCount(paths Paths) int {
	n := 0
	for _, p := range paths {
		n += len(p.Line)
	}
	return n
}

// LengthKm is the haversine length of the path in kilometres.
func (p Path) LengthKm() float64 {
	if len(p.Line) < 2 {
		return 0
	}
	return geo.LengthHaversine(p.Line) / 1000
}

// FeatureCollection exports paths as GeoJSON line features carrying their
// draw color and terrain breakdown.
func FeatureCollection(paths Paths) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range paths {
		f := geojson.NewFeature(p.Line)
		f.Properties["name"] = p.Name
		f.Properties["color"] = ColorFor(i)
		f.Properties["length_km"] = math.Round(p.LengthKm()*100) / 100
		f.Properties["terrain"] = ClassLabels(p.Terrain)
		fc.Append(f)
	}
	return fc
}
