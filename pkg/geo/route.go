package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// RouteLength returns the haversine length of the route in meters.
func RouteLength(route orb.LineString) float64 {
	if len(route) < 2 {
		return 0
	}
	return orbgeo.LengthHaversign(route)
}

// PointAlong returns the point at the given fraction (0..1) of the route's length.
// ok is false for an empty route.
func PointAlong(route orb.LineString, fraction float64) (p orb.Point, ok bool) {
	switch len(route) {
	case 0:
		return orb.Point{}, false
	case 1:
		return route[0], true
	}
	fraction = math.Max(0, math.Min(1, fraction))
	want := RouteLength(route) * fraction

	var walked float64
	for i := 1; i < len(route); i++ {
		a, b := route[i-1], route[i]
		leg := orbgeo.DistanceHaversine(a, b)
		if walked+leg >= want && leg > 0 {
			t := (want - walked) / leg
			return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}, true
		}
		walked += leg
	}
	return route[len(route)-1], true
}

// HeadingAlong returns the bearing in degrees [0, 360) of the route leg at fraction.
func HeadingAlong(route orb.LineString, fraction float64) float64 {
	if len(route) < 2 {
		return 0
	}
	p, _ := PointAlong(route, fraction)
	next, _ := PointAlong(route, math.Min(1, fraction+0.01))
	if p.Equal(next) {
		p = route[len(route)-2]
		next = route[len(route)-1]
	}
	return math.Mod(orbgeo.Bearing(p, next)+360, 360)
}

// CardinalDirection maps a bearing to an 8-point compass label.
func CardinalDirection(bearing float64) string {
	dirs := []string{"north", "north-east", "east", "south-east", "south", "south-west", "west", "north-west"}
	idx := int(math.Round(math.Mod(bearing+360, 360)/45)) % 8
	return dirs[idx]
}

// DescribeProgress renders a short, prompt-friendly position hint for the
// segment index (1-based) of total. It returns "" when the route is unknown.
func DescribeProgress(route orb.LineString, index, total int) string {
	if len(route) < 2 || total <= 0 {
		return ""
	}
	frac := float64(index-1) / float64(total)
	p, _ := PointAlong(route, frac)
	remaining := RouteLength(route) * (1 - frac)
	return fmt.Sprintf("About %.0f%% of the way, near %.4f, %.4f, heading %s with %.1f km to go.",
		frac*100, p.Lat(), p.Lon(), CardinalDirection(HeadingAlong(route, frac)), remaining/1000)
}
