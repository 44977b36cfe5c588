package geo

import (
	"errors"
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// SITES
// Touchdown sites are stored as XYZ points with X = longitude, Y = latitude (degrees) and
// Z = surface altitude. Bodies are treated as spheres, so no projection is applied.
// Geometry data is stored in the WKB format, which is a binary representation of the geometry data.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LatLon is a position on a body surface in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p LatLon) valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) && math.Abs(p.Lat) <= 90
}

// SitePoint builds the stored touchdown geometry.
func SitePoint(p LatLon, altitude float64) (geom.Point, error) {
	if !p.valid() || math.IsNaN(altitude) {
		return geom.NewEmptyPoint(geom.DimXYZ), ErrInvalidCoordinates
	}
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.Lon, Y: p.Lat},
		Z:    altitude,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), fmt.Errorf("touchdown site: %w", err)
	}
	return pt, nil
}

// SiteFromPoint is the inverse of SitePoint.
func SiteFromPoint(pt geom.Point) (LatLon, float64, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return LatLon{}, 0, ErrInvalidCoordinates
	}
	return LatLon{Lat: c.Y, Lon: c.X}, c.Z, nil
}

// SurfaceDistance is the great-circle distance between a and b on a sphere of the given radius.
func SurfaceDistance(a, b LatLon, radius float64) (float64, error) {
	if !a.valid() || !b.valid() || radius <= 0 {
		return 0, ErrInvalidCoordinates
	}
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * radius * math.Asin(math.Min(1, math.Sqrt(h))), nil
}

// GroundTrack turns the sub-vehicle points of a descent into a line string.
// Fewer than two distinct points yield an empty line and no error.
func GroundTrack(points []LatLon) (geom.LineString, error) {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		if !p.valid() {
			continue
		}
		n := len(flat)
		if n >= 2 && flat[n-2] == p.Lon && flat[n-1] == p.Lat {
			continue
		}
		flat = append(flat, p.Lon, p.Lat)
	}
	if len(flat) < 4 {
		return geom.LineString{}, nil
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("ground track of %d points: %w", len(flat)/2, err)
	}
	return ls, nil
}
