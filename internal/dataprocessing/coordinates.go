package dataprocessing

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"pangandash/pkg/contracts/domain"
)

// ParseCoordinate reads a "longitude, latitude[, ...]" string. Tokens after the
// second are ignored. Malformed or out-of-range input gives the missing
// sentinel, which callers drop before plotting.
func ParseCoordinate(s string) domain.Coordinate {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return domain.Coordinate{}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinate{}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinate{}
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return domain.Coordinate{}
	}
	return domain.Coordinate{Longitude: lon, Latitude: lat, Valid: true}
}

// PointBounds returns the extent of points, or nil when there are none.
func PointBounds(points []domain.MapPoint) *domain.Bounds {
	if len(points) == 0 {
		return nil
	}
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p.Longitude, p.Latitude)
	}
	b := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	return &domain.Bounds{
		MinLongitude: b.Min(0),
		MinLatitude:  b.Min(1),
		MaxLongitude: b.Max(0),
		MaxLatitude:  b.Max(1),
	}
}
