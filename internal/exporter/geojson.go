package exporter

import (
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"pangandash/pkg/contracts/domain"
)

// FeatureCollection converts the points of every coordinates result into
// GeoJSON features. Each feature carries its group, label and row.
func FeatureCollection(results []domain.AggregateResult) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0)}

	var flat []float64
	for _, r := range results {
		if r.Op != domain.OpCoordinates {
			continue
		}
		for _, p := range r.Points {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry: geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}),
				Properties: map[string]interface{}{
					"group": r.Group,
					"label": p.Label,
					"row":   p.Row,
				},
			})
			flat = append(flat, p.Longitude, p.Latitude)
		}
	}
	if len(flat) > 0 {
		fc.BBox = geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	}
	return fc
}

// WriteGeoJSON writes the coordinate results as a FeatureCollection.
func WriteGeoJSON(w io.Writer, results []domain.AggregateResult) error {
	data, err := FeatureCollection(results).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
