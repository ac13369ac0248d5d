package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/pkg/contracts/domain"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.Coordinate
	}{
		{name: "extra tokens ignored", in: "112.75, -7.25, 100, 5", want: domain.Coordinate{Longitude: 112.75, Latitude: -7.25, Valid: true}},
		{name: "no spaces", in: "110.4,-7.8", want: domain.Coordinate{Longitude: 110.4, Latitude: -7.8, Valid: true}},
		{name: "invalid", in: "invalid"},
		{name: "empty", in: ""},
		{name: "single number", in: "112.75"},
		{name: "text latitude", in: "112.75, utara"},
		{name: "latitude out of range", in: "-7.25, 112.75"},
		{name: "longitude out of range", in: "200, 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCoordinate(tt.in))
		})
	}
}

func TestPointBounds(t *testing.T) {
	assert.Nil(t, PointBounds(nil))

	b := PointBounds([]domain.MapPoint{
		{Longitude: 112.75, Latitude: -7.25},
		{Longitude: 110.4, Latitude: -7.8},
		{Longitude: 111, Latitude: -6.9},
	})
	require.NotNil(t, b)
	assert.Equal(t, domain.Bounds{MinLongitude: 110.4, MinLatitude: -7.8, MaxLongitude: 112.75, MaxLatitude: -6.9}, *b)
}
