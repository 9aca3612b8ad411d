package vectorfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depowered/culvertvision/internal/core/domain"
)

func TestParseAOI_FeatureCollectionWithCRS(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::6344"}},
		"features": [
			{"type": "Feature", "properties": {"id": 1}, "geometry": {"type": "Point", "coordinates": [689500, 5290500]}}
		]
	}`)
	aoi, err := ParseAOI(data)
	require.NoError(t, err)
	assert.Equal(t, domain.EPSG(6344), aoi.CRS)
	require.Len(t, aoi.Geometries, 1)
	assert.Equal(t, orb.Point{689500, 5290500}, aoi.Geometries[0])
}

func TestParseAOI_DefaultsToWGS84(t *testing.T) {
	aoi, err := ParseAOI([]byte(`{"type":"Polygon","coordinates":[[[-93,45],[-92,45],[-92,46],[-93,45]]]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EPSG(4326), aoi.CRS)
	require.Len(t, aoi.Geometries, 1)
	_, ok := aoi.Geometries[0].(orb.Polygon)
	assert.True(t, ok)

	aoi, err = ParseAOI([]byte(`{"type":"Feature","properties":null,"geometry":{"type":"Point","coordinates":[-93,45]}}`))
	require.NoError(t, err)
	assert.Len(t, aoi.Geometries, 1)
}

func TestParseAOI_Invalid(t *testing.T) {
	_, err := ParseAOI([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ParseAOI([]byte(`{"type":"Point","crs":{"type":"name","properties":{"name":"bogus"}},"coordinates":[0,0]}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTileIndexFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "tile_index.geojson")
	file := NewTileIndexFile(path)

	_, err := file.CRS(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	index := &domain.TileIndex{
		CRS: domain.EPSG(6344),
		Records: []domain.TileRecord{
			{TileName: "15TXN689290", Workunit: "MN_A", Geometry: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}.ToPolygon()},
			{TileName: "15TXN690290", Workunit: "MN_A", Geometry: orb.Bound{Min: orb.Point{10, 0}, Max: orb.Point{20, 10}}.ToPolygon()},
		},
	}
	require.NoError(t, file.ReplaceAll(context.Background(), index))

	crs, err := file.CRS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EPSG(6344), crs)

	all, err := file.Load(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all.Records, 2)
	assert.Equal(t, "15TXN690290", all.Records[1].TileName)
	assert.Equal(t, "MN_A", all.Records[1].Workunit)

	some, err := file.Load(context.Background(), &orb.Bound{Min: orb.Point{15, 5}, Max: orb.Point{16, 6}})
	require.NoError(t, err)
	require.Len(t, some.Records, 1)
	assert.Equal(t, "15TXN690290", some.Records[0].TileName)
}

func TestDecodeTiles_DropsExtraAndRejectsMissing(t *testing.T) {
	ok := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"t1","workunit":"w","ept_json_url":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}
	]}`)
	index, err := DecodeTiles(ok)
	require.NoError(t, err)
	assert.Equal(t, DefaultCRS, index.CRS)
	assert.Equal(t, "t1", index.Records[0].TileName)

	bad := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"tile_name":"t1"},"geometry":{"type":"Point","coordinates":[1,2]}}
	]}`)
	_, err = DecodeTiles(bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReadAOI_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Point","coordinates":[-93,45]}`), 0o644))
	aoi, err := ReadAOI(path)
	require.NoError(t, err)
	assert.Len(t, aoi.Geometries, 1)
}
