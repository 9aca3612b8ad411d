// Package vectorfile reads and writes AOIs and tile indexes as GeoJSON.
package vectorfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// DefaultCRS applies to GeoJSON without a crs member.
var DefaultCRS = domain.EPSG(4326)

// ReadAOI loads an AOI from a GeoJSON file.
func ReadAOI(path string) (domain.AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AOI{}, fmt.Errorf("read aoi: %w", err)
	}
	return ParseAOI(data)
}

// ParseAOI accepts a FeatureCollection, a Feature or a bare geometry.
func ParseAOI(data []byte) (domain.AOI, error) {
	var head struct {
		Type string          `json:"type"`
		CRS  json.RawMessage `json:"crs"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return domain.AOI{}, &domain.ValidationError{Field: "aoi", Reason: "is not GeoJSON: " + err.Error()}
	}
	crs, err := parseCRSMember(head.CRS)
	if err != nil {
		return domain.AOI{}, err
	}

	aoi := domain.AOI{CRS: crs}
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return domain.AOI{}, &domain.ValidationError{Field: "aoi", Reason: err.Error()}
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				aoi.Geometries = append(aoi.Geometries, f.Geometry)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return domain.AOI{}, &domain.ValidationError{Field: "aoi", Reason: err.Error()}
		}
		if f.Geometry != nil {
			aoi.Geometries = append(aoi.Geometries, f.Geometry)
		}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return domain.AOI{}, &domain.ValidationError{Field: "aoi", Reason: err.Error()}
		}
		aoi.Geometries = append(aoi.Geometries, g.Geometry())
	}
	return aoi, nil
}

// parseCRSMember reads the legacy {"type":"name","properties":{"name":...}} member.
func parseCRSMember(raw json.RawMessage) (domain.CRS, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultCRS, nil
	}
	var member struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &member); err != nil {
		return domain.CRS{}, &domain.ValidationError{Field: "crs", Reason: err.Error()}
	}
	return domain.ParseCRS(member.Properties.Name)
}

func crsMember(c domain.CRS) map[string]any {
	return map[string]any{
		"type":       "name",
		"properties": map[string]any{"name": fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", c.EPSG)},
	}
}

// EncodeTiles renders tile records as a FeatureCollection carrying a crs member.
func EncodeTiles(crs domain.CRS, recs []domain.TileRecord) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"crs": crsMember(crs)}
	for _, r := range recs {
		f := geojson.NewFeature(r.Geometry)
		f.Properties["tile_name"] = r.TileName
		f.Properties["workunit"] = r.Workunit
		fc.Append(f)
	}
	return json.Marshal(fc)
}

// DecodeTiles parses a tile index FeatureCollection, keeping only tile_name,
// workunit and geometry.
func DecodeTiles(data []byte) (*domain.TileIndex, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &domain.ValidationError{Field: "tile_index", Reason: err.Error()}
	}
	var crsRaw json.RawMessage
	if m, ok := fc.ExtraMembers["crs"]; ok {
		crsRaw, _ = json.Marshal(m)
	}
	crs, err := parseCRSMember(crsRaw)
	if err != nil {
		return nil, err
	}

	index := &domain.TileIndex{CRS: crs, Records: make([]domain.TileRecord, 0, len(fc.Features))}
	for i, f := range fc.Features {
		rec := domain.TileRecord{
			TileName: stringProp(f.Properties, "tile_name", "name"),
			Workunit: stringProp(f.Properties, "workunit"),
			Geometry: f.Geometry,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		index.Records = append(index.Records, rec)
	}
	return index, nil
}

func stringProp(p geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok {
			return s
		}
	}
	return ""
}

// filterBound keeps records whose bounding box overlaps b.
func filterBound(recs []domain.TileRecord, b orb.Bound) []domain.TileRecord {
	out := recs[:0:0]
	for _, r := range recs {
		if r.Geometry.Bound().Intersects(b) {
			out = append(out, r)
		}
	}
	return out
}
