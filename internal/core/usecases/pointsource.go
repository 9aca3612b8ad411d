package usecases

import "github.com/depowered/culvertvision/internal/core/domain"

// VendorClassifiedGroundPointsTag is the tag of the last stage emitted by
// VendorClassifiedGroundPoints. Products read from it by default.
const VendorClassifiedGroundPointsTag = "vendor_classified_ground_points"

// PointSource builds the head of a pipeline: the stages that read and filter
// points for one tile.
type PointSource interface {
	Tag() string
	Stages(ept domain.EPTData, tile domain.TileData) []domain.Stage
}

// VendorGroundSource reads points the data vendor classified as ground.
type VendorGroundSource struct{}

// Tag implements PointSource.
func (VendorGroundSource) Tag() string { return VendorClassifiedGroundPointsTag }

// Stages implements PointSource.
func (VendorGroundSource) Stages(ept domain.EPTData, tile domain.TileData) []domain.Stage {
	return VendorClassifiedGroundPoints(ept, tile)
}

// VendorClassifiedGroundPoints reads the EPT source clipped to the tile's
// buffered footprint, keeps class 2 (ground) and reprojects into the tile CRS.
func VendorClassifiedGroundPoints(ept domain.EPTData, tile domain.TileData) []domain.Stage {
	return []domain.Stage{
		{
			Tag:  "raw_points",
			Type: "readers.ept",
			Options: map[string]any{
				"filename": ept.EPTJSONURL,
				"polygon":  tile.EPTFilterWKT,
			},
		},
		{
			Tag:     "ground_only",
			Type:    "filters.range",
			Inputs:  []string{"raw_points"},
			Options: map[string]any{"limits": "Classification[2:2]"},
		},
		{
			Tag:     VendorClassifiedGroundPointsTag,
			Type:    "filters.reprojection",
			Inputs:  []string{"ground_only"},
			Options: map[string]any{"out_srs": tile.CRS.String()},
		},
	}
}
