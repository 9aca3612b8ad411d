package domain

import (
	"fmt"
	"strings"
)

// ProductKind enumerates the raster products a pipeline can produce.
type ProductKind int

const (
	ProductDelauneyMeshDEM ProductKind = iota + 1
	ProductIntensityRaster
	ProductPointDensity
)

var productNames = map[ProductKind]string{
	ProductDelauneyMeshDEM: "delauney_mesh_dem",
	ProductIntensityRaster: "intensity_raster",
	ProductPointDensity:    "point_density",
}

func (k ProductKind) String() string {
	if n, ok := productNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ProductKind(%d)", int(k))
}

// ParseProductKind maps a configured product name to its kind.
func ParseProductKind(name string) (ProductKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, v := range productNames {
		if v == n {
			return k, nil
		}
	}
	return 0, invalid("", "product", fmt.Sprintf("unknown product %q", name))
}
