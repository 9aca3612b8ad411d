package geospatial

import (
	"fmt"
	"sync"

	"github.com/ctessum/geom/proj"
)

const webMercatorProj = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// proj4Defs holds the PROJ.4 definitions for the EPSG codes USGS 3DEP
// sources and tile indexes are published in.
var proj4Defs = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4269: "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	6318: "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	3857: webMercatorProj,
	3395: "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
}

func init() {
	// NAD83(2011) / UTM zones 1N-19N
	for zone := 1; zone <= 19; zone++ {
		proj4Defs[6329+zone] = utm(zone, false, "+ellps=GRS80 +towgs84=0,0,0,0,0,0,0")
	}
	// NAD83 / UTM zones 1N-23N
	for zone := 1; zone <= 23; zone++ {
		proj4Defs[26900+zone] = utm(zone, false, "+datum=NAD83")
	}
	// WGS 84 / UTM north and south
	for zone := 1; zone <= 60; zone++ {
		proj4Defs[32600+zone] = utm(zone, false, "+datum=WGS84")
		proj4Defs[32700+zone] = utm(zone, true, "+datum=WGS84")
	}
}

func utm(zone int, south bool, datum string) string {
	s := fmt.Sprintf("+proj=utm +zone=%d", zone)
	if south {
		s += " +south"
	}
	return s + " " + datum + " +units=m +no_defs"
}

// Proj4 returns the PROJ.4 definition registered for an EPSG code.
func Proj4(epsg int) (string, error) {
	def, ok := proj4Defs[epsg]
	if !ok {
		return "", fmt.Errorf("EPSG:%d has no registered projection", epsg)
	}
	return def, nil
}

// Supported reports whether an EPSG code can be reprojected.
func Supported(epsg int) bool {
	_, ok := proj4Defs[epsg]
	return ok
}

var srCache sync.Map // int -> *proj.SR

func spatialReference(epsg int) (*proj.SR, error) {
	if sr, ok := srCache.Load(epsg); ok {
		return sr.(*proj.SR), nil
	}
	def, err := Proj4(epsg)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parse EPSG:%d: %w", epsg, err)
	}
	srCache.Store(epsg, sr)
	return sr, nil
}
