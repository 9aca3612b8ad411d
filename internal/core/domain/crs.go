package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS identifies a coordinate reference system by its EPSG code.
type CRS struct {
	EPSG int `json:"epsg"`
}

// EPSG is shorthand for CRS{EPSG: code}.
func EPSG(code int) CRS {
	return CRS{EPSG: code}
}

// String renders the CRS the way PDAL expects it in out_srs.
func (c CRS) String() string {
	return "EPSG:" + strconv.Itoa(c.EPSG)
}

// IsZero reports whether the CRS is unset.
func (c CRS) IsZero() bool {
	return c.EPSG == 0
}

// ParseCRS accepts "EPSG:6344", "6344", "urn:ogc:def:crs:EPSG::6344" and the
// GeoJSON CRS84 URN.
func ParseCRS(s string) (CRS, error) {
	v := strings.TrimSpace(s)
	upper := strings.ToUpper(v)

	switch {
	case upper == "":
		return CRS{}, invalid("", "crs", "is empty")
	case strings.HasSuffix(upper, "CRS84"):
		return EPSG(4326), nil
	case strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		v = v[strings.LastIndex(v, ":")+1:]
	case strings.HasPrefix(upper, "EPSG:"):
		v = v[len("EPSG:"):]
	}

	code, err := strconv.Atoi(v)
	if err != nil || code <= 0 {
		return CRS{}, invalid("", "crs", fmt.Sprintf("%q is not an EPSG identifier", s))
	}
	return EPSG(code), nil
}
