package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const radToDeg = 180.0 / math.Pi

// Geodetic is a point relative to the WGS-84 ellipsoid.
type Geodetic struct {
	LatDeg float64 // [-90, 90]
	LonDeg float64 // [-180, 180]
	AltKm  float64
}

// ECEFToGeodetic converts an ECEF position to WGS-84 geodetic coordinates
// with Bowring's iteration. Five passes are well past convergence for orbits.
func ECEFToGeodetic(pos PositionECEF) Geodetic {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Hypot(pos.X, pos.Y)

	lat := math.Atan2(pos.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		// Over a pole.
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * radToDeg,
		LonDeg: lon * radToDeg,
		AltKm:  alt / 1000.0,
	}
}
