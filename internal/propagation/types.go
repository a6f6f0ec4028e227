package propagation

import "time"

// Subpoint is the geodetic point directly beneath the satellite at Time,
// relative to the WGS-84 ellipsoid.
type Subpoint struct {
	Time         time.Time
	LatitudeDeg  float64 // [-90, 90]
	LongitudeDeg float64 // [-180, 180]
	AltitudeKm   float64
}
