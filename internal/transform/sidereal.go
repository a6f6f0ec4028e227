package transform

import (
	"math"
	"time"
)

const (
	// jdUnixEpoch is the Julian Date of 1970-01-01T00:00:00Z.
	jdUnixEpoch = 2440587.5
	// jdJ2000 is the Julian Date of the J2000.0 epoch.
	jdJ2000 = 2451545.0

	secondsPerDay = 86400.0
)

// JulianDate returns the Julian Date of t, keeping sub-second precision.
func JulianDate(t time.Time) float64 {
	sec := t.Unix()
	frac := float64(t.Nanosecond()) / 1e9
	return jdUnixEpoch + (float64(sec)+frac)/secondsPerDay
}

// GMST returns Greenwich Mean Sidereal Time in radians, normalized to [0, 2π).
// IAU-82 model, Vallado Eq 3-47, with UT1 approximated by UTC.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - jdJ2000) / 36525.0

	// 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
