package propagation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/tletracker/internal/transform"
)

// SGP4 library: github.com/joshuaferrara/go-satellite (pure Go, Vallado SGP4).
//
// TLEToSat calls log.Fatal when a numeric field does not parse, so every field
// it reads is checked here first. Propagate takes the Satellite by value and
// hides SGP4 error codes; failures are detected from the output instead.

// gravity matches the WGS-72 constants TLEs are generated with.
const gravity = satellite.GravityWGS72

// SGP4Propagator wraps an initialized go-satellite model.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator validates the two element lines and initializes SGP4.
func NewSGP4Propagator(line1, line2 string) (*SGP4Propagator, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if err := validateTLELines(line1, line2); err != nil {
		return nil, err
	}
	noradID, _ := strconv.Atoi(strings.TrimSpace(line1[2:7]))

	sat := satellite.TLEToSat(line1, line2, gravity)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

// NORADID returns the catalog number from line 1.
func (p *SGP4Propagator) NORADID() int {
	return p.noradID
}

// Propagate returns the TEME position (km) at t, truncated to whole seconds.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)

	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
		}
	}

	// Anything under ~6200 km has decayed; anything past 50000 km is not a TLE orbit.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}

	return transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z}, nil
}

// validateTLELines checks the fixed-width layout and every numeric field
// go-satellite parses.
func validateTLELines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' || line1[1] != ' ' {
		return fmt.Errorf("line1 must start with \"1 \", got %q", line1[:2])
	}
	if line2[0] != '2' || line2[1] != ' ' {
		return fmt.Errorf("line2 must start with \"2 \", got %q", line2[:2])
	}
	if a, b := strings.TrimSpace(line1[2:7]), strings.TrimSpace(line2[2:7]); a != b {
		return fmt.Errorf("catalog number mismatch: line1 %q, line2 %q", a, b)
	}

	ints := []struct {
		name, value string
	}{
		{"catalog number", strings.TrimSpace(line1[2:7])},
		{"epoch year", line1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.ParseInt(f.value, 10, 0); err != nil {
			return fmt.Errorf("invalid %s %q", f.name, f.value)
		}
	}

	floats := []struct {
		name, value string
	}{
		{"epoch day", line1[20:32]},
		{"mean motion dot", strings.Replace(line1[33:43], " ", "", 2)},
		{"mean motion ddot", strings.Replace(line1[44:45]+"."+line1[45:50]+"e"+line1[50:52], " ", "", 2)},
		{"bstar", strings.Replace(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "", 2)},
		{"inclination", strings.Replace(line2[8:16], " ", "", 2)},
		{"raan", strings.Replace(line2[17:25], " ", "", 2)},
		{"eccentricity", "." + line2[26:33]},
		{"argument of perigee", strings.Replace(line2[34:42], " ", "", 2)},
		{"mean anomaly", strings.Replace(line2[43:51], " ", "", 2)},
		{"mean motion", strings.Replace(line2[52:63], " ", "", 2)},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("invalid %s %q", f.name, f.value)
		}
	}

	// SGP4 initializes without complaint at zero mean motion but cannot
	// propagate from it.
	meanMotion, _ := strconv.ParseFloat(strings.Replace(line2[52:63], " ", "", 2), 64)
	if meanMotion <= 0 {
		return fmt.Errorf("mean motion %g rev/day must be positive", meanMotion)
	}
	return nil
}
