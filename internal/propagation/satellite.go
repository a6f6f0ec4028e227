// Package propagation turns a two-line element set into geodetic subpoints.
//
// It is a thin layer over SGP4 and the frame transforms in package transform:
// Load builds a model once per TLE, and Subpoint evaluates it at any instant.
package propagation

import (
	"fmt"
	"time"

	"github.com/star/tletracker/internal/transform"
)

// Satellite is an SGP4 model built from one TLE. Immutable after Load;
// safe for concurrent use.
type Satellite struct {
	prop *SGP4Propagator
}

// Load parses and initializes a model from the two element lines.
func Load(line1, line2 string) (*Satellite, error) {
	prop, err := NewSGP4Propagator(line1, line2)
	if err != nil {
		return nil, err
	}
	return &Satellite{prop: prop}, nil
}

// NORADID returns the catalog number of the loaded element set.
func (s *Satellite) NORADID() int {
	return s.prop.NORADID()
}

// Subpoint computes the geodetic point under the satellite at t.
// The result's Time is t in UTC, truncated to whole seconds, which is the
// instant SGP4 was actually evaluated at.
func (s *Satellite) Subpoint(t time.Time) (Subpoint, error) {
	t = t.UTC().Truncate(time.Second)

	teme, err := s.prop.Propagate(t)
	if err != nil {
		return Subpoint{}, err
	}

	ecef := transform.TEMEToECEF(teme, t)
	if !transform.ValidateECEF(ecef) {
		return Subpoint{}, fmt.Errorf("NORAD %d: ECEF position out of range at %s", s.prop.noradID, t.Format(time.RFC3339))
	}

	geo := transform.ECEFToGeodetic(ecef)
	return Subpoint{
		Time:         t,
		LatitudeDeg:  geo.LatDeg,
		LongitudeDeg: geo.LonDeg,
		AltitudeKm:   geo.AltKm,
	}, nil
}
