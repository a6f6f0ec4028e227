package tracker

import (
	"encoding/json"
	"time"

	"github.com/star/tletracker/internal/propagation"
)

// positionTimeLayout is second precision with a literal Z.
const positionTimeLayout = "2006-01-02T15:04:05Z"

// positionPayload is the body published on the position topic.
type positionPayload struct {
	Timestamp  string  `json:"timestamp"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

func encodePosition(sp propagation.Subpoint) ([]byte, error) {
	return json.Marshal(positionPayload{
		Timestamp:  sp.Time.UTC().Format(positionTimeLayout),
		Latitude:   sp.LatitudeDeg,
		Longitude:  sp.LongitudeDeg,
		AltitudeKm: sp.AltitudeKm,
	})
}

// isoFormat renders t the way existing last-update consumers parse it:
// microsecond fraction only when non-zero, numeric UTC offset.
//
//	2025-01-01T12:00:00+00:00
//	2025-01-01T12:00:00.250000+00:00
func isoFormat(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05-07:00")
	}
	return t.Format("2006-01-02T15:04:05.000000-07:00")
}
