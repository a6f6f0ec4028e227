// Package tracker holds the current satellite state and the coordinator that
// answers position and last-update requests arriving over the message bus.
package tracker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/star/tletracker/internal/propagation"
	"github.com/star/tletracker/internal/tle"
)

var (
	// ErrInvalidTLE wraps any reason an ingest payload was rejected.
	ErrInvalidTLE = errors.New("invalid TLE")
	// ErrNoTLE is returned by queries before the first successful ingest.
	ErrNoTLE = errors.New("no TLE available")
)

// Model computes subpoints for the element set it was built from.
type Model interface {
	Subpoint(t time.Time) (propagation.Subpoint, error)
}

// Loader builds a Model from two element lines.
type Loader func(line1, line2 string) (Model, error)

// LoadSGP4 is the default Loader, backed by propagation.Load.
func LoadSGP4(line1, line2 string) (Model, error) {
	sat, err := propagation.Load(line1, line2)
	if err != nil {
		return nil, err
	}
	return sat, nil
}

// Snapshot is an immutable view of the state after one ingest.
type Snapshot struct {
	Entry      tle.TLEEntry
	LastUpdate time.Time
	model      Model
}

// State is the single current element set. Model, entry and last update
// are swapped together behind one pointer, so readers never see a mix of
// two ingests. Writers must be serialized by the caller.
type State struct {
	name    string
	load    Loader
	current atomic.Pointer[Snapshot]
}

// NewState creates an empty State. Ingested entries are labelled with name.
// A nil load uses LoadSGP4.
func NewState(name string, load Loader) *State {
	if load == nil {
		load = LoadSGP4
	}
	return &State{name: name, load: load}
}

// Ingest replaces the current element set and stamps it with at (as UTC).
// On error the previous state is kept and the error wraps ErrInvalidTLE.
func (s *State) Ingest(line1, line2 string, at time.Time) error {
	entry, err := tle.NewEntry(s.name, line1, line2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTLE, err)
	}

	model, err := s.load(line1, line2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTLE, err)
	}

	s.current.Store(&Snapshot{
		Entry:      entry,
		LastUpdate: at.UTC(),
		model:      model,
	})
	return nil
}

// CurrentPosition computes a fresh subpoint at the given instant.
func (s *State) CurrentPosition(at time.Time) (propagation.Subpoint, error) {
	snap := s.current.Load()
	if snap == nil {
		return propagation.Subpoint{}, ErrNoTLE
	}
	return snap.model.Subpoint(at)
}

// LastUpdate returns the instant of the most recent successful ingest.
func (s *State) LastUpdate() (time.Time, error) {
	snap := s.current.Load()
	if snap == nil {
		return time.Time{}, ErrNoTLE
	}
	return snap.LastUpdate, nil
}

// Snapshot returns the current view, or false before the first ingest.
func (s *State) Snapshot() (Snapshot, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// AgeSeconds returns seconds since the last ingest as of now, or -1 when empty.
func (s *State) AgeSeconds(now time.Time) float64 {
	snap := s.current.Load()
	if snap == nil {
		return -1
	}
	return now.Sub(snap.LastUpdate).Seconds()
}
