// Package testutil provides shared test fixtures for the background model
// packages: an in-memory observation source and numeric assertions.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/obs"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertRelClose fails the test unless |got-want| <= rel*|want|. Two zeros
// compare equal.
func AssertRelClose(t *testing.T, want, got, rel float64, msgAndArgs ...any) {
	t.Helper()
	if want == got {
		return
	}
	if math.Abs(got-want) > rel*math.Abs(want) {
		msg := ""
		if len(msgAndArgs) > 0 {
			msg = fmt.Sprintf(fmt.Sprint(msgAndArgs[0]), msgAndArgs[1:]...) + ": "
		}
		t.Errorf("%sgot %.17g, want %.17g (relative error %.3g > %.3g)",
			msg, got, want, math.Abs(got-want)/math.Abs(want), rel)
	}
}

// MemorySource is an in-memory datastore.Source that counts lookups.
type MemorySource struct {
	EventLists      map[int64]*datastore.EventList
	Thresholds      map[int64]float64
	EventCalls      map[int64]int
	ThresholdCalls  map[int64]int
	FailEventsFor   map[int64]error
	FailThresholdOf map[int64]error
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		EventLists:      make(map[int64]*datastore.EventList),
		Thresholds:      make(map[int64]float64),
		EventCalls:      make(map[int64]int),
		ThresholdCalls:  make(map[int64]int),
		FailEventsFor:   make(map[int64]error),
		FailThresholdOf: make(map[int64]error),
	}
}

// Add registers an observation's events and threshold (TeV).
func (s *MemorySource) Add(ev *datastore.EventList, threshold float64) {
	s.EventLists[ev.ObsID] = ev
	s.Thresholds[ev.ObsID] = threshold
}

// Events implements datastore.Source. The returned list is a copy.
func (s *MemorySource) Events(obsID int64) (*datastore.EventList, error) {
	s.EventCalls[obsID]++
	if err := s.FailEventsFor[obsID]; err != nil {
		return nil, err
	}
	ev, ok := s.EventLists[obsID]
	if !ok {
		return nil, fmt.Errorf("no events for obs %d", obsID)
	}
	cp := *ev
	cp.Energy = append([]float64(nil), ev.Energy...)
	cp.DetX = append([]float64(nil), ev.DetX...)
	cp.DetY = append([]float64(nil), ev.DetY...)
	return &cp, nil
}

// EnergyThreshold implements datastore.Source.
func (s *MemorySource) EnergyThreshold(obsID int64) (float64, error) {
	s.ThresholdCalls[obsID]++
	if err := s.FailThresholdOf[obsID]; err != nil {
		return 0, err
	}
	thr, ok := s.Thresholds[obsID]
	if !ok {
		return 0, fmt.Errorf("no threshold for obs %d", obsID)
	}
	return thr, nil
}

// HESSTable returns a HESS run list with n observations numbered from
// first, each with the given livetime in seconds.
func HESSTable(first int64, n int, livetime float64) *obs.Table {
	t := &obs.Table{Observatory: datastore.SchemeHESS}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, obs.Observation{
			ObsID:    first + int64(i),
			Livetime: livetime,
			AltDeg:   70,
			AzDeg:    0,
			NTels:    4,
		})
	}
	return t
}
