package testutil

import (
	"errors"
	"testing"

	"github.com/banshee-data/bgcube/internal/datastore"
)

func TestMemorySource(t *testing.T) {
	t.Parallel()

	src := NewMemorySource()
	src.Add(&datastore.EventList{ObsID: 7, Energy: []float64{1}, DetX: []float64{0}, DetY: []float64{0}, Livetime: 10}, 0.3)

	ev, err := src.Events(7)
	AssertNoError(t, err)
	ev.Energy[0] = 99
	again, err := src.Events(7)
	AssertNoError(t, err)
	if again.Energy[0] != 1 {
		t.Errorf("Events must return a copy, got %v", again.Energy)
	}
	if src.EventCalls[7] != 2 {
		t.Errorf("EventCalls[7] = %d, want 2", src.EventCalls[7])
	}

	thr, err := src.EnergyThreshold(7)
	AssertNoError(t, err)
	if thr != 0.3 {
		t.Errorf("EnergyThreshold = %g, want 0.3", thr)
	}

	_, err = src.Events(8)
	AssertError(t, err)

	boom := errors.New("boom")
	src.FailThresholdOf[7] = boom
	if _, err := src.EnergyThreshold(7); !errors.Is(err, boom) {
		t.Errorf("EnergyThreshold error = %v, want boom", err)
	}
}

func TestHESSTable(t *testing.T) {
	t.Parallel()

	tbl := HESSTable(100, 3, 1500)
	if tbl.Observatory != "HESS" || tbl.Len() != 3 {
		t.Fatalf("unexpected table %+v", tbl)
	}
	if ids := tbl.IDs(); ids[0] != 100 || ids[2] != 102 {
		t.Errorf("IDs = %v", ids)
	}
	if tbl.TotalLivetime() != 4500 {
		t.Errorf("TotalLivetime = %g", tbl.TotalLivetime())
	}
}

func TestAssertRelClose_Passes(t *testing.T) {
	t.Parallel()

	AssertRelClose(t, 0, 0, 1e-12)
	AssertRelClose(t, 1e6, 1e6*(1+1e-13), 1e-12)
	AssertRelClose(t, -2, -2.0000000000001, 1e-12, "slice %d", 3)
}
