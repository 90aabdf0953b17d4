package datastore

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/units"
	"github.com/banshee-data/bgcube/internal/version"
)

// ColumnUnits are the unit annotations written with an event list. An
// empty string omits the annotation.
type ColumnUnits struct {
	Energy string
	Det    string
	EUnit  string
}

// DefaultColumnUnits annotates energies in TeV and coordinates in degrees.
var DefaultColumnUnits = ColumnUnits{Energy: units.TeV, Det: units.Degree, EUnit: units.TeV}

// EffectiveArea is the effective-area record of one observation. The
// threshold is expressed in ThresholdUnit.
type EffectiveArea struct {
	ObsID         int64
	Threshold     float64
	ThresholdUnit string
	EnergyLo      []float64 // TeV
	EnergyHi      []float64 // TeV
	Area          []float64 // m^2
}

// WriteEvents stores ev at its scheme location. Values are written as
// given and labelled with u.
func (s *Store) WriteEvents(ev *EventList, u ColumnUnits) error {
	if len(ev.DetX) != ev.Len() || len(ev.DetY) != ev.Len() {
		return fmt.Errorf("obs %d: event columns differ in length", ev.ObsID)
	}
	withTime := len(ev.Time) == ev.Len()

	return fsutil.WriteWith(s.fsys, s.EventsPath(ev.ObsID), func(w io.Writer) error {
		cols := []fitsio.Column{
			{Name: colEnergy, Format: "D", Unit: u.Energy},
			{Name: colDetX, Format: "D", Unit: u.Det},
			{Name: colDetY, Format: "D", Unit: u.Det},
		}
		if withTime {
			cols = append(cols, fitsio.Column{Name: colTime, Format: "D", Unit: units.Second})
		}
		cards := []fitsio.Card{
			{Name: "OBS_ID", Value: int(ev.ObsID), Comment: "observation ID"},
			{Name: keyLivetime, Value: ev.Livetime, Comment: "[s] livetime"},
		}
		if u.EUnit != "" {
			cards = append(cards, fitsio.Card{Name: keyEUnit, Value: u.EUnit, Comment: "energy unit"})
		}
		return writeTable(w, EventsHDU, cols, cards, ev.Len(), func(table *fitsio.Table, i int) error {
			if withTime {
				return table.Write(&ev.Energy[i], &ev.DetX[i], &ev.DetY[i], &ev.Time[i])
			}
			return table.Write(&ev.Energy[i], &ev.DetX[i], &ev.DetY[i])
		})
	})
}

// WriteEffectiveArea stores a at its scheme location with LO_THRES in the
// table header.
func (s *Store) WriteEffectiveArea(a *EffectiveArea) error {
	n := len(a.Area)
	if len(a.EnergyLo) != n || len(a.EnergyHi) != n {
		return fmt.Errorf("obs %d: effective area columns differ in length", a.ObsID)
	}
	comment := "low energy threshold"
	if a.ThresholdUnit != "" {
		comment = "[" + a.ThresholdUnit + "] " + comment
	}

	return fsutil.WriteWith(s.fsys, s.EffectiveAreaPath(a.ObsID), func(w io.Writer) error {
		cols := []fitsio.Column{
			{Name: "ENERG_LO", Format: "D", Unit: units.TeV},
			{Name: "ENERG_HI", Format: "D", Unit: units.TeV},
			{Name: "EFFAREA", Format: "D", Unit: "m2"},
		}
		cards := []fitsio.Card{
			{Name: "OBS_ID", Value: int(a.ObsID), Comment: "observation ID"},
			{Name: keyLoThres, Value: a.Threshold, Comment: comment},
		}
		return writeTable(w, EffectiveAreaHDU, cols, cards, n, func(table *fitsio.Table, i int) error {
			return table.Write(&a.EnergyLo[i], &a.EnergyHi[i], &a.Area[i])
		})
	})
}

// writeTable emits a primary HDU stamped with the creator and one binary
// table filled row by row.
func writeTable(w io.Writer, name string, cols []fitsio.Column, cards []fitsio.Card, rows int,
	row func(table *fitsio.Table, i int) error) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return fmt.Errorf("%s primary HDU: %w", name, err)
	}
	defer phdu.Close()
	if err := phdu.Header().Append(fitsio.Card{Name: "CREATOR", Value: version.Creator()}); err != nil {
		return fmt.Errorf("%s primary header: %w", name, err)
	}
	if err := f.Write(phdu); err != nil {
		return fmt.Errorf("write %s primary HDU: %w", name, err)
	}

	table, err := fitsio.NewTable(name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("create %s table: %w", name, err)
	}
	defer table.Close()
	if err := table.Header().Append(cards...); err != nil {
		return fmt.Errorf("%s header: %w", name, err)
	}
	for i := 0; i < rows; i++ {
		if err := row(table, i); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i, err)
		}
	}
	if err := f.Write(table); err != nil {
		return fmt.Errorf("write %s table: %w", name, err)
	}
	return nil
}
