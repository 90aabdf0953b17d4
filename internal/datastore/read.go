package datastore

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/fitsutil"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/units"
)

// HDU and field names of the HESS file layout.
const (
	EventsHDU        = "EVENTS"
	EffectiveAreaHDU = "EFFECTIVE AREA"

	colEnergy = "ENERGY"
	colDetX   = "DETX"
	colDetY   = "DETY"
	colTime   = "TIME"

	keyLivetime = "LIVETIME"
	keyEUnit    = "EUNIT"
	keyLoThres  = "LO_THRES"
)

// Events reads and unit-normalises the event list of obsID.
func (s *Store) Events(obsID int64) (*EventList, error) {
	path := s.EventsPath(obsID)
	var ev *EventList
	err := s.withFITS(path, func(f *fitsio.File) error {
		var err error
		ev, err = s.decodeEvents(obsID, path, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Store) decodeEvents(obsID int64, path string, f *fitsio.File) (*EventList, error) {
	file := filepath.Base(path)
	table, ok := fitsutil.FindTable(f, EventsHDU)
	if !ok {
		return nil, &MalformedMetadataError{ObsID: obsID, File: file, Field: EventsHDU, Reason: "HDU not found"}
	}
	hdr := table.Header()

	livetime, err := fitsutil.HeaderFloat(hdr, keyLivetime)
	if err != nil {
		return nil, &MalformedMetadataError{ObsID: obsID, File: file, Field: keyLivetime, Reason: err.Error()}
	}

	names := []string{colEnergy, colDetX, colDetY}
	hasTime := hasColumn(table, colTime)
	if hasTime {
		names = append(names, colTime)
	}
	cols, err := fitsutil.ReadColumns(table, names...)
	if err != nil {
		return nil, &MalformedMetadataError{ObsID: obsID, File: file, Field: EventsHDU, Reason: err.Error()}
	}

	efac, err := s.energyFactor(obsID, file, cols.Units[colEnergy], hdr)
	if err != nil {
		return nil, err
	}
	xfac, err := s.detFactor(obsID, file, colDetX, cols.Units[colDetX])
	if err != nil {
		return nil, err
	}
	yfac, err := s.detFactor(obsID, file, colDetY, cols.Units[colDetY])
	if err != nil {
		return nil, err
	}

	ev := &EventList{
		ObsID:    obsID,
		Energy:   scaled(cols.Values[colEnergy], efac),
		DetX:     scaled(cols.Values[colDetX], xfac),
		DetY:     scaled(cols.Values[colDetY], yfac),
		Livetime: livetime,
	}
	if hasTime {
		ev.Time = cols.Values[colTime]
	}
	return ev, nil
}

// EnergyThreshold reads LO_THRES from the effective-area file of obsID. The
// card's unit is carried in its comment as "[unit]".
func (s *Store) EnergyThreshold(obsID int64) (float64, error) {
	path := s.EffectiveAreaPath(obsID)
	file := filepath.Base(path)
	var thr float64
	err := s.withFITS(path, func(f *fitsio.File) error {
		table, ok := fitsutil.FindTable(f, EffectiveAreaHDU)
		if !ok {
			return &MalformedMetadataError{ObsID: obsID, File: file, Field: EffectiveAreaHDU, Reason: "HDU not found"}
		}
		hdr := table.Header()
		v, err := fitsutil.HeaderFloat(hdr, keyLoThres)
		if err != nil {
			return &MalformedMetadataError{ObsID: obsID, File: file, Field: keyLoThres, Reason: err.Error()}
		}

		comment := fitsutil.HeaderComment(hdr, keyLoThres)
		unit, ok := bracketedUnit(comment)
		factor, uerr := units.EnergyFactor(unit)
		if !ok || uerr != nil {
			if !s.opts.UnitFallback {
				return &MalformedMetadataError{ObsID: obsID, File: file, Field: keyLoThres,
					Reason: fmt.Sprintf("no energy unit in comment %q", comment)}
			}
			monitoring.Warnf("[unit-fallback] obs %d: %s %s comment %q has no unit, assuming %s",
				obsID, file, keyLoThres, comment, units.TeV)
			factor = 1
		}
		thr = v * factor
		return nil
	})
	if err != nil {
		return 0, err
	}
	return thr, nil
}

func (s *Store) withFITS(path string, fn func(f *fitsio.File) error) error {
	return fsutil.ReadWith(s.fsys, path, func(r io.Reader) error {
		f, err := fitsio.Open(r)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return fn(f)
	})
}

// energyFactor resolves the ENERGY column unit, falling back to the file's
// EUNIT header when permitted.
func (s *Store) energyFactor(obsID int64, file, unit string, hdr *fitsio.Header) (float64, error) {
	f, err := units.EnergyFactor(unit)
	if err == nil {
		return f, nil
	}
	if !s.opts.UnitFallback {
		return 0, &UnitError{ObsID: obsID, File: file, Column: colEnergy, Unit: unit, Err: err}
	}
	eunit, herr := fitsutil.HeaderString(hdr, keyEUnit)
	if herr != nil {
		return 0, &MalformedMetadataError{ObsID: obsID, File: file, Field: keyEUnit, Reason: herr.Error()}
	}
	f, err = units.EnergyFactor(eunit)
	if err != nil {
		return 0, &MalformedMetadataError{ObsID: obsID, File: file, Field: keyEUnit, Reason: err.Error()}
	}
	monitoring.Warnf("[unit-fallback] obs %d: %s column %s unit %q unresolved, using %s=%q",
		obsID, file, colEnergy, unit, keyEUnit, eunit)
	return f, nil
}

// detFactor resolves a detector coordinate unit, falling back to degrees
// when permitted.
func (s *Store) detFactor(obsID int64, file, column, unit string) (float64, error) {
	f, err := units.AngleFactor(unit)
	if err == nil {
		return f, nil
	}
	if !s.opts.UnitFallback {
		return 0, &UnitError{ObsID: obsID, File: file, Column: column, Unit: unit, Err: err}
	}
	monitoring.Warnf("[unit-fallback] obs %d: %s column %s unit %q unresolved, assuming %s",
		obsID, file, column, unit, units.Degree)
	return 1, nil
}

// bracketedUnit extracts "TeV" from a comment such as "[TeV] threshold".
func bracketedUnit(comment string) (string, bool) {
	open := strings.IndexByte(comment, '[')
	if open < 0 {
		return "", false
	}
	end := strings.IndexByte(comment[open:], ']')
	if end < 0 {
		return "", false
	}
	u := strings.TrimSpace(comment[open+1 : open+end])
	return u, u != ""
}

func hasColumn(table *fitsio.Table, name string) bool {
	for _, col := range table.Cols() {
		if strings.EqualFold(strings.TrimSpace(col.Name), name) {
			return true
		}
	}
	return false
}

func scaled(v []float64, f float64) []float64 {
	if f == 1 {
		return v
	}
	for i := range v {
		v[i] *= f
	}
	return v
}

