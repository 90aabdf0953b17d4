package obs

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/fitsutil"
)

// TableHDU is the extension name of the run list.
const TableHDU = "OBS_INDEX"

var tableColumns = []fitsio.Column{
	{Name: "OBS_ID", Format: "K"},
	{Name: "TSTART", Format: "D", Unit: "s"},
	{Name: "TSTOP", Format: "D", Unit: "s"},
	{Name: "ONTIME", Format: "D", Unit: "s"},
	{Name: "LIVETIME", Format: "D", Unit: "s"},
	{Name: "ALT", Format: "D", Unit: "deg"},
	{Name: "AZ", Format: "D", Unit: "deg"},
	{Name: "N_TELS", Format: "K"},
	{Name: "MUONEFF", Format: "D"},
	{Name: "GROUP_ID", Format: "K"},
}

// Write serialises the table as a FITS file: an empty primary HDU and the
// OBS_INDEX binary table. TELESCOP, MJDREFI and MJDREFF go in the table
// header.
func (t *Table) Write(w io.Writer) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create run list: %w", err)
	}
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return fmt.Errorf("run list primary HDU: %w", err)
	}
	defer phdu.Close()
	if err := f.Write(phdu); err != nil {
		return fmt.Errorf("write run list primary HDU: %w", err)
	}

	table, err := fitsio.NewTable(TableHDU, tableColumns, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("create %s: %w", TableHDU, err)
	}
	defer table.Close()

	err = table.Header().Append(
		fitsio.Card{Name: "TELESCOP", Value: t.Observatory, Comment: "observatory"},
		fitsio.Card{Name: "MJDREFI", Value: t.MJDRefI, Comment: "integer part of reference MJD"},
		fitsio.Card{Name: "MJDREFF", Value: t.MJDRefF, Comment: "fractional part of reference MJD"},
	)
	if err != nil {
		return fmt.Errorf("%s header: %w", TableHDU, err)
	}

	for _, r := range t.Rows {
		id, ntels, group := r.ObsID, int64(r.NTels), int64(r.GroupID)
		err := table.Write(&id, &r.TimeStart, &r.TimeStop, &r.TimeObservation, &r.Livetime,
			&r.AltDeg, &r.AzDeg, &ntels, &r.MuonEfficiency, &group)
		if err != nil {
			return fmt.Errorf("write observation %d: %w", r.ObsID, err)
		}
	}
	return f.Write(table)
}

// ReadTable parses a run list written by Table.Write. TELESCOP is required;
// it selects the data store scheme downstream. GROUP_ID, N_TELS and MUONEFF
// are optional; without GROUP_ID every row is ungrouped (-1).
func ReadTable(r io.Reader) (*Table, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open run list: %w", err)
	}
	defer f.Close()

	table, ok := fitsutil.FindTable(f, TableHDU)
	if !ok {
		return nil, fmt.Errorf("run list: no %s table", TableHDU)
	}
	hdr := table.Header()

	out := &Table{}
	if out.Observatory, err = fitsutil.HeaderString(hdr, "TELESCOP"); err != nil {
		return nil, fmt.Errorf("run list: %w", err)
	}
	// Reference times are optional; zero means times are absolute MJD seconds.
	if out.MJDRefI, err = optionalFloat(hdr, "MJDREFI"); err != nil {
		return nil, fmt.Errorf("run list: %w", err)
	}
	if out.MJDRefF, err = optionalFloat(hdr, "MJDREFF"); err != nil {
		return nil, fmt.Errorf("run list: %w", err)
	}

	required := []string{"OBS_ID", "TSTART", "TSTOP", "ONTIME", "LIVETIME", "ALT", "AZ"}
	cols, err := fitsutil.ReadColumns(table, required...)
	if err != nil {
		return nil, fmt.Errorf("run list: %w", err)
	}
	optional, err := fitsutil.ReadColumns(table, presentColumns(table, "N_TELS", "MUONEFF", "GROUP_ID")...)
	if err != nil {
		return nil, fmt.Errorf("run list: %w", err)
	}

	v, o := cols.Values, optional.Values
	out.Rows = make([]Observation, cols.Len)
	for i := range out.Rows {
		row := Observation{
			ObsID:           int64(v["OBS_ID"][i]),
			TimeStart:       v["TSTART"][i],
			TimeStop:        v["TSTOP"][i],
			TimeObservation: v["ONTIME"][i],
			Livetime:        v["LIVETIME"][i],
			AltDeg:          v["ALT"][i],
			AzDeg:           v["AZ"][i],
			GroupID:         -1,
		}
		if optional.Has("N_TELS") {
			row.NTels = int(o["N_TELS"][i])
		}
		if optional.Has("MUONEFF") {
			row.MuonEfficiency = o["MUONEFF"][i]
		}
		if optional.Has("GROUP_ID") {
			row.GroupID = int(o["GROUP_ID"][i])
		}
		out.Rows[i] = row
	}
	return out, nil
}

func presentColumns(table *fitsio.Table, names ...string) []string {
	var out []string
	for _, name := range names {
		for _, col := range table.Cols() {
			if strings.EqualFold(strings.TrimSpace(col.Name), name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// optionalFloat reads a numeric card, returning 0 when it is absent. A card
// that is present but not numeric is an error.
func optionalFloat(hdr *fitsio.Header, name string) (float64, error) {
	v, err := fitsutil.HeaderFloat(hdr, name)
	if errors.Is(err, fitsutil.ErrMissingCard) {
		return 0, nil
	}
	return v, err
}
