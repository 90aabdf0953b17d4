package bgmodel

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/version"
)

// WriteImage writes the background cube as a primary image HDU with axes
// (DETX, DETY, ENERGY) for image viewers, followed by an EBOUNDS table
// holding the energy bin edges in TeV.
func (m *Model) WriteImage(w io.Writer) error {
	edges := m.Edges()
	ne, ny, nx := edges.Shape()
	xs, ys := edges.X(), edges.Y()

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create image stream: %w", err)
	}
	defer f.Close()

	img := fitsio.NewImage(-64, []int{nx, ny, ne})
	defer img.Close()
	err = img.Header().Append(
		fitsio.Card{Name: "CREATOR", Value: version.Creator()},
		fitsio.Card{Name: "BUNIT", Value: m.Background.Unit},
		fitsio.Card{Name: "CTYPE1", Value: "DETX"},
		fitsio.Card{Name: "CUNIT1", Value: "deg"},
		fitsio.Card{Name: "CRPIX1", Value: 1.0},
		fitsio.Card{Name: "CRVAL1", Value: 0.5 * (xs[0] + xs[1])},
		fitsio.Card{Name: "CDELT1", Value: xs[1] - xs[0]},
		fitsio.Card{Name: "CTYPE2", Value: "DETY"},
		fitsio.Card{Name: "CUNIT2", Value: "deg"},
		fitsio.Card{Name: "CRPIX2", Value: 1.0},
		fitsio.Card{Name: "CRVAL2", Value: 0.5 * (ys[0] + ys[1])},
		fitsio.Card{Name: "CDELT2", Value: ys[1] - ys[0]},
		fitsio.Card{Name: "CTYPE3", Value: "ENERGY-BIN"},
	)
	if err != nil {
		return fmt.Errorf("image header: %w", err)
	}
	if err := img.Write(m.Background.Data); err != nil {
		return fmt.Errorf("write image data: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("write image HDU: %w", err)
	}

	table, err := fitsio.NewTable("EBOUNDS", []fitsio.Column{
		{Name: "CHANNEL", Format: "K"},
		{Name: "E_MIN", Format: "D", Unit: "TeV"},
		{Name: "E_MAX", Format: "D", Unit: "TeV"},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("create EBOUNDS: %w", err)
	}
	defer table.Close()

	energy := edges.Energy()
	for ie := 0; ie < ne; ie++ {
		ch := int64(ie)
		if err := table.Write(&ch, &energy[ie], &energy[ie+1]); err != nil {
			return fmt.Errorf("write EBOUNDS row %d: %w", ie, err)
		}
	}
	if err := f.Write(table); err != nil {
		return fmt.Errorf("write EBOUNDS: %w", err)
	}
	return nil
}
