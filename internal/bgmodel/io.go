package bgmodel

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/version"
)

// Encode writes the model as a FITS stream: an empty primary HDU then the
// COUNTS, LIVETIME and BACKGROUND tables. When counts or livetime sum to
// zero only BACKGROUND is written.
func (m *Model) Encode(w io.Writer) error {
	cards := []fitsio.Card{
		{Name: "CREATOR", Value: version.Creator()},
		{Name: "HDUCLASS", Value: "BKG_CUBE", Comment: "cube background model"},
	}
	if m.HasAuxiliary() {
		return cube.Encode(w, cards, m.Counts, m.Livetime, m.Background)
	}
	return cube.Encode(w, cards, m.Background)
}

// ModelFileName is the file name of a group's model inside a model set.
func ModelFileName(groupID int) string {
	return fmt.Sprintf("bg_cube_model_group%d_table.fits.gz", groupID)
}

func gzipped(path string) bool { return strings.HasSuffix(path, ".gz") }

// WriteFile encodes the model to path on fsys, replacing any existing file
// only once the whole model has been written. Paths ending in .gz are gzip
// compressed.
func (m *Model) WriteFile(fsys fsutil.FileSystem, path string) error {
	encode := m.Encode
	if gzipped(path) {
		encode = func(w io.Writer) error {
			zw := gzip.NewWriter(w)
			if err := m.Encode(zw); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		}
	}
	if err := fsutil.WriteWith(fsys, path, encode); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	monitoring.Logf("[Model] wrote %s (auxiliary cubes: %t)", path, m.HasAuxiliary())
	return nil
}

// Write encodes the model to path on the host filesystem.
func (m *Model) Write(path string) error {
	return m.WriteFile(fsutil.OSFileSystem{}, path)
}

// DecodeModel reads a model written by Encode. Files without COUNTS or
// LIVETIME tables yield zero-filled cubes on the background's edges; a file
// without BACKGROUND is an error wrapping ErrMissingBackground.
func DecodeModel(r io.Reader) (*Model, error) {
	tables, err := cube.Decode(r, cube.Counts, cube.Livetime, cube.Background)
	if err != nil {
		return nil, err
	}
	bg, ok := tables[cube.Background.Name]
	if !ok {
		return nil, fmt.Errorf("%w (%w)", ErrMissingBackground, cube.ErrMissingHDU)
	}

	counts, ok := tables[cube.Counts.Name]
	if !ok {
		counts = cube.New(cube.Counts, bg.Edges())
	}
	livetime, ok := tables[cube.Livetime.Name]
	if !ok {
		livetime = cube.New(cube.Livetime, bg.Edges())
	}
	return NewModel(counts, livetime, bg)
}

// ReadFile decodes the model stored at path on fsys, decompressing .gz
// files.
func ReadFile(fsys fsutil.FileSystem, path string) (*Model, error) {
	var m *Model
	err := fsutil.ReadWith(fsys, path, func(r io.Reader) error {
		if gzipped(path) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return err
			}
			defer zr.Close()
			r = zr
		}
		var err error
		m, err = DecodeModel(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return m, nil
}

// ReadModel decodes the model stored at path on the host filesystem.
func ReadModel(path string) (*Model, error) {
	return ReadFile(fsutil.OSFileSystem{}, path)
}

