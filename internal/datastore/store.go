// Package datastore is the boundary between the background builder and the
// on-disk observation archive. It resolves per-run files for a storage
// scheme and reads event lists and effective-area thresholds from them.
package datastore

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/obs"
)

// SchemeHESS is the only supported storage scheme.
const SchemeHESS = "HESS"

// RunListFile is the run list file name at the archive root.
const RunListFile = "runinfo.fits"

// EventList is the part of one observation's event file the builder needs.
// Energies are TeV, detector coordinates degrees, livetime seconds.
type EventList struct {
	ObsID    int64
	Energy   []float64
	DetX     []float64
	DetY     []float64
	Time     []float64
	Livetime float64
}

// Len returns the number of events.
func (e *EventList) Len() int { return len(e.Energy) }

// Source supplies per-observation data to the histogram fill and the
// adaptive binning.
type Source interface {
	// Events returns the event list of one observation.
	Events(obsID int64) (*EventList, error)
	// EnergyThreshold returns the low-energy threshold in TeV.
	EnergyThreshold(obsID int64) (float64, error)
}

// Options controls how a Store interprets incomplete files.
type Options struct {
	// UnitFallback permits hard-coded units when a column or header unit is
	// missing or unparseable: degrees for DETX/DETY, the EUNIT header for
	// ENERGY and TeV for LO_THRES. Each fallback is logged as a warning.
	// Without it such files fail with UnitError or MalformedMetadataError.
	UnitFallback bool
}

// Store reads and writes an observation archive laid out by a scheme.
type Store struct {
	scheme string
	root   string
	fsys   fsutil.FileSystem
	opts   Options
}

// Open returns a Store for the observatory's storage scheme rooted at root.
// A nil fsys uses the host filesystem.
func Open(observatory, root string, fsys fsutil.FileSystem, opts Options) (*Store, error) {
	if err := CheckScheme(observatory); err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{scheme: SchemeHESS, root: root, fsys: fsys, opts: opts}, nil
}

// Scheme returns the storage scheme name.
func (s *Store) Scheme() string { return s.scheme }

// Root returns the archive root directory.
func (s *Store) Root() string { return s.root }

// FileSystem returns the filesystem the store operates on.
func (s *Store) FileSystem() fsutil.FileSystem { return s.fsys }

// runDir returns root/runGGGGGG-HHHHHH/runNNNNNN where runs are bucketed in
// blocks of 200.
func (s *Store) runDir(obsID int64) string {
	g := obsID / 200 * 200
	return filepath.Join(s.root,
		fmt.Sprintf("run%06d-%06d", g, g+199),
		fmt.Sprintf("run%06d", obsID))
}

// EventsPath returns the event list file of an observation.
func (s *Store) EventsPath(obsID int64) string {
	return filepath.Join(s.runDir(obsID), fmt.Sprintf("hess_events_%06d.fits", obsID))
}

// EffectiveAreaPath returns the effective-area file of an observation.
func (s *Store) EffectiveAreaPath(obsID int64) string {
	return filepath.Join(s.runDir(obsID), fmt.Sprintf("hess_aeff_2d_%06d.fits", obsID))
}

// RunListPath returns the location of the archive's run list.
func (s *Store) RunListPath() string { return filepath.Join(s.root, RunListFile) }

// ReadRunList loads the archive's run list.
func (s *Store) ReadRunList() (*obs.Table, error) {
	var t *obs.Table
	err := fsutil.ReadWith(s.fsys, s.RunListPath(), func(r io.Reader) error {
		var err error
		t, err = obs.ReadTable(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read run list %s: %w", s.RunListPath(), err)
	}
	return t, nil
}

// WriteRunList stores t as the archive's run list.
func (s *Store) WriteRunList(t *obs.Table) error {
	return fsutil.WriteWith(s.fsys, s.RunListPath(), t.Write)
}

// CheckScheme returns an *UnsupportedSchemeError unless observatory names a
// known storage scheme.
func CheckScheme(observatory string) error {
	if strings.ToUpper(strings.TrimSpace(observatory)) != SchemeHESS {
		return &UnsupportedSchemeError{Scheme: observatory}
	}
	return nil
}
