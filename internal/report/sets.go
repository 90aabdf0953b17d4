package report

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
)

// HTMLFile is the page written by CompareSets.
const HTMLFile = "bg_cube_model_comparison.html"

// FigureFile names the PNG of one group.
func FigureFile(groupID int) string {
	return fmt.Sprintf("bg_cube_model_comparison_group%d.png", groupID)
}

// GroupReport is the comparison of one group's background cubes.
type GroupReport struct {
	GroupID    int
	Model1     *cube.Cube
	Model2     *cube.Cube
	Comparison *Comparison
}

// ModelGroups lists the group IDs with a model file in dir.
func ModelGroups(fsys fsutil.FileSystem, dir string) ([]int, error) {
	matches, err := fsys.Glob(filepath.Join(dir, "bg_cube_model_group*_table.fits*"))
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, m := range matches {
		var id int
		name := strings.TrimSuffix(filepath.Base(m), ".gz")
		if _, err := fmt.Sscanf(name, "bg_cube_model_group%d_table.fits", &id); err != nil {
			continue
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// readBackground loads a group's background cube from dir, accepting the
// gzip and plain file names.
func readBackground(fsys fsutil.FileSystem, dir string, groupID int) (*cube.Cube, error) {
	name := filepath.Join(dir, bgmodel.ModelFileName(groupID))
	if !fsutil.Exists(fsys, name) {
		plain := strings.TrimSuffix(name, ".gz")
		if fsutil.Exists(fsys, plain) {
			name = plain
		}
	}
	m, err := bgmodel.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return m.Background, nil
}

// CompareSets compares the models of two model-set directories group by
// group. Groups missing from either set are skipped with a warning. PNG
// figures and the HTML page are written to cfg.OutputDir when enabled.
func CompareSets(fsys fsutil.FileSystem, dir1, dir2 string, cfg CompareConfig) ([]GroupReport, error) {
	ids := cfg.GroupIDs
	if len(ids) == 0 {
		var err error
		if ids, err = ModelGroups(fsys, dir1); err != nil {
			return nil, fmt.Errorf("list models in %s: %w", dir1, err)
		}
	}

	var out []GroupReport
	for _, id := range ids {
		a, err := readBackground(fsys, dir1, id)
		if err != nil {
			monitoring.Warnf("[Report] group %d: %v", id, err)
			continue
		}
		b, err := readBackground(fsys, dir2, id)
		if err != nil {
			monitoring.Warnf("[Report] group %d: %v", id, err)
			continue
		}
		cmp, err := Compare(a, b)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", id, err)
		}
		g := GroupReport{GroupID: id, Model1: a, Model2: b, Comparison: cmp}
		monitoring.Logf("[Report] group %d: mean correlation %.3f over %d slices", id, cmp.MeanCorrelation(), len(cmp.Slices))

		if cfg.SavePNG {
			grid, err := GroupFigure(a, b, cfg)
			if err != nil {
				return nil, fmt.Errorf("group %d: %w", id, err)
			}
			name := filepath.Join(cfg.OutputDir, FigureFile(id))
			if err := fsutil.WriteWith(fsys, name, func(w io.Writer) error { return WritePNG(w, grid) }); err != nil {
				return nil, fmt.Errorf("write %s: %w", name, err)
			}
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no group has a model in both %s and %s", dir1, dir2)
	}

	if cfg.WriteHTML {
		name := filepath.Join(cfg.OutputDir, HTMLFile)
		if err := fsutil.WriteWith(fsys, name, func(w io.Writer) error { return WriteHTML(w, out, cfg) }); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return out, nil
}
