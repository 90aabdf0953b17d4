package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/cliutil"
	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
	"github.com/banshee-data/bgcube/internal/obsdb"
)

// buildOptions are the inputs of one build run.
type buildOptions struct {
	Observatory string
	DataDir     string
	OutDir      string
	ConfigPath  string
	IndexPath   string
	Method      string
	Groups      []int
	Image       bool
	// UseGroupID trusts the GROUP_ID column of the run list instead of
	// regrouping observations by pointing.
	UseGroupID bool
}

// imageFileName names the viewer-friendly image written next to a model.
func imageFileName(groupID int) string {
	return fmt.Sprintf("bg_cube_model_group%d_image.fits", groupID)
}

func runBuild(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("build", out)
	var o buildOptions
	var groups string
	fs.StringVar(&o.Observatory, "observatory", datastore.SchemeHESS, "observatory storage scheme")
	fs.StringVar(&o.DataDir, "data", "", "observation archive root (required)")
	fs.StringVar(&o.OutDir, "out", "bg_cube_models", "output directory for model files")
	fs.StringVar(&o.ConfigPath, "config", "", "builder configuration JSON (defaults when empty)")
	fs.StringVar(&o.IndexPath, "index", "", "observation index to update (skipped when empty)")
	fs.StringVar(&o.Method, "method", "", "binning method override: default or adaptive")
	fs.StringVar(&groups, "groups", "", "comma-separated group IDs to build (all when empty)")
	fs.BoolVar(&o.Image, "image", false, "also write a DS9-style image of each background cube")
	fs.BoolVar(&o.UseGroupID, "use-groupid", false, "group observations by the run list GROUP_ID column instead of by pointing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.DataDir == "" {
		fs.Usage()
		return fmt.Errorf("-data is required")
	}
	var err error
	if o.Groups, err = cliutil.ParseCSVInts(groups); err != nil {
		return fmt.Errorf("-groups: %w", err)
	}
	_, err = buildModels(ctx, o, fsutil.OSFileSystem{})
	return err
}

// recordedGroups partitions t by the group IDs stored in the run list.
// Rows with an ID outside the grouping are returned as unmatched.
func recordedGroups(groups *obs.Groups, t *obs.Table) (parts []obs.GroupTable, unmatched []int64) {
	for id := 0; id < groups.Len(); id++ {
		if sel := t.Select(id); sel.Len() > 0 {
			parts = append(parts, obs.GroupTable{ID: id, Table: sel})
		}
	}
	for _, r := range t.Rows {
		if r.GroupID < 0 || r.GroupID >= groups.Len() {
			unmatched = append(unmatched, r.ObsID)
		}
	}
	return parts, unmatched
}

// loadConfig returns the builder configuration for o.
func loadConfig(o buildOptions) (*config.BuilderConfig, error) {
	cfg := config.DefaultBuilderConfig()
	if o.ConfigPath != "" {
		loaded, err := config.LoadBuilderConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.Method != "" {
		cfg.Method = &o.Method
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// buildModels builds one model per non-empty observation group and returns
// the written model paths keyed by group ID. Groups whose binning is
// degenerate are skipped with a warning; any other failure stops the run.
// Cancellation is checked between groups.
func buildModels(ctx context.Context, o buildOptions, fsys fsutil.FileSystem) (map[int]string, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	store, err := datastore.Open(o.Observatory, o.DataDir, fsys, datastore.Options{UnitFallback: cfg.GetUnitFallback()})
	if err != nil {
		return nil, err
	}
	table, err := store.ReadRunList()
	if err != nil {
		return nil, fmt.Errorf("read run list: %w", err)
	}

	groups := obs.DefaultGroups()
	var parts []obs.GroupTable
	var unmatched []int64
	if o.UseGroupID {
		parts, unmatched = recordedGroups(groups, table)
	} else {
		parts, unmatched = groups.Split(table)
	}
	if len(unmatched) > 0 {
		monitoring.Warnf("[Build] %d observations outside every group: %v", len(unmatched), unmatched)
	}
	if err := fsys.MkdirAll(o.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var index *obsdb.DB
	if o.IndexPath != "" {
		if index, err = obsdb.OpenMigrated(o.IndexPath); err != nil {
			return nil, err
		}
		defer index.Close()
		if err := index.UpsertObservations(table); err != nil {
			return nil, err
		}
		if err := index.ReplaceGroups(groups, parts); err != nil {
			return nil, err
		}
	}

	builder := bgmodel.NewBuilder(cfg)
	written := make(map[int]string)
	started := builder.Clock.Now()
	var totalCounts float64
	for _, part := range parts {
		if len(o.Groups) > 0 && !slices.Contains(o.Groups, part.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		m, stats, err := builder.Build(part.Table, store)
		if errors.Is(err, bgmodel.ErrDegenerateBinning) {
			monitoring.Warnf("[Build] group %d skipped: %v", part.ID, err)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("group %d: %w", part.ID, err)
		}

		path := filepath.Join(o.OutDir, bgmodel.ModelFileName(part.ID))
		if err := m.WriteFile(fsys, path); err != nil {
			return written, fmt.Errorf("group %d: %w", part.ID, err)
		}
		if o.Image {
			img := filepath.Join(o.OutDir, imageFileName(part.ID))
			if err := fsutil.WriteWith(fsys, img, m.WriteImage); err != nil {
				return written, fmt.Errorf("group %d: write image: %w", part.ID, err)
			}
		}
		written[part.ID] = path
		totalCounts += stats.Smooth.TotalCounts

		if index != nil {
			id, err := index.RecordBuild(obsdb.NewBuildRecord(part.ID, path, stats))
			if err != nil {
				return written, err
			}
			monitoring.Logf("[Build] group %d recorded as build %s", part.ID, id)
		}
		if len(stats.Smooth.SkippedSlices) > 0 {
			monitoring.Warnf("[Build] group %d: %d empty energy slices left unsmoothed", part.ID, len(stats.Smooth.SkippedSlices))
		}
	}

	monitoring.Logf("[Build] wrote %d models (%s counts) to %s in %s",
		len(written), humanize.Comma(int64(totalCounts)), o.OutDir, builder.Clock.Since(started).Round(time.Millisecond))
	return written, nil
}
