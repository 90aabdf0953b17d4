package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/obsdb"
	"github.com/banshee-data/bgcube/internal/simulate"
	"github.com/banshee-data/bgcube/internal/version"
)

const dateLayout = "2006-01-02"

func runSimulate(args []string, out io.Writer) error {
	cfg := simulate.DefaultConfig()
	fs := newFlagSet("simulate", out)
	dataDir := fs.String("data", "", "archive root to write (required)")
	seed := fs.Uint64("seed", 0, "random seed")
	start := fs.String("start", cfg.DateStart.Format(dateLayout), "first observing date (YYYY-MM-DD)")
	end := fs.String("end", cfg.DateEnd.Format(dateLayout), "last observing date (YYYY-MM-DD)")
	fs.StringVar(&cfg.Observatory, "observatory", cfg.Observatory, "observatory storage scheme")
	fs.IntVar(&cfg.NObs, "n", cfg.NObs, "number of observations")
	fs.Int64Var(&cfg.FirstObsID, "first-id", cfg.FirstObsID, "first observation ID")
	fs.Float64Var(&cfg.TriggerRateHz, "rate", cfg.TriggerRateHz, "event rate at zenith (Hz)")
	fs.Float64Var(&cfg.SigmaDeg, "sigma", cfg.SigmaDeg, "detector offset width at the lowest energy (deg)")
	fs.Float64Var(&cfg.SpectralIndex, "index", cfg.SpectralIndex, "spectral index of event energies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataDir == "" {
		fs.Usage()
		return fmt.Errorf("-data is required")
	}
	var err error
	if cfg.DateStart, err = time.Parse(dateLayout, *start); err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if cfg.DateEnd, err = time.Parse(dateLayout, *end); err != nil {
		return fmt.Errorf("-end: %w", err)
	}

	store, err := datastore.Open(cfg.Observatory, *dataDir, fsutil.OSFileSystem{}, datastore.Options{})
	if err != nil {
		return err
	}
	table, err := simulate.Dataset(store, cfg, rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d observations (%.1f h livetime) to %s\n", table.Len(), table.TotalLivetime()/3600, *dataDir)
	return nil
}

func runInspect(args []string, out io.Writer) error {
	fs := newFlagSet("inspect", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: bgcube inspect <model file>...")
	}
	for _, path := range fs.Args() {
		m, err := bgmodel.ReadModel(path)
		if err != nil {
			return err
		}
		printModel(out, path, m)
	}
	return nil
}

func printModel(out io.Writer, path string, m *bgmodel.Model) {
	edges := m.Edges()
	ne, ny, nx := edges.Shape()
	energy, xs, ys := edges.Energy(), edges.X(), edges.Y()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "file\t%s\n", path)
	fmt.Fprintf(w, "shape\t%d x %d x %d (energy, DETY, DETX)\n", ne, ny, nx)
	fmt.Fprintf(w, "energy\t[%.4g, %.4g] TeV\n", energy[0], energy[ne])
	fmt.Fprintf(w, "DETX\t[%.4g, %.4g] deg\n", xs[0], xs[nx])
	fmt.Fprintf(w, "DETY\t[%.4g, %.4g] deg\n", ys[0], ys[ny])
	fmt.Fprintf(w, "background unit\t%s\n", m.Background.Unit)
	if m.HasAuxiliary() {
		fmt.Fprintf(w, "counts\t%s\n", humanize.Comma(int64(m.TotalCounts())))
		fmt.Fprintf(w, "livetime sum\t%s s\n", humanize.Commaf(m.Livetime.Sum()))
	} else {
		fmt.Fprintf(w, "counts\t(not stored)\n")
	}
	for ie, v := range bgmodel.SliceIntegrals(m.Background) {
		fmt.Fprintf(w, "slice %d\t[%.4g, %.4g) TeV\t%.4g 1 / (s TeV)\n", ie, energy[ie], energy[ie+1], v)
	}
	w.Flush()
	fmt.Fprintln(out)
}

func runGroups(args []string, out io.Writer) error {
	fs := newFlagSet("groups", out)
	indexPath := fs.String("index", "bgcube.db", "observation index")
	all := fs.Bool("all", false, "include groups without observations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := obsdb.OpenMigrated(*indexPath)
	if err != nil {
		return err
	}
	defer db.Close()

	summaries, err := db.GroupSummaries()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "group\talt (deg)\taz (deg)\tobs\tlivetime (h)\t")
	for _, s := range summaries {
		if s.Observations == 0 && !*all {
			continue
		}
		fmt.Fprintf(w, "%d\t%.0f-%.0f\t%.0f-%.0f\t%d\t%.2f\t\n",
			s.ID, s.AltMin, s.AltMax, s.AzMin, s.AzMax, s.Observations, s.Livetime/3600)
	}
	return w.Flush()
}

func runBuilds(args []string, out io.Writer) error {
	fs := newFlagSet("builds", out)
	indexPath := fs.String("index", "bgcube.db", "observation index")
	group := fs.Int("group", -1, "only list builds of this group")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := obsdb.OpenMigrated(*indexPath)
	if err != nil {
		return err
	}
	defer db.Close()

	builds, err := db.ListBuilds(*group)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "build\tgroup\tmethod\tobs\tbins\tcounts\tpasses\tstarted\ttook")
	for _, b := range builds {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%dx%dx%d\t%s\t%d\t%s\t%s\n",
			b.ID, b.GroupID, b.Method, b.Observations, b.EnergyBins, b.SpatialBins, b.SpatialBins,
			humanize.Comma(int64(b.TotalCounts)), b.SmoothingPasses,
			humanize.Time(b.StartedAt), b.Duration)
	}
	return w.Flush()
}

func runMigrate(args []string, in io.Reader, out io.Writer) error {
	fs := newFlagSet("migrate", out)
	indexPath := fs.String("index", "bgcube.db", "observation index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return obsdb.RunMigrateCommand(fs.Args(), *indexPath, in, out)
}

func runVersion(out io.Writer) error {
	_, err := fmt.Fprintln(out, version.String())
	return err
}
