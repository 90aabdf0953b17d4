package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/report"
	"github.com/banshee-data/bgcube/internal/simulate"
)

func init() {
	monitoring.SetLogger(nil)
}

func writeSet(t *testing.T, fsys fsutil.FileSystem, dir string, mask bool, ids ...int) {
	t.Helper()
	cfg := simulate.DefaultCubeConfig()
	cfg.Mask = mask
	bg, err := simulate.BackgroundCube(cfg)
	require.NoError(t, err)
	m, err := bgmodel.NewEmptyModel(bg.Edges())
	require.NoError(t, err)
	copy(m.Background.Data, bg.Data)
	for _, id := range ids {
		require.NoError(t, m.WriteFile(fsys, dir+"/"+bgmodel.ModelFileName(id)))
	}
}

func TestRun(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeSet(t, fsys, "/a", false, 14, 15)
	writeSet(t, fsys, "/b", true, 14, 15)

	var out bytes.Buffer
	err := run([]string{"-dir1", "/a", "-dir2", "/b", "-groups", "", "-out", "/cmp", "-coords", "-3,-3", "-energies", "1"}, &out, fsys)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "mean corr")
	assert.True(t, fsutil.Exists(fsys, "/cmp/"+report.FigureFile(14)))
	assert.True(t, fsutil.Exists(fsys, "/cmp/"+report.HTMLFile))
}

func TestRun_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	var out bytes.Buffer

	assert.ErrorContains(t, run(nil, &out, fsys), "-dir1 and -dir2")
	assert.ErrorContains(t, run([]string{"-dir1", "/a", "-dir2", "/b", "-coords", "1"}, &out, fsys), "-coords")
	assert.ErrorContains(t, run([]string{"-dir1", "/a", "-dir2", "/b", "-energies", "x"}, &out, fsys), "-energies")
	assert.Error(t, run([]string{"-dir1", "/a", "-dir2", "/b", "-png=false", "-html=false"}, &out, fsys))
}
