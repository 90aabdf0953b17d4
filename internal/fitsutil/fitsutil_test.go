package fitsutil

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixture builds a FITS stream with one EVENTS-like table.
func writeFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)

	phdu, err := fitsio.NewPrimaryHDU(nil)
	require.NoError(t, err)
	require.NoError(t, f.Write(phdu))

	table, err := fitsio.NewTable("EVENTS", []fitsio.Column{
		{Name: "ENERGY", Format: "D", Unit: "TeV"},
		{Name: "DETX", Format: "E"},
		{Name: "EVENT_ID", Format: "K"},
		{Name: "TAG", Format: "8A"},
	}, fitsio.BINARY_TBL)
	require.NoError(t, err)
	require.NoError(t, table.Header().Append(
		fitsio.Card{Name: "LIVETIME", Value: 1500.0},
		fitsio.Card{Name: "NBINS", Value: 12},
		fitsio.Card{Name: "EUNIT", Value: "TeV", Comment: "energy unit"},
	))

	for i := 0; i < 3; i++ {
		e := float64(i) + 0.5
		x := float32(-i)
		id := int64(100 + i)
		tag := "ev"
		require.NoError(t, table.Write(&e, &x, &id, &tag))
	}
	require.NoError(t, f.Write(table))
	require.NoError(t, table.Close())
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func TestReadColumns(t *testing.T) {
	f, err := fitsio.Open(bytes.NewReader(writeFixture(t)))
	require.NoError(t, err)
	defer f.Close()

	table, ok := FindTable(f, "events")
	require.True(t, ok, "lookup is case-insensitive")

	cols, err := ReadColumns(table, "ENERGY", "DETX", "EVENT_ID")
	require.NoError(t, err)
	assert.Equal(t, 3, cols.Len)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, cols.Values["ENERGY"])
	assert.Equal(t, []float64{0, -1, -2}, cols.Values["DETX"])
	assert.Equal(t, []float64{100, 101, 102}, cols.Values["EVENT_ID"])
	assert.Equal(t, "TeV", cols.Units["ENERGY"])
	assert.Equal(t, "", cols.Units["DETX"])
	assert.True(t, cols.Has("ENERGY"))
	assert.False(t, cols.Has("TAG"))

	_, err = ReadColumns(table, "DETY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column DETY")
}

func TestHeaderAccessors(t *testing.T) {
	f, err := fitsio.Open(bytes.NewReader(writeFixture(t)))
	require.NoError(t, err)
	defer f.Close()

	table, ok := FindTable(f, "EVENTS")
	require.True(t, ok)
	hdr := table.Header()

	lt, err := HeaderFloat(hdr, "LIVETIME")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, lt)

	n, err := HeaderInt(hdr, "NBINS")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	nf, err := HeaderFloat(hdr, "NBINS")
	require.NoError(t, err)
	assert.Equal(t, 12.0, nf)

	u, err := HeaderString(hdr, "EUNIT")
	require.NoError(t, err)
	assert.Equal(t, "TeV", u)
	assert.Equal(t, "energy unit", HeaderComment(hdr, "EUNIT"))
	assert.Equal(t, "", HeaderComment(hdr, "NOPE"))

	_, err = HeaderFloat(hdr, "NOPE")
	assert.True(t, errors.Is(err, ErrMissingCard))
	_, err = HeaderInt(hdr, "EUNIT")
	assert.Error(t, err)
	_, err = HeaderString(hdr, "LIVETIME")
	assert.Error(t, err)

	_, ok = FindTable(f, "EFFECTIVE AREA")
	assert.False(t, ok)
}

func TestScalarTarget_Unsupported(t *testing.T) {
	_, _, err := scalarTarget(fitsio.Column{Name: "ARR", Format: "20D"})
	require.Error(t, err)

	target, get, err := scalarTarget(fitsio.Column{Name: "S", Format: "16A"})
	require.NoError(t, err)
	*(target.(*string)) = "x"
	assert.True(t, math.IsNaN(get()))
}

func TestReadColumns_SkipsUnrequestedVectorColumns(t *testing.T) {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)
	phdu, err := fitsio.NewPrimaryHDU(nil)
	require.NoError(t, err)
	require.NoError(t, f.Write(phdu))

	table, err := fitsio.NewTable("EVENTS", []fitsio.Column{
		{Name: "ENERGY", Format: "D", Unit: "TeV"},
		{Name: "TEL_MASK", Format: "4J"},
		{Name: "DETY", Format: "E", Unit: "deg"},
	}, fitsio.BINARY_TBL)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		e, y := float64(i)+1, float32(i)
		mask := [4]int32{1, 0, 1, int32(i)}
		require.NoError(t, table.Write(&e, &mask, &y))
	}
	require.NoError(t, f.Write(table))
	require.NoError(t, table.Close())
	require.NoError(t, f.Close())

	in, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer in.Close()
	events, ok := FindTable(in, "EVENTS")
	require.True(t, ok)

	cols, err := ReadColumns(events, "ENERGY", "DETY")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, cols.Values["ENERGY"])
	assert.Equal(t, []float64{0, 1}, cols.Values["DETY"])
	assert.Equal(t, "deg", cols.Units["DETY"])

	_, err = ReadColumns(events, "TEL_MASK")
	assert.ErrorContains(t, err, "unsupported format")
}
