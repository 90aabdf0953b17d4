package obs

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// GroupAxis is one pointing-direction axis used to split observations.
type GroupAxis struct {
	Name  string // ALT or AZ
	Edges []float64
}

// NewGroupAxis validates that edges are strictly increasing.
func NewGroupAxis(name string, edges []float64) (GroupAxis, error) {
	if len(edges) < 2 {
		return GroupAxis{}, fmt.Errorf("group axis %s needs at least 2 edges", name)
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return GroupAxis{}, fmt.Errorf("group axis %s edges not increasing at %d", name, i)
		}
	}
	return GroupAxis{Name: strings.ToUpper(name), Edges: slices.Clone(edges)}, nil
}

// Bins returns the number of bins on the axis.
func (a GroupAxis) Bins() int { return len(a.Edges) - 1 }

// find returns the bin holding v; the upper edge belongs to the last bin.
func (a GroupAxis) find(v float64) (int, bool) {
	n := len(a.Edges)
	if math.IsNaN(v) || v < a.Edges[0] || v > a.Edges[n-1] {
		return 0, false
	}
	if v == a.Edges[n-1] {
		return n - 2, true
	}
	i, found := slices.BinarySearch(a.Edges, v)
	if !found {
		i--
	}
	return i, true
}

// DefaultAltEdges and DefaultAzEdges are the H.E.S.S. background model
// pointing bins: 14 altitude bands and two azimuth halves (north/south).
var (
	DefaultAltEdges = []float64{0, 20, 23, 27, 30, 33, 37, 40, 44, 49, 53, 58, 64, 72, 90}
	DefaultAzEdges  = []float64{-90, 90, 270}
)

// Groups is the cartesian product of an altitude and an azimuth axis.
// Group IDs enumerate altitude bins major and azimuth bins minor.
type Groups struct {
	Alt GroupAxis
	Az  GroupAxis
}

// NewGroups builds a grouping from altitude and azimuth edges in degrees.
func NewGroups(altEdges, azEdges []float64) (*Groups, error) {
	alt, err := NewGroupAxis("ALT", altEdges)
	if err != nil {
		return nil, err
	}
	az, err := NewGroupAxis("AZ", azEdges)
	if err != nil {
		return nil, err
	}
	if az.Edges[len(az.Edges)-1]-az.Edges[0] > 360 {
		return nil, fmt.Errorf("azimuth axis spans more than 360 degrees")
	}
	return &Groups{Alt: alt, Az: az}, nil
}

// DefaultGroups returns the standard 14x2 grouping.
func DefaultGroups() *Groups {
	g, err := NewGroups(DefaultAltEdges, DefaultAzEdges)
	if err != nil {
		panic(err)
	}
	return g
}

// Len returns the number of groups.
func (g *Groups) Len() int { return g.Alt.Bins() * g.Az.Bins() }

// Group describes the pointing box of one group.
type Group struct {
	ID     int
	AltMin float64
	AltMax float64
	AzMin  float64
	AzMax  float64
}

// Describe returns every group box in ID order.
func (g *Groups) Describe() []Group {
	out := make([]Group, 0, g.Len())
	for ia := 0; ia < g.Alt.Bins(); ia++ {
		for iz := 0; iz < g.Az.Bins(); iz++ {
			out = append(out, Group{
				ID:     ia*g.Az.Bins() + iz,
				AltMin: g.Alt.Edges[ia],
				AltMax: g.Alt.Edges[ia+1],
				AzMin:  g.Az.Edges[iz],
				AzMax:  g.Az.Edges[iz+1],
			})
		}
	}
	return out
}

// WrapAzimuth shifts az by a multiple of 360 degrees into
// [lo, lo+360) when it lies outside the azimuth axis range.
func (g *Groups) WrapAzimuth(az float64) float64 {
	lo, hi := g.Az.Edges[0], g.Az.Edges[len(g.Az.Edges)-1]
	if az >= lo && az < hi {
		return az
	}
	az = lo + math.Mod(az-lo, 360)
	if az < lo {
		az += 360
	}
	return az
}

// Find returns the group ID of a pointing direction.
func (g *Groups) Find(altDeg, azDeg float64) (int, bool) {
	if math.IsNaN(azDeg) || math.IsInf(azDeg, 0) {
		return 0, false
	}
	ia, ok := g.Alt.find(altDeg)
	if !ok {
		return 0, false
	}
	iz, ok := g.Az.find(g.WrapAzimuth(azDeg))
	if !ok {
		return 0, false
	}
	return ia*g.Az.Bins() + iz, true
}

// Assign sets GroupID on every row that falls in a group and returns the
// IDs of observations that fall outside all groups. Those keep GroupID -1.
func (g *Groups) Assign(t *Table) (unmatched []int64) {
	for i := range t.Rows {
		id, ok := g.Find(t.Rows[i].AltDeg, t.Rows[i].AzDeg)
		if !ok {
			t.Rows[i].GroupID = -1
			unmatched = append(unmatched, t.Rows[i].ObsID)
			continue
		}
		t.Rows[i].GroupID = id
	}
	return unmatched
}

// GroupTable is the subset of a run list belonging to one group.
type GroupTable struct {
	ID    int
	Table *Table
}

// Split partitions t by pointing into non-empty groups in ID order,
// preserving row order inside each group. t itself is not modified.
func (g *Groups) Split(t *Table) (groups []GroupTable, unmatched []int64) {
	buckets := make(map[int][]Observation)
	for _, row := range t.Rows {
		id, ok := g.Find(row.AltDeg, row.AzDeg)
		if !ok {
			unmatched = append(unmatched, row.ObsID)
			continue
		}
		row.GroupID = id
		buckets[id] = append(buckets[id], row)
	}
	for id := 0; id < g.Len(); id++ {
		if rows, ok := buckets[id]; ok {
			groups = append(groups, GroupTable{ID: id, Table: t.Subset(rows)})
		}
	}
	return groups, unmatched
}

// Select returns the rows of t whose GroupID equals id, as recorded in the
// run list.
func (t *Table) Select(id int) *Table {
	var rows []Observation
	for _, r := range t.Rows {
		if r.GroupID == id {
			rows = append(rows, r)
		}
	}
	return t.Subset(rows)
}
