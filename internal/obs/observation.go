// Package obs models the observation run list consumed by the background
// builder and the alt/az grouping that decides which runs share a model.
package obs

import (
	"math"
	"time"
)

// Observation is one row of the run list. Times are seconds relative to the
// table's MJD reference; angles are degrees.
type Observation struct {
	ObsID           int64
	TimeStart       float64
	TimeStop        float64
	TimeObservation float64
	Livetime        float64
	AltDeg          float64
	AzDeg           float64
	NTels           int
	MuonEfficiency  float64
	GroupID         int
}

// ZenithDeg returns 90 - altitude.
func (o Observation) ZenithDeg() float64 { return 90 - o.AltDeg }

// Table is an ordered run list with its observatory tag and time reference.
type Table struct {
	Observatory string
	MJDRefI     float64
	MJDRefF     float64
	Rows        []Observation
}

// Len returns the number of observations.
func (t *Table) Len() int { return len(t.Rows) }

// IDs returns the observation IDs in table order.
func (t *Table) IDs() []int64 {
	ids := make([]int64, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.ObsID
	}
	return ids
}

// Subset returns a table sharing the header of t with the given rows.
func (t *Table) Subset(rows []Observation) *Table {
	return &Table{Observatory: t.Observatory, MJDRefI: t.MJDRefI, MJDRefF: t.MJDRefF, Rows: rows}
}

// TotalLivetime sums the livetime column in seconds.
func (t *Table) TotalLivetime() float64 {
	var sum float64
	for _, r := range t.Rows {
		sum += r.Livetime
	}
	return sum
}

// StartTime converts a row's TimeStart to UTC.
func (t *Table) StartTime(o Observation) time.Time {
	return MJDToTime(t.MJDRefI + t.MJDRefF + o.TimeStart/86400)
}

// mjdUnixEpoch is the MJD of 1970-01-01T00:00:00Z.
const mjdUnixEpoch = 40587

// MJDToTime converts a modified Julian date to UTC, ignoring leap seconds.
func MJDToTime(mjd float64) time.Time {
	sec := (mjd - mjdUnixEpoch) * 86400
	whole := math.Floor(sec)
	return time.Unix(int64(whole), int64(math.Round((sec-whole)*1e9))).UTC()
}

// TimeToMJD is the inverse of MJDToTime.
func TimeToMJD(t time.Time) float64 {
	return float64(t.UnixNano())/86400e9 + mjdUnixEpoch
}
