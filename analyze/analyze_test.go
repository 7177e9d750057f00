package analyze

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/node"
)

func broadcastRecords(nodeID int, times ...int64) []node.Record {
	records := make([]node.Record, len(times))
	for i, t := range times {
		records[i] = node.Record{Time: t, NodeID: nodeID, Kind: node.KindBroadcast}
	}
	return records
}

func TestMinBroadcastCount(t *testing.T) {
	var records []node.Record
	records = append(records, broadcastRecords(0, 0, 100, 200)...)
	records = append(records, broadcastRecords(1, 0, 100)...)

	require.Equal(t, 2, MinBroadcastCount(records))
}

func TestConvergenceTimePerfectPeriod(t *testing.T) {
	const interval = 100
	const duration = 1000
	records := broadcastRecords(0, 0, 100, 200, 300, 400, 500, 600, 700, 800, 900)
	require.Equal(t, 0.0, ConvergenceTime(records, interval, duration))
}

func TestConvergenceTimeOnePerturbation(t *testing.T) {
	const interval = 100
	const duration = 1000
	// Gap index k=2 (between t_2=200 and t_3=330) is perturbed: t = 0,100,200,330,430,530,...
	times := []int64{0, 100, 200, 330, 430, 530, 630, 730, 830, 930}
	records := broadcastRecords(0, times...)
	got := ConvergenceTime(records, interval, duration)
	require.Equal(t, float64(times[2+2]), got)
}

func TestConvergenceTimeNonBroadcasting(t *testing.T) {
	const interval = 100
	const duration = 1000
	records := broadcastRecords(0, 0, 100, 200)
	got := ConvergenceTime(records, interval, duration)
	require.True(t, got > 1e300) // +Inf
}

func TestMaxFinalDeficit(t *testing.T) {
	records := []node.Record{
		{Time: 0, NodeID: 0, Kind: node.KindDeficit, Payload: "0.100000"},
		{Time: 100, NodeID: 0, Kind: node.KindDeficit, Payload: "0.050000"},
		{Time: 50, NodeID: 1, Kind: node.KindDeficit, Payload: "0.900000"},
	}
	max, err := MaxFinalDeficit(records)
	require.NoError(t, err)
	require.InDelta(t, 0.9, max, 1e-9)
}

func TestCDFScenario(t *testing.T) {
	points := CDF([]float64{1, 2, 3, 4}, 0, 4, 4)
	require.Len(t, points, 4)
	wantEdges := []float64{1, 2, 3, 4}
	wantFractions := []float64{0.25, 0.5, 0.75, 1.0}
	for i, p := range points {
		require.InDelta(t, wantEdges[i], p.Edge, 1e-9)
		require.InDelta(t, wantFractions[i], p.Fraction, 1e-9)
	}
}

func TestExamineTransientDeficitIsNotImplemented(t *testing.T) {
	_, err := ExamineTransientDeficit(nil)
	require.ErrorIs(t, err, desyncerrors.ErrNotImplemented)
}
