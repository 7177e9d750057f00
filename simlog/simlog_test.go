package simlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/node"
)

func TestMergeOrdersByTimeThenNode(t *testing.T) {
	n0 := &node.Node{ID: 0}
	n1 := &node.Node{ID: 1}
	n0.Log = []node.Record{
		{Time: 0, NodeID: 0, Kind: node.KindInit},
		{Time: 5, NodeID: 0, Kind: node.KindBroadcast},
	}
	n1.Log = []node.Record{
		{Time: 0, NodeID: 1, Kind: node.KindInit},
		{Time: 5, NodeID: 1, Kind: node.KindBroadcast},
	}

	merged := Merge([]*node.Node{n1, n0})
	require.Len(t, merged, 4)
	require.Equal(t, []int{0, 1, 0, 1}, []int{merged[0].NodeID, merged[1].NodeID, merged[2].NodeID, merged[3].NodeID})
	require.Equal(t, []int64{0, 0, 5, 5}, []int64{merged[0].Time, merged[1].Time, merged[2].Time, merged[3].Time})
}

func TestWriteParseRoundTrip(t *testing.T) {
	records := []node.Record{
		{Time: 0, NodeID: 0, Kind: node.KindInit, Payload: ""},
		{Time: 5, NodeID: 0, Kind: node.KindAdjust, Payload: "123"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	require.Equal(t, records, parsed)
}
