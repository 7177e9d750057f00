package node

import "fmt"

// RecordKind enumerates the domain log grammar: "time,node_id,kind,payload".
type RecordKind string

const (
	KindInit      RecordKind = "init"
	KindBroadcast RecordKind = "broadcast"
	KindDeficit   RecordKind = "deficit"
	KindAdjust    RecordKind = "adjust"
	KindNmap      RecordKind = "nmap"
	KindShort     RecordKind = "short"
	KindReset     RecordKind = "reset"
)

// Record is one append-only domain log entry. Payload is the kind-specific
// string form; an empty Payload renders as "None" in the emitted file.
type Record struct {
	Time    int64
	NodeID  int
	Kind    RecordKind
	Payload string
}

func (r Record) String() string {
	payload := r.Payload
	if payload == "" {
		payload = "None"
	}
	return fmt.Sprintf("%d,%d,%s,%s", r.Time, r.NodeID, r.Kind, payload)
}
