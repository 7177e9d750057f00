// Package simlog merges and serializes per-node domain logs into the single
// instance-wide log file consumed by the analyzer. The writer is grounded on
// the CSV exporter pattern: a thin encoding/csv.Writer wrapper with its own
// newline-terminated record grammar.
package simlog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/node"
)

// Merge combines every node's local log into one sequence ordered by
// (time, node_id), with ties broken by a stable sort that preserves each
// node's own log order. Since every node's log is already appended in the
// order its events occurred, this is enough to disambiguate same-node,
// same-time records without a global counter.
func Merge(nodes []*node.Node) []node.Record {
	total := 0
	for _, n := range nodes {
		total += len(n.Log)
	}

	records := make([]node.Record, 0, total)
	for _, n := range nodes {
		records = append(records, n.Log...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.NodeID < b.NodeID
	})
	return records
}

// Write serializes records to w as "time,node_id,kind,payload" lines.
func Write(w io.Writer, records []node.Record) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false
	for _, r := range records {
		payload := r.Payload
		if payload == "" {
			payload = "None"
		}
		row := []string{
			fmt.Sprintf("%d", r.Time),
			fmt.Sprintf("%d", r.NodeID),
			string(r.Kind),
			payload,
		}
		if err := cw.Write(row); err != nil {
			return desyncerrors.NewIOError("simlog_write", "failed writing log record", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return desyncerrors.NewIOError("simlog_write", "failed flushing log", err)
	}
	return nil
}

// WriteFile creates path and writes the merged records to it.
func WriteFile(path string, records []node.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return desyncerrors.NewIOError("simlog_write_file", "cannot create log file", err).
			WithContext("path", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := Write(bw, records); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return desyncerrors.NewIOError("simlog_write_file", "failed flushing log file", err).
			WithContext("path", path)
	}
	return nil
}

// Parse reads a merged log file back into records, for analyzer consumption.
func Parse(r io.Reader) ([]node.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.ReuseRecord = true

	var records []node.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, desyncerrors.NewIOError("simlog_parse", "malformed log line", err)
		}

		var t int64
		var nodeID int
		if _, err := fmt.Sscanf(row[0], "%d", &t); err != nil {
			return nil, desyncerrors.NewIOError("simlog_parse", "non-integer time field", err)
		}
		if _, err := fmt.Sscanf(row[1], "%d", &nodeID); err != nil {
			return nil, desyncerrors.NewIOError("simlog_parse", "non-integer node_id field", err)
		}

		payload := row[3]
		if payload == "None" {
			payload = ""
		}
		records = append(records, node.Record{
			Time:    t,
			NodeID:  nodeID,
			Kind:    node.RecordKind(row[2]),
			Payload: payload,
		})
	}
	return records, nil
}

// ParseFile opens path and parses it as a merged log.
func ParseFile(path string) ([]node.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, desyncerrors.NewIOError("simlog_parse_file", "cannot open log file", err).
			WithContext("path", path)
	}
	defer f.Close()
	return Parse(f)
}
