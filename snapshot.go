package boardsync

import (
	"fmt"
	"sort"
)

/*
The snapshot is the binding's only memory between events: a minimal
projection of the last-synchronized element list, sorted by position key.
It is always re-derivable from the shared sequence and is never trusted as
authoritative; after any remote event it is rebuilt wholesale from the
sequence.
*/

type SnapshotEntry struct {
	Id      string
	Version int64
	Pos     string
}

// snapshotMatches is the fast path for a surface that notifies on every
// interaction: equality by (id, version) pairs in order means nothing
// semantic changed this cycle.
func snapshotMatches(snapshot []*SnapshotEntry, elements []*Element) bool {
	if len(snapshot) != len(elements) {
		return false
	}
	for i, entry := range snapshot {
		if entry.Id != elements[i].Id || entry.Version != elements[i].Version {
			return false
		}
	}
	return true
}

// snapshotFromSequence rebuilds the snapshot from the shared sequence,
// which arrives already in position order. An entry missing its id or
// position is a fatal integrity violation of the external document.
func snapshotFromSequence(entries []*SequenceEntry) []*SnapshotEntry {
	snapshot := make([]*SnapshotEntry, 0, len(entries))
	for _, entry := range entries {
		requireWellFormed(entry)
		snapshot = append(snapshot, &SnapshotEntry{
			Id:      entry.Element.Id,
			Version: entry.Element.Version,
			Pos:     entry.Pos,
		})
	}
	return snapshot
}

func requireWellFormed(entry *SequenceEntry) {
	if entry.Element == nil || entry.Element.Id == "" || entry.Pos == "" {
		panic(fmt.Errorf("malformed shared sequence entry: %v", entry))
	}
}

func sortSnapshot(snapshot []*SnapshotEntry) {
	sort.SliceStable(snapshot, func(i int, j int) bool {
		if c := CompareKeys(snapshot[i].Pos, snapshot[j].Pos); c != 0 {
			return c < 0
		}
		return snapshot[i].Id < snapshot[j].Id
	})
}
