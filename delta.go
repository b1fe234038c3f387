package boardsync

import (
	"github.com/golang/glog"
)

/*
The delta computer diffs the previous snapshot against the live element list
into the minimal operation set:
- id only in the live list: Insert, with a position key allocated between
  its neighbors' keys
- id in both with a different version: Update (position preserved)
- id only in the snapshot: Delete

An id that disappears and later reappears with the same version is a fresh
Insert; it is never reconciled with its earlier Delete.

The computer also returns the next snapshot, which replaces the stored one
whether or not any operations resulted: the live list's order is the new
truth either way.
*/

type ElementInsert struct {
	Element *Element
	Pos     string
}

type ElementDelta struct {
	Inserts []*ElementInsert
	Updates []*Element
	Deletes []string
}

func (self *ElementDelta) Empty() bool {
	return len(self.Inserts) == 0 && len(self.Updates) == 0 && len(self.Deletes) == 0
}

func computeElementDelta(snapshot []*SnapshotEntry, elements []*Element) (*ElementDelta, []*SnapshotEntry) {
	prevEntries := make(map[string]*SnapshotEntry, len(snapshot))
	for _, entry := range snapshot {
		prevEntries[entry.Id] = entry
	}

	// position keys in live order. Existing ids keep their stored key;
	// new ids get a key between their nearest keyed neighbors.
	positions := make([]string, len(elements))
	prevPos := ""
	for i, element := range elements {
		if entry, ok := prevEntries[element.Id]; ok {
			positions[i] = entry.Pos
			prevPos = entry.Pos
			continue
		}
		nextPos := ""
		for j := i + 1; j < len(elements); j += 1 {
			if entry, ok := prevEntries[elements[j].Id]; ok {
				nextPos = entry.Pos
				break
			}
		}
		pos, err := KeyBetween(prevPos, nextPos)
		if err != nil {
			// neighbors out of key order, from a not-yet-pulled reorder.
			// append past the lower neighbor instead.
			glog.V(1).Infof("[delta]key between %q %q: %s\n", prevPos, nextPos, err)
			pos = RequireKeyBetween(prevPos, "")
		}
		positions[i] = pos
		prevPos = pos
	}

	delta := &ElementDelta{
		Inserts: []*ElementInsert{},
		Updates: []*Element{},
		Deletes: []string{},
	}
	nextSnapshot := make([]*SnapshotEntry, 0, len(elements))
	liveIds := make(map[string]bool, len(elements))
	for i, element := range elements {
		liveIds[element.Id] = true
		if entry, ok := prevEntries[element.Id]; ok {
			if entry.Version != element.Version {
				delta.Updates = append(delta.Updates, element)
			}
		} else {
			delta.Inserts = append(delta.Inserts, &ElementInsert{
				Element: element,
				Pos:     positions[i],
			})
		}
		nextSnapshot = append(nextSnapshot, &SnapshotEntry{
			Id:      element.Id,
			Version: element.Version,
			Pos:     positions[i],
		})
	}
	for _, entry := range snapshot {
		if !liveIds[entry.Id] {
			delta.Deletes = append(delta.Deletes, entry.Id)
		}
	}
	sortSnapshot(nextSnapshot)

	return delta, nextSnapshot
}

// computeAssetAdds diffs by id set alone. Assets have no version and no
// delete variant: removal is never propagated.
func computeAssetAdds(knownAssetIds map[string]bool, assets []*Asset) []*Asset {
	adds := []*Asset{}
	for _, asset := range assets {
		if !knownAssetIds[asset.Id] {
			adds = append(adds, asset)
		}
	}
	return adds
}
