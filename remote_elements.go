package boardsync

import (
	"github.com/golang/glog"
)

/*
The remote element listener reprojects the shared sequence into the surface
whenever a transaction from any other origin commits. The sequence's
position order is the single source of truth for ordering; after a pull the
surface's list order matches it exactly, regardless of which peer inserted
what or in which order events arrived.

Only ids whose content changed in the batch are rematerialized. Everything
else keeps the locally-held object, so the surface does not discard
unrelated transient state for elements a peer merely shifted.
*/

// SequenceObserveFunction
func (self *Binding) observeElements(events []*SequenceEvent, txn *Transaction) {
	if txn.Origin == self {
		// echo suppression
		return
	}
	contentChanged := map[string]bool{}
	for _, event := range events {
		switch event.Kind {
		case SequenceInsert, SequenceUpdate:
			contentChanged[event.Id] = true
		}
	}
	glog.V(2).Infof("[rel]pull events = %d changed = %d\n", len(events), len(contentChanged))
	self.pullElements(contentChanged)
}

// pullElements rebuilds the element list and the snapshot from the shared
// sequence and pushes the list to the surface. A nil contentChanged
// rematerializes everything (used at bind time).
func (self *Binding) pullElements(contentChanged map[string]bool) {
	entries := self.elements.Entries()

	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	nextElements := make([]*Element, 0, len(entries))
	nextLocal := make(map[string]*Element, len(entries))
	for _, entry := range entries {
		requireWellFormed(entry)
		id := entry.Element.Id
		var element *Element
		if local, ok := self.localElements[id]; ok && contentChanged != nil && !contentChanged[id] {
			// identity preserved
			element = local
		} else {
			element = entry.Element.Clone()
			element.Payload = migrateShapePayload(element.Payload)
		}
		nextElements = append(nextElements, element)
		nextLocal[id] = element
	}
	self.snapshot = snapshotFromSequence(entries)
	self.localElements = nextLocal
	self.mutex.Unlock()

	self.surface.UpdateScene(&SceneUpdate{Elements: nextElements})
}
