package boardsync

import (
	"github.com/golang/glog"
)

/*
The applier writes one delta into the shared structures inside a single
transaction tagged with the binding as origin. The transaction boundary is
the unit of atomicity: the binding's own observers see the tag and no-op,
and no other observer can see a partial apply.

Update locates the entry by id through the sequence's id index and replaces
the payload in place, preserving the entry's position.
*/

func (self *Binding) applyElementDelta(delta *ElementDelta) {
	glog.V(2).Infof("[apply]+%d ~%d -%d\n", len(delta.Inserts), len(delta.Updates), len(delta.Deletes))
	self.doc.Transact(self, func(txn *DocTxn) {
		for _, insert := range delta.Inserts {
			txn.InsertElement(insert.Element, insert.Pos)
		}
		for _, element := range delta.Updates {
			txn.UpdateElement(element)
		}
		for _, id := range delta.Deletes {
			txn.DeleteElement(id)
		}
	})
}

func (self *Binding) applyAssetAdds(adds []*Asset) {
	glog.V(2).Infof("[apply]assets +%d\n", len(adds))
	self.doc.Transact(self, func(txn *DocTxn) {
		for _, asset := range adds {
			txn.SetAsset(asset)
		}
	})
}
