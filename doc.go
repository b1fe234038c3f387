package boardsync

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang/glog"
)

/*
Doc is the reference replicated-document collaborator: an ordered element
sequence with deep observe, an append-mostly asset map with shallow observe,
and an atomic transaction primitive carrying an arbitrary origin value.

Semantics the binding relies on:
- a transaction is the unit of atomicity. Observers fire strictly after the
  transaction commits and the doc lock is released, so no partial-apply
  state is ever visible and the origin tag is visible atomically with the
  full mutation.
- the sequence is totally ordered by (position key, element id). The id
  tiebreak makes concurrent inserts at the same key converge identically on
  every replica.
- per-id conflicts merge last-writer-wins by (lamport, site), so replaying
  the same update is a no-op and two linked docs converge.
*/

type Transaction struct {
	Origin any
}

type SequenceEventKind string

const (
	SequenceInsert SequenceEventKind = "insert"
	SequenceUpdate SequenceEventKind = "update"
	SequenceDelete SequenceEventKind = "delete"
)

// ids merely shifted by a neighbor's insert or delete get no event.
// an event means the entry's own content changed in the batch.
type SequenceEvent struct {
	Kind SequenceEventKind
	Id   string
}

type SequenceObserveFunction func(events []*SequenceEvent, txn *Transaction)
type MapObserveFunction func(keysChanged []string, txn *Transaction)
type UpdateFunction func(update *DocUpdate)

type DocOpKind string

const (
	DocOpInsert   DocOpKind = "insert"
	DocOpUpdate   DocOpKind = "update"
	DocOpDelete   DocOpKind = "delete"
	DocOpAssetAdd DocOpKind = "assetAdd"
)

type DocOp struct {
	Kind DocOpKind
	Id   string

	Element     *Element
	PrevElement *Element
	Pos         string
	PrevPos     string

	Lamport uint64
	Site    Id

	Asset *Asset
}

// the committed ops of one transaction, in apply order
type DocUpdate struct {
	Origin any
	Ops    []*DocOp
}

type seqEntry struct {
	element *Element
	pos     string
	lamport uint64
	site    Id
}

type Doc struct {
	siteId Id

	mutex sync.Mutex

	entries []*seqEntry
	// id -> index side map, rebuilt on structural change
	entryIndexes map[string]int
	assets       map[string]*Asset

	lamport uint64

	inTransaction    bool
	pendingSeqEvents []*SequenceEvent
	pendingKeys      []string
	pendingOps       []*DocOp

	elements     *SharedSequence
	sharedAssets *SharedMap

	seqCallbacks    *CallbackList[SequenceObserveFunction]
	mapCallbacks    *CallbackList[MapObserveFunction]
	updateCallbacks *CallbackList[UpdateFunction]
}

func NewDoc() *Doc {
	doc := &Doc{
		siteId:          NewId(),
		entries:         []*seqEntry{},
		entryIndexes:    map[string]int{},
		assets:          map[string]*Asset{},
		seqCallbacks:    NewCallbackList[SequenceObserveFunction](),
		mapCallbacks:    NewCallbackList[MapObserveFunction](),
		updateCallbacks: NewCallbackList[UpdateFunction](),
	}
	doc.elements = &SharedSequence{doc: doc}
	doc.sharedAssets = &SharedMap{doc: doc}
	return doc
}

func (self *Doc) SiteId() Id {
	return self.siteId
}

func (self *Doc) Elements() *SharedSequence {
	return self.elements
}

func (self *Doc) Assets() *SharedMap {
	return self.sharedAssets
}

func (self *Doc) OnUpdate(callback UpdateFunction) func() {
	callbackId := self.updateCallbacks.Add(callback)
	return func() {
		self.updateCallbacks.Remove(callbackId)
	}
}

// Transact runs fn atomically and fires observers after commit.
// Mutations go through the DocTxn handed to fn.
func (self *Doc) Transact(origin any, fn func(txn *DocTxn)) {
	self.mutex.Lock()
	if self.inTransaction {
		self.mutex.Unlock()
		panic(fmt.Errorf("nested transaction"))
	}
	self.inTransaction = true
	self.pendingSeqEvents = nil
	self.pendingKeys = nil
	self.pendingOps = nil

	txn := &DocTxn{doc: self}
	fn(txn)
	txn.doc = nil

	seqEvents := self.pendingSeqEvents
	keys := self.pendingKeys
	ops := self.pendingOps
	self.pendingSeqEvents = nil
	self.pendingKeys = nil
	self.pendingOps = nil
	self.inTransaction = false
	self.mutex.Unlock()

	self.commit(origin, seqEvents, keys, ops)
}

func (self *Doc) commit(origin any, seqEvents []*SequenceEvent, keys []string, ops []*DocOp) {
	txn := &Transaction{Origin: origin}
	if 0 < len(seqEvents) {
		for _, callback := range self.seqCallbacks.Get() {
			callback(seqEvents, txn)
		}
	}
	if 0 < len(keys) {
		for _, callback := range self.mapCallbacks.Get() {
			callback(keys, txn)
		}
	}
	if 0 < len(ops) {
		update := &DocUpdate{
			Origin: origin,
			Ops:    ops,
		}
		for _, callback := range self.updateCallbacks.Get() {
			callback(update)
		}
	}
}

// ApplyUpdate merges a peer's committed ops into this doc. Replays and
// already-superseded writes are no-ops, so a two-way link between docs
// settles instead of echoing forever.
func (self *Doc) ApplyUpdate(update *DocUpdate, origin any) {
	self.mutex.Lock()
	if self.inTransaction {
		self.mutex.Unlock()
		panic(fmt.Errorf("apply inside transaction"))
	}

	for _, op := range update.Ops {
		if self.lamport < op.Lamport {
			self.lamport = op.Lamport
		}
		switch op.Kind {
		case DocOpInsert:
			if i, ok := self.entryIndexes[op.Id]; ok {
				entry := self.entries[i]
				if !opWins(op.Lamport, op.Site, entry) {
					continue
				}
				structural := entry.pos != op.Pos
				entry.element = op.Element.Clone()
				entry.lamport = op.Lamport
				entry.site = op.Site
				if structural {
					entry.pos = op.Pos
					self.resort()
				}
				self.pendingSeqEvents = append(self.pendingSeqEvents, &SequenceEvent{Kind: SequenceUpdate, Id: op.Id})
			} else {
				self.insertEntry(&seqEntry{
					element: op.Element.Clone(),
					pos:     op.Pos,
					lamport: op.Lamport,
					site:    op.Site,
				})
				self.pendingSeqEvents = append(self.pendingSeqEvents, &SequenceEvent{Kind: SequenceInsert, Id: op.Id})
			}
			self.pendingOps = append(self.pendingOps, op)
		case DocOpUpdate:
			i, ok := self.entryIndexes[op.Id]
			if !ok {
				// deleted concurrently, delete wins
				continue
			}
			entry := self.entries[i]
			if !opWins(op.Lamport, op.Site, entry) {
				continue
			}
			entry.element = op.Element.Clone()
			entry.lamport = op.Lamport
			entry.site = op.Site
			self.pendingSeqEvents = append(self.pendingSeqEvents, &SequenceEvent{Kind: SequenceUpdate, Id: op.Id})
			self.pendingOps = append(self.pendingOps, op)
		case DocOpDelete:
			i, ok := self.entryIndexes[op.Id]
			if !ok {
				continue
			}
			self.entries = append(self.entries[:i], self.entries[i+1:]...)
			self.rebuildIndexes()
			self.pendingSeqEvents = append(self.pendingSeqEvents, &SequenceEvent{Kind: SequenceDelete, Id: op.Id})
			self.pendingOps = append(self.pendingOps, op)
		case DocOpAssetAdd:
			if _, ok := self.assets[op.Id]; ok {
				continue
			}
			self.assets[op.Id] = op.Asset.Clone()
			self.pendingKeys = append(self.pendingKeys, op.Id)
			self.pendingOps = append(self.pendingOps, op)
		}
	}

	seqEvents := self.pendingSeqEvents
	keys := self.pendingKeys
	ops := self.pendingOps
	self.pendingSeqEvents = nil
	self.pendingKeys = nil
	self.pendingOps = nil
	self.mutex.Unlock()

	self.commit(origin, seqEvents, keys, ops)
}

// op wins over the stored entry on a strictly newer (lamport, site) pair
func opWins(lamport uint64, site Id, entry *seqEntry) bool {
	if entry.lamport != lamport {
		return entry.lamport < lamport
	}
	if entry.site != site {
		return entry.site.String() < site.String()
	}
	// same writer, same clock: a replay
	return false
}

// must be called with `mutex`
func (self *Doc) nextLamport() uint64 {
	self.lamport += 1
	return self.lamport
}

// must be called with `mutex`
func (self *Doc) insertEntry(entry *seqEntry) {
	i := sort.Search(len(self.entries), func(i int) bool {
		if c := CompareKeys(entry.pos, self.entries[i].pos); c != 0 {
			return c < 0
		}
		return entry.element.Id < self.entries[i].element.Id
	})
	self.entries = append(self.entries, nil)
	copy(self.entries[i+1:], self.entries[i:])
	self.entries[i] = entry
	self.rebuildIndexes()
}

// must be called with `mutex`
func (self *Doc) resort() {
	sort.SliceStable(self.entries, func(i int, j int) bool {
		if c := CompareKeys(self.entries[i].pos, self.entries[j].pos); c != 0 {
			return c < 0
		}
		return self.entries[i].element.Id < self.entries[j].element.Id
	})
	self.rebuildIndexes()
}

// must be called with `mutex`
func (self *Doc) rebuildIndexes() {
	self.entryIndexes = make(map[string]int, len(self.entries))
	for i, entry := range self.entries {
		self.entryIndexes[entry.element.Id] = i
	}
}

// LinkDocs wires two docs into each other's update feeds, in process.
// Returns an unlink.
func LinkDocs(a *Doc, b *Doc) func() {
	type docLink struct{}
	link := &docLink{}
	var applying bool
	unsubA := a.OnUpdate(func(update *DocUpdate) {
		if applying {
			return
		}
		applying = true
		b.ApplyUpdate(update, link)
		applying = false
	})
	unsubB := b.OnUpdate(func(update *DocUpdate) {
		if applying {
			return
		}
		applying = true
		a.ApplyUpdate(update, link)
		applying = false
	})
	return func() {
		unsubA()
		unsubB()
	}
}

// mutation handle scoped to one Transact call
type DocTxn struct {
	doc *Doc
}

func (self *DocTxn) require() *Doc {
	if self.doc == nil {
		panic(fmt.Errorf("transaction already committed"))
	}
	return self.doc
}

func (self *DocTxn) InsertElement(element *Element, pos string) {
	doc := self.require()
	if element.Id == "" || pos == "" {
		panic(fmt.Errorf("insert requires an id and a position"))
	}
	if _, ok := doc.entryIndexes[element.Id]; ok {
		glog.Warningf("[doc]insert of existing id %s treated as update\n", element.Id)
		self.UpdateElement(element)
		return
	}
	entry := &seqEntry{
		element: element.Clone(),
		pos:     pos,
		lamport: doc.nextLamport(),
		site:    doc.siteId,
	}
	doc.insertEntry(entry)
	doc.pendingSeqEvents = append(doc.pendingSeqEvents, &SequenceEvent{Kind: SequenceInsert, Id: element.Id})
	doc.pendingOps = append(doc.pendingOps, &DocOp{
		Kind:    DocOpInsert,
		Id:      element.Id,
		Element: entry.element.Clone(),
		Pos:     pos,
		Lamport: entry.lamport,
		Site:    entry.site,
	})
}

// UpdateElement replaces the payload in place. Position is preserved.
func (self *DocTxn) UpdateElement(element *Element) {
	doc := self.require()
	i, ok := doc.entryIndexes[element.Id]
	if !ok {
		// deleted concurrently
		glog.V(1).Infof("[doc]update of missing id %s dropped\n", element.Id)
		return
	}
	entry := doc.entries[i]
	prev := entry.element
	entry.element = element.Clone()
	entry.lamport = doc.nextLamport()
	entry.site = doc.siteId
	doc.pendingSeqEvents = append(doc.pendingSeqEvents, &SequenceEvent{Kind: SequenceUpdate, Id: element.Id})
	doc.pendingOps = append(doc.pendingOps, &DocOp{
		Kind:        DocOpUpdate,
		Id:          element.Id,
		Element:     entry.element.Clone(),
		PrevElement: prev,
		Pos:         entry.pos,
		PrevPos:     entry.pos,
		Lamport:     entry.lamport,
		Site:        entry.site,
	})
}

func (self *DocTxn) DeleteElement(id string) {
	doc := self.require()
	i, ok := doc.entryIndexes[id]
	if !ok {
		return
	}
	entry := doc.entries[i]
	doc.entries = append(doc.entries[:i], doc.entries[i+1:]...)
	doc.rebuildIndexes()
	doc.pendingSeqEvents = append(doc.pendingSeqEvents, &SequenceEvent{Kind: SequenceDelete, Id: id})
	doc.pendingOps = append(doc.pendingOps, &DocOp{
		Kind:        DocOpDelete,
		Id:          id,
		PrevElement: entry.element,
		PrevPos:     entry.pos,
		Lamport:     doc.nextLamport(),
		Site:        doc.siteId,
	})
}

// SetAsset stores the asset if its key is absent.
// Asset payloads are immutable once set.
func (self *DocTxn) SetAsset(asset *Asset) bool {
	doc := self.require()
	if asset.Id == "" {
		panic(fmt.Errorf("asset requires an id"))
	}
	if _, ok := doc.assets[asset.Id]; ok {
		return false
	}
	stored := asset.Clone()
	if stored.Schema == 0 {
		stored.Schema = AssetSchemaVersion
	}
	doc.assets[asset.Id] = stored
	doc.pendingKeys = append(doc.pendingKeys, asset.Id)
	doc.pendingOps = append(doc.pendingOps, &DocOp{
		Kind:    DocOpAssetAdd,
		Id:      asset.Id,
		Asset:   doc.assets[asset.Id].Clone(),
		Lamport: doc.nextLamport(),
		Site:    doc.siteId,
	})
	return true
}

// read-side view of a sequence entry. The element pointer aliases doc
// storage; readers copy before mutating.
type SequenceEntry struct {
	Element *Element
	Pos     string
}

type SharedSequence struct {
	doc *Doc
}

func (self *SharedSequence) Len() int {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()
	return len(self.doc.entries)
}

// Entries returns the sequence in position order.
func (self *SharedSequence) Entries() []*SequenceEntry {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()

	entries := make([]*SequenceEntry, 0, len(self.doc.entries))
	for _, entry := range self.doc.entries {
		entries = append(entries, &SequenceEntry{
			Element: entry.element,
			Pos:     entry.pos,
		})
	}
	return entries
}

func (self *SharedSequence) Get(id string) (*SequenceEntry, bool) {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()

	i, ok := self.doc.entryIndexes[id]
	if !ok {
		return nil, false
	}
	entry := self.doc.entries[i]
	return &SequenceEntry{
		Element: entry.element,
		Pos:     entry.pos,
	}, true
}

// Observe subscribes to deep changes. Returns an unsubscribe.
func (self *SharedSequence) Observe(callback SequenceObserveFunction) func() {
	callbackId := self.doc.seqCallbacks.Add(callback)
	return func() {
		self.doc.seqCallbacks.Remove(callbackId)
	}
}

type SharedMap struct {
	doc *Doc
}

func (self *SharedMap) Len() int {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()
	return len(self.doc.assets)
}

func (self *SharedMap) Has(id string) bool {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()
	_, ok := self.doc.assets[id]
	return ok
}

func (self *SharedMap) Get(id string) (*Asset, bool) {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()
	asset, ok := self.doc.assets[id]
	return asset, ok
}

func (self *SharedMap) Keys() []string {
	self.doc.mutex.Lock()
	defer self.doc.mutex.Unlock()

	keys := make([]string, 0, len(self.doc.assets))
	for key := range self.doc.assets {
		keys = append(keys, key)
	}
	return keys
}

// Observe subscribes to top-level key changes. Returns an unsubscribe.
func (self *SharedMap) Observe(callback MapObserveFunction) func() {
	callbackId := self.doc.mapCallbacks.Add(callback)
	return func() {
		self.doc.mapCallbacks.Remove(callbackId)
	}
}
