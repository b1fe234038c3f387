package boardsync

import (
	mathrand "math/rand"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestDocTransactionAtomicity(t *testing.T) {
	doc := NewDoc()

	type observed struct {
		ids    []string
		origin any
		len    int
	}
	batches := []*observed{}
	doc.Elements().Observe(func(events []*SequenceEvent, txn *Transaction) {
		ids := []string{}
		for _, event := range events {
			ids = append(ids, event.Id)
		}
		batches = append(batches, &observed{
			ids:    ids,
			origin: txn.Origin,
			// observers fire after commit, so the full mutation is visible
			len: doc.Elements().Len(),
		})
	})

	origin := "me"
	doc.Transact(origin, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
		txn.InsertElement(testElement("e2", 1), "a1")
	})

	assert.Equal(t, 1, len(batches))
	assert.Equal(t, []string{"e1", "e2"}, batches[0].ids)
	assert.Equal(t, origin, batches[0].origin)
	assert.Equal(t, 2, batches[0].len)
}

func TestDocSequenceOrder(t *testing.T) {
	doc := NewDoc()

	keys := []string{}
	key := FirstKey()
	for i := 0; i < 32; i += 1 {
		keys = append(keys, key)
		key = RequireKeyBetween(key, "")
	}
	shuffled := append([]string{}, keys...)
	mathrand.Shuffle(len(shuffled), func(i int, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	doc.Transact(nil, func(txn *DocTxn) {
		for i, pos := range shuffled {
			txn.InsertElement(testElement(pos, int64(i)), pos)
		}
	})

	entries := doc.Elements().Entries()
	assert.Equal(t, len(keys), len(entries))
	for i, entry := range entries {
		assert.Equal(t, keys[i], entry.Pos)
	}
}

func TestDocUpdatePreservesPosition(t *testing.T) {
	doc := NewDoc()
	doc.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
		txn.InsertElement(testElement("e2", 1), "a1")
	})

	e1 := testElement("e1", 2)
	e1.Payload.X = 99
	doc.Transact(nil, func(txn *DocTxn) {
		txn.UpdateElement(e1)
	})

	entry, ok := doc.Elements().Get("e1")
	assert.Equal(t, true, ok)
	assert.Equal(t, "a0", entry.Pos)
	assert.Equal(t, int64(2), entry.Element.Version)
	assert.Equal(t, float64(99), entry.Element.Payload.X)
}

func TestDocAssetsAppendOnly(t *testing.T) {
	doc := NewDoc()

	keys := [][]string{}
	doc.Assets().Observe(func(keysChanged []string, txn *Transaction) {
		keys = append(keys, keysChanged)
	})

	img := &Asset{Id: "img1", MimeType: "image/png", Data: []byte{1}}
	doc.Transact(nil, func(txn *DocTxn) {
		assert.Equal(t, true, txn.SetAsset(img))
	})
	// payloads are immutable once set
	doc.Transact(nil, func(txn *DocTxn) {
		assert.Equal(t, false, txn.SetAsset(&Asset{Id: "img1", Data: []byte{9}}))
	})

	assert.Equal(t, 1, len(keys))
	asset, ok := doc.Assets().Get("img1")
	assert.Equal(t, true, ok)
	assert.Equal(t, []byte{1}, asset.Data)
	// the store backfills the schema for hosts that leave it zero
	assert.Equal(t, AssetSchemaVersion, asset.Schema)
}

func TestDocConvergence(t *testing.T) {
	docX := NewDoc()
	docY := NewDoc()

	updatesX := []*DocUpdate{}
	updatesY := []*DocUpdate{}
	docX.OnUpdate(func(update *DocUpdate) {
		updatesX = append(updatesX, update)
	})
	docY.OnUpdate(func(update *DocUpdate) {
		updatesY = append(updatesY, update)
	})

	// concurrent inserts at distinct keys
	docX.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("ex", 1), "a1")
	})
	docY.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("ey", 1), "a2")
	})

	for _, update := range updatesX {
		docY.ApplyUpdate(update, "remote")
	}
	for _, update := range updatesY {
		docX.ApplyUpdate(update, "remote")
	}

	orderOf := func(doc *Doc) []string {
		order := []string{}
		for _, entry := range doc.Elements().Entries() {
			order = append(order, entry.Pos)
		}
		return order
	}
	assert.Equal(t, []string{"a1", "a2"}, orderOf(docX))
	assert.Equal(t, []string{"a1", "a2"}, orderOf(docY))

	// replays are no-ops
	for _, update := range updatesX {
		docY.ApplyUpdate(update, "remote")
	}
	assert.Equal(t, 2, docY.Elements().Len())
}

func TestDocConvergenceSameKey(t *testing.T) {
	docX := NewDoc()
	docY := NewDoc()

	var updateX, updateY *DocUpdate
	docX.OnUpdate(func(update *DocUpdate) { updateX = update })
	docY.OnUpdate(func(update *DocUpdate) { updateY = update })

	docX.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("ex", 1), "a0")
	})
	docY.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("ey", 1), "a0")
	})
	docY.ApplyUpdate(updateX, "remote")
	docX.ApplyUpdate(updateY, "remote")

	idsOf := func(doc *Doc) []string {
		ids := []string{}
		for _, entry := range doc.Elements().Entries() {
			ids = append(ids, entry.Element.Id)
		}
		return ids
	}
	// same key ties break by id, identically everywhere
	assert.Equal(t, []string{"ex", "ey"}, idsOf(docX))
	assert.Equal(t, idsOf(docX), idsOf(docY))
}

func TestDocLink(t *testing.T) {
	docX := NewDoc()
	docY := NewDoc()
	unlink := LinkDocs(docX, docY)

	docX.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
	})
	assert.Equal(t, 1, docY.Elements().Len())

	docY.Transact(nil, func(txn *DocTxn) {
		txn.DeleteElement("e1")
	})
	assert.Equal(t, 0, docX.Elements().Len())

	unlink()
	docX.Transact(nil, func(txn *DocTxn) {
		txn.InsertElement(testElement("e2", 1), "a0")
	})
	assert.Equal(t, 0, docY.Elements().Len())
}

func TestUndoManagerTracksOnlyTrackedOrigins(t *testing.T) {
	doc := NewDoc()
	undoManager := NewUndoManager(doc)
	origin := "local"
	undoManager.AddTrackedOrigin(origin)

	doc.Transact(origin, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
	})
	undoDepth, redoDepth := undoManager.StackSizes()
	assert.Equal(t, 1, undoDepth)
	assert.Equal(t, 0, redoDepth)

	// remote edits never enter the local undo stack
	doc.Transact("peer", func(txn *DocTxn) {
		txn.InsertElement(testElement("e2", 1), "a1")
	})
	undoDepth, _ = undoManager.StackSizes()
	assert.Equal(t, 1, undoDepth)
}

func TestUndoRedo(t *testing.T) {
	doc := NewDoc()
	undoManager := NewUndoManager(doc)
	origin := "local"
	undoManager.AddTrackedOrigin(origin)

	doc.Transact(origin, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
	})
	e1 := testElement("e1", 2)
	e1.Payload.X = 42
	doc.Transact(origin, func(txn *DocTxn) {
		txn.UpdateElement(e1)
	})

	assert.Equal(t, true, undoManager.Undo())
	entry, ok := doc.Elements().Get("e1")
	assert.Equal(t, true, ok)
	assert.Equal(t, int64(1), entry.Element.Version)
	assert.Equal(t, float64(0), entry.Element.Payload.X)

	assert.Equal(t, true, undoManager.Undo())
	assert.Equal(t, 0, doc.Elements().Len())

	assert.Equal(t, true, undoManager.Redo())
	assert.Equal(t, 1, doc.Elements().Len())
	assert.Equal(t, true, undoManager.Redo())
	entry, _ = doc.Elements().Get("e1")
	assert.Equal(t, int64(2), entry.Element.Version)

	// nothing left to redo
	assert.Equal(t, false, undoManager.Redo())
}

func TestUndoClearedByNewWork(t *testing.T) {
	doc := NewDoc()
	undoManager := NewUndoManager(doc)
	origin := "local"
	undoManager.AddTrackedOrigin(origin)

	doc.Transact(origin, func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
	})
	assert.Equal(t, true, undoManager.Undo())
	_, redoDepth := undoManager.StackSizes()
	assert.Equal(t, 1, redoDepth)

	doc.Transact(origin, func(txn *DocTxn) {
		txn.InsertElement(testElement("e2", 1), "a1")
	})
	_, redoDepth = undoManager.StackSizes()
	assert.Equal(t, 0, redoDepth)
}

func TestMalformedSequenceEntry(t *testing.T) {
	defer func() {
		assert.NotEqual(t, nil, recover())
	}()
	snapshotFromSequence([]*SequenceEntry{
		{Element: &Element{Id: ""}, Pos: "a0"},
	})
	t.Fatal("expected a panic")
}
