package boardsync

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func newUndoTestBinding(t *testing.T) (*Doc, *Memboard, *MemUiRoot, *UndoManager, *Binding) {
	doc := NewDoc()
	board := NewMemboard()
	root := NewMemUiRoot()
	undoManager := NewUndoManager(doc)
	settings := DefaultBindingSettings()
	settings.ButtonRescanTimeout = 5 * time.Millisecond
	binding := NewBinding(doc.Elements(), doc.Assets(), board, nil, &BindingOptions{
		UiRoot:      root,
		UndoManager: undoManager,
	}, settings)
	t.Cleanup(binding.Destroy)
	return doc, board, root, undoManager, binding
}

func TestUndoChord(t *testing.T) {
	doc, board, root, _, _ := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})
	assert.Equal(t, 1, doc.Elements().Len())

	// modifier+z undoes exactly once and does not propagate further
	handled := root.DispatchKey(&KeyEvent{Key: "z", Modifier: true})
	assert.Equal(t, true, handled)
	assert.Equal(t, 0, root.DefaultHandled)
	assert.Equal(t, 0, doc.Elements().Len())
	assert.Equal(t, 0, len(board.SceneElements()))

	// modifier+shift+z redoes
	handled = root.DispatchKey(&KeyEvent{Key: "z", Modifier: true, Shift: true})
	assert.Equal(t, true, handled)
	assert.Equal(t, 1, doc.Elements().Len())
	assert.Equal(t, 1, len(board.SceneElements()))
}

func TestUndoChordIgnoresOtherKeys(t *testing.T) {
	_, board, root, _, _ := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})

	// plain z and unmodified chords fall through to default handling
	assert.Equal(t, false, root.DispatchKey(&KeyEvent{Key: "z"}))
	assert.Equal(t, false, root.DispatchKey(&KeyEvent{Key: "y", Modifier: true}))
	assert.Equal(t, 2, root.DefaultHandled)
	assert.Equal(t, 1, len(board.SceneElements()))
}

func TestUndoExcludesRemoteEdits(t *testing.T) {
	doc, board, root, undoManager, _ := newUndoTestBinding(t)

	doc.Transact("peer", func(txn *DocTxn) {
		txn.InsertElement(testElement("e1", 1), "a0")
	})
	assert.Equal(t, 1, len(board.SceneElements()))

	undoDepth, _ := undoManager.StackSizes()
	assert.Equal(t, 0, undoDepth)

	// undo with nothing local on the stack changes nothing
	root.DispatchKey(&KeyEvent{Key: "z", Modifier: true})
	assert.Equal(t, 1, doc.Elements().Len())
}

func TestUndoButtons(t *testing.T) {
	doc, board, root, _, _ := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})

	// bound by the initial rescan at bind time
	root.undoButton.Click()
	assert.Equal(t, 0, doc.Elements().Len())
	root.redoButton.Click()
	assert.Equal(t, 1, doc.Elements().Len())
}

func TestUndoButtonRebind(t *testing.T) {
	doc, board, root, _, _ := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})

	// a re-layout destroys and recreates the buttons
	undoButton, _ := root.ReplaceButtons()
	root.Resize()
	// debounced rescan
	time.Sleep(50 * time.Millisecond)

	undoButton.Click()
	assert.Equal(t, 0, doc.Elements().Len())
}

func TestUndoWithoutRoot(t *testing.T) {
	doc := NewDoc()
	board := NewMemboard()
	undoManager := NewUndoManager(doc)

	// degraded, not fatal: construction succeeds, the feature is off
	binding := NewBindingWithDefaults(doc.Elements(), doc.Assets(), board, nil, &BindingOptions{
		UndoManager: undoManager,
	})
	defer binding.Destroy()

	board.SetElements([]*Element{testElement("e1", 1)})
	undoDepth, _ := undoManager.StackSizes()
	assert.Equal(t, 0, undoDepth)
}

func TestUndoTeardown(t *testing.T) {
	doc, board, root, undoManager, binding := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})
	binding.Destroy()

	// the chord no longer intercepts after destroy
	handled := root.DispatchKey(&KeyEvent{Key: "z", Modifier: true})
	assert.Equal(t, false, handled)
	assert.Equal(t, 1, doc.Elements().Len())

	// and new doc activity is no longer tracked
	doc.Transact(binding, func(txn *DocTxn) {
		txn.InsertElement(testElement("e2", 1), "a1")
	})
	undoDepth, _ := undoManager.StackSizes()
	assert.Equal(t, 1, undoDepth)
}

func TestUndoButtonAfterTeardown(t *testing.T) {
	doc, board, root, undoManager, binding := newUndoTestBinding(t)

	board.SetElements([]*Element{testElement("e1", 1)})
	undoDepth, _ := undoManager.StackSizes()
	assert.Equal(t, 1, undoDepth)

	binding.Destroy()

	// the host-side controls outlive the adapter; clicking them no longer
	// drives the undo stack or the shared document
	root.undoButton.Click()
	assert.Equal(t, 1, doc.Elements().Len())
	undoDepth, _ = undoManager.StackSizes()
	assert.Equal(t, 1, undoDepth)

	root.redoButton.Click()
	assert.Equal(t, 1, doc.Elements().Len())
}
