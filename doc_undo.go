package boardsync

import (
	"sync"

	"github.com/golang/glog"
)

/*
UndoManager records inverse operations for transactions whose origin is
tracked, so remote edits never enter the local undo stack. Undo and redo
apply in a transaction whose origin is the manager itself: the binding does
not track that origin, so undo results reach the surface through the remote
element listener like any other non-self change.
*/

type UndoManager struct {
	doc *Doc

	mutex          sync.Mutex
	trackedOrigins map[any]bool
	undoStack      []*undoItem
	redoStack      []*undoItem
	undoing        bool
	redoing        bool

	unsub func()
}

type undoItem struct {
	inverseOps []*DocOp
}

func NewUndoManager(doc *Doc) *UndoManager {
	undoManager := &UndoManager{
		doc:            doc,
		trackedOrigins: map[any]bool{},
		undoStack:      []*undoItem{},
		redoStack:      []*undoItem{},
	}
	undoManager.unsub = doc.OnUpdate(undoManager.update)
	return undoManager
}

func (self *UndoManager) AddTrackedOrigin(origin any) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.trackedOrigins[origin] = true
}

func (self *UndoManager) RemoveTrackedOrigin(origin any) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.trackedOrigins, origin)
}

func (self *UndoManager) StackSizes() (int, int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.undoStack), len(self.redoStack)
}

// UpdateFunction
func (self *UndoManager) update(update *DocUpdate) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	if self.undoing {
		self.redoStack = append(self.redoStack, &undoItem{inverseOps: inverseOps(update.Ops)})
		return
	}
	if self.redoing {
		self.undoStack = append(self.undoStack, &undoItem{inverseOps: inverseOps(update.Ops)})
		return
	}
	if !self.trackedOrigins[update.Origin] {
		return
	}
	item := &undoItem{inverseOps: inverseOps(update.Ops)}
	if len(item.inverseOps) == 0 {
		return
	}
	self.undoStack = append(self.undoStack, item)
	// new tracked work invalidates the redo history
	self.redoStack = self.redoStack[:0]
	glog.V(2).Infof("[undo]track +1 = %d\n", len(self.undoStack))
}

func (self *UndoManager) Undo() bool {
	self.mutex.Lock()
	if len(self.undoStack) == 0 {
		self.mutex.Unlock()
		return false
	}
	item := self.undoStack[len(self.undoStack)-1]
	self.undoStack = self.undoStack[:len(self.undoStack)-1]
	self.undoing = true
	self.mutex.Unlock()

	self.apply(item)

	self.mutex.Lock()
	self.undoing = false
	self.mutex.Unlock()
	return true
}

func (self *UndoManager) Redo() bool {
	self.mutex.Lock()
	if len(self.redoStack) == 0 {
		self.mutex.Unlock()
		return false
	}
	item := self.redoStack[len(self.redoStack)-1]
	self.redoStack = self.redoStack[:len(self.redoStack)-1]
	self.redoing = true
	self.mutex.Unlock()

	self.apply(item)

	self.mutex.Lock()
	self.redoing = false
	self.mutex.Unlock()
	return true
}

func (self *UndoManager) apply(item *undoItem) {
	self.doc.Transact(self, func(txn *DocTxn) {
		for _, op := range item.inverseOps {
			switch op.Kind {
			case DocOpInsert:
				txn.InsertElement(op.Element, op.Pos)
			case DocOpUpdate:
				txn.UpdateElement(op.Element)
			case DocOpDelete:
				txn.DeleteElement(op.Id)
			}
		}
	})
}

func (self *UndoManager) Destroy() {
	if self.unsub != nil {
		self.unsub()
		self.unsub = nil
	}
	self.mutex.Lock()
	self.undoStack = self.undoStack[:0]
	self.redoStack = self.redoStack[:0]
	self.mutex.Unlock()
}

// inverseOps returns the ops that roll a transaction back, in reverse
// apply order. Asset adds have no inverse: the assets map is append-only.
func inverseOps(ops []*DocOp) []*DocOp {
	inverse := []*DocOp{}
	for i := len(ops) - 1; 0 <= i; i -= 1 {
		op := ops[i]
		switch op.Kind {
		case DocOpInsert:
			inverse = append(inverse, &DocOp{
				Kind: DocOpDelete,
				Id:   op.Id,
			})
		case DocOpUpdate:
			inverse = append(inverse, &DocOp{
				Kind:    DocOpUpdate,
				Id:      op.Id,
				Element: op.PrevElement,
			})
		case DocOpDelete:
			inverse = append(inverse, &DocOp{
				Kind:    DocOpInsert,
				Id:      op.Id,
				Element: op.PrevElement,
				Pos:     op.PrevPos,
			})
		}
	}
	return inverse
}
