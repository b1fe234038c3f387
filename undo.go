package boardsync

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

/*
The undo adapter binds a doc-scoped undo manager to the host's keyboard and
buttons. The manager tracks only the binding's own origin, so remote edits
never enter the local undo stack.

Keyboard: the conventional chords are intercepted at the capture phase on
the UI root, so the surface's default handling does not also fire.

Buttons: the host's undo/redo controls can be destroyed and recreated by a
responsive re-layout, so a size-change signal triggers a debounced rescan
that rebinds whenever a previously-bound button is no longer attached. An
initial rescan runs once at bind time.
*/

type undoAdapter struct {
	undoManager *UndoManager
	root        UiRoot
	origin      any
	settings    *BindingSettings

	mutex       sync.Mutex
	undoButton  Button
	redoButton  Button
	rescanTimer *time.Timer
	tornDown    bool

	unsubs []func()
}

func newUndoAdapter(undoManager *UndoManager, root UiRoot, origin any, settings *BindingSettings) *undoAdapter {
	adapter := &undoAdapter{
		undoManager: undoManager,
		root:        root,
		origin:      origin,
		settings:    settings,
	}
	undoManager.AddTrackedOrigin(origin)
	adapter.unsubs = append(adapter.unsubs, root.AddKeyListener(adapter.key))
	adapter.unsubs = append(adapter.unsubs, root.OnResize(adapter.resized))
	adapter.rescan()
	return adapter
}

// KeyFunction, capture phase
func (self *undoAdapter) key(event *KeyEvent) bool {
	if !event.Modifier {
		return false
	}
	if event.Key != "z" && event.Key != "Z" {
		return false
	}
	if self.isTornDown() {
		return false
	}
	if event.Shift {
		glog.V(2).Infof("[undo]redo chord\n")
		self.undoManager.Redo()
	} else {
		glog.V(2).Infof("[undo]undo chord\n")
		self.undoManager.Undo()
	}
	return true
}

func (self *undoAdapter) resized() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.tornDown {
		return
	}
	if self.rescanTimer != nil {
		self.rescanTimer.Stop()
	}
	self.rescanTimer = time.AfterFunc(self.settings.ButtonRescanTimeout, self.rescan)
}

// rescan re-resolves and rebinds any button that is unbound or detached
func (self *undoAdapter) rescan() {
	self.mutex.Lock()
	if self.tornDown {
		self.mutex.Unlock()
		return
	}
	undoButton := self.undoButton
	redoButton := self.redoButton
	self.mutex.Unlock()

	if undoButton == nil || !undoButton.Attached() {
		if button := self.root.UndoButton(); button != nil {
			button.SetOnClick(func() {
				if self.isTornDown() {
					return
				}
				self.undoManager.Undo()
			})
			self.mutex.Lock()
			self.undoButton = button
			self.mutex.Unlock()
			glog.V(2).Infof("[undo]bound undo button\n")
		}
	}
	if redoButton == nil || !redoButton.Attached() {
		if button := self.root.RedoButton(); button != nil {
			button.SetOnClick(func() {
				if self.isTornDown() {
					return
				}
				self.undoManager.Redo()
			})
			self.mutex.Lock()
			self.redoButton = button
			self.mutex.Unlock()
			glog.V(2).Infof("[undo]bound redo button\n")
		}
	}
}

func (self *undoAdapter) isTornDown() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.tornDown
}

// terminal
func (self *undoAdapter) teardown() {
	self.mutex.Lock()
	if self.tornDown {
		self.mutex.Unlock()
		return
	}
	self.tornDown = true
	timer := self.rescanTimer
	self.rescanTimer = nil
	unsubs := self.unsubs
	self.unsubs = nil
	undoButton := self.undoButton
	redoButton := self.redoButton
	self.undoButton = nil
	self.redoButton = nil
	self.mutex.Unlock()

	if timer != nil {
		timer.Stop()
	}
	for _, unsub := range unsubs {
		unsub()
	}
	// buttons outlive the adapter on the host side, so detach the handlers
	if undoButton != nil {
		undoButton.SetOnClick(nil)
	}
	if redoButton != nil {
		redoButton.SetOnClick(nil)
	}
	self.undoManager.RemoveTrackedOrigin(self.origin)
}
