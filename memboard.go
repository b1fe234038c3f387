package boardsync

import (
	"sync"
)

// Memboard is an in-memory Surface. It backs the test suite and doubles as
// a reference for what the binding expects from a real surface: a change
// notification on every mutation, including the binding's own pushes.
type Memboard struct {
	mutex           sync.Mutex
	elements        []*Element
	assets          map[string]*Asset
	assetOrder      []string
	collaborators   map[string]*Collaborator
	state           SurfaceState
	changeCallbacks *CallbackList[SceneChangeFunction]
}

func NewMemboard() *Memboard {
	return &Memboard{
		elements:        []*Element{},
		assets:          map[string]*Asset{},
		assetOrder:      []string{},
		collaborators:   map[string]*Collaborator{},
		state:           SurfaceState{Zoom: 1},
		changeCallbacks: NewCallbackList[SceneChangeFunction](),
	}
}

// Surface

func (self *Memboard) SceneElements() []*Element {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Element{}, self.elements...)
}

func (self *Memboard) UpdateScene(update *SceneUpdate) {
	self.mutex.Lock()
	if update.Elements != nil {
		self.elements = append([]*Element{}, update.Elements...)
	}
	if update.Collaborators != nil {
		collaborators := make(map[string]*Collaborator, len(update.Collaborators))
		for sessionId, collaborator := range update.Collaborators {
			collaborators[sessionId] = collaborator
		}
		self.collaborators = collaborators
	}
	self.mutex.Unlock()
	self.fireChange()
}

func (self *Memboard) AddAssets(assets []*Asset) {
	self.mutex.Lock()
	for _, asset := range assets {
		if _, ok := self.assets[asset.Id]; !ok {
			self.assetOrder = append(self.assetOrder, asset.Id)
		}
		self.assets[asset.Id] = asset
	}
	self.mutex.Unlock()
	self.fireChange()
}

func (self *Memboard) OnChange(callback SceneChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(callback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

// host side

// SetElements simulates a user edit. The caller manages versions the way a
// real surface would: bump on every semantic mutation, including reorder.
func (self *Memboard) SetElements(elements []*Element) {
	self.mutex.Lock()
	self.elements = append([]*Element{}, elements...)
	self.mutex.Unlock()
	self.fireChange()
}

// RemoveAsset drops a local asset reference. Only the surface forgets;
// the shared map never does.
func (self *Memboard) RemoveAsset(id string) {
	self.mutex.Lock()
	if _, ok := self.assets[id]; ok {
		delete(self.assets, id)
		for i, assetId := range self.assetOrder {
			if assetId == id {
				self.assetOrder = append(self.assetOrder[:i], self.assetOrder[i+1:]...)
				break
			}
		}
	}
	self.mutex.Unlock()
	self.fireChange()
}

func (self *Memboard) Asset(id string) (*Asset, bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	asset, ok := self.assets[id]
	return asset, ok
}

func (self *Memboard) Assets() []*Asset {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.assetsLocked()
}

func (self *Memboard) Collaborators() map[string]*Collaborator {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	collaborators := make(map[string]*Collaborator, len(self.collaborators))
	for sessionId, collaborator := range self.collaborators {
		collaborators[sessionId] = collaborator
	}
	return collaborators
}

// Touch fires a change notification without mutating anything, the way a
// real surface notifies on selection moves and other no-ops.
func (self *Memboard) Touch() {
	self.fireChange()
}

func (self *Memboard) fireChange() {
	self.mutex.Lock()
	elements := append([]*Element{}, self.elements...)
	state := self.state
	assets := self.assetsLocked()
	self.mutex.Unlock()

	for _, callback := range self.changeCallbacks.Get() {
		callback(elements, &state, assets)
	}
}

// must be called with `mutex`
func (self *Memboard) assetsLocked() []*Asset {
	assets := make([]*Asset, 0, len(self.assetOrder))
	for _, id := range self.assetOrder {
		assets = append(assets, self.assets[id])
	}
	return assets
}

// MemUiRoot is the in-memory UiRoot counterpart to Memboard.
type MemUiRoot struct {
	mutex           sync.Mutex
	keyCallbacks    *CallbackList[KeyFunction]
	resizeCallbacks *CallbackList[func()]
	undoButton      *MemButton
	redoButton      *MemButton

	// key events nobody intercepted, i.e. the surface's default handling
	DefaultHandled int
}

func NewMemUiRoot() *MemUiRoot {
	return &MemUiRoot{
		keyCallbacks:    NewCallbackList[KeyFunction](),
		resizeCallbacks: NewCallbackList[func()](),
		undoButton:      &MemButton{attached: true},
		redoButton:      &MemButton{attached: true},
	}
}

func (self *MemUiRoot) AddKeyListener(callback KeyFunction) func() {
	callbackId := self.keyCallbacks.Add(callback)
	return func() {
		self.keyCallbacks.Remove(callbackId)
	}
}

func (self *MemUiRoot) OnResize(callback func()) func() {
	callbackId := self.resizeCallbacks.Add(callback)
	return func() {
		self.resizeCallbacks.Remove(callbackId)
	}
}

func (self *MemUiRoot) UndoButton() Button {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.undoButton == nil {
		return nil
	}
	return self.undoButton
}

func (self *MemUiRoot) RedoButton() Button {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.redoButton == nil {
		return nil
	}
	return self.redoButton
}

// DispatchKey delivers a key event capture-phase first. Returns whether a
// capture listener handled it; otherwise default handling is counted.
func (self *MemUiRoot) DispatchKey(event *KeyEvent) bool {
	for _, callback := range self.keyCallbacks.Get() {
		if callback(event) {
			return true
		}
	}
	self.mutex.Lock()
	self.DefaultHandled += 1
	self.mutex.Unlock()
	return false
}

func (self *MemUiRoot) Resize() {
	for _, callback := range self.resizeCallbacks.Get() {
		callback()
	}
}

// ReplaceButtons simulates a responsive re-layout destroying and recreating
// the undo/redo controls.
func (self *MemUiRoot) ReplaceButtons() (*MemButton, *MemButton) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.undoButton != nil {
		self.undoButton.detach()
	}
	if self.redoButton != nil {
		self.redoButton.detach()
	}
	self.undoButton = &MemButton{attached: true}
	self.redoButton = &MemButton{attached: true}
	return self.undoButton, self.redoButton
}

type MemButton struct {
	mutex    sync.Mutex
	attached bool
	onClick  func()
	Clicks   int
}

func (self *MemButton) SetOnClick(onClick func()) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.onClick = onClick
}

func (self *MemButton) Attached() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.attached
}

func (self *MemButton) Click() {
	self.mutex.Lock()
	onClick := self.onClick
	self.Clicks += 1
	self.mutex.Unlock()
	if onClick != nil {
		onClick()
	}
}

func (self *MemButton) detach() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.attached = false
	self.onClick = nil
}
