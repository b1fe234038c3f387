package boardsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
)

/*
Binding keeps a live drawing surface synchronized with a replicated
document shared by multiple peers.

Local flow: the surface notifies on every interaction; the detector's
(id, version) fast path throws away the no-ops, the delta computer turns
the rest into a minimal op set, and the applier commits them in one
transaction tagged with this binding. The binding's own observers see the
tag and return immediately, which breaks the echo loop.

Remote flow: any other origin's transaction reprojects the sequence into
the surface, in position-key order. Presence flows through its own channel
and never touches the document.

All state is binding-scoped. Multiple bindings, including several on one
doc, do not interfere.
*/

// returning ok false skips the sync step entirely, the host's explicit
// "do nothing". An empty slice with ok true proceeds and applies nothing.
type AssetTransformFunction func(assets []*Asset) ([]*Asset, bool)

type BindingOptions struct {
	UiRoot      UiRoot
	UndoManager *UndoManager

	TransformLocalAssets  AssetTransformFunction
	TransformRemoteAssets AssetTransformFunction
}

func DefaultBindingSettings() *BindingSettings {
	return &BindingSettings{
		ButtonRescanTimeout: 150 * time.Millisecond,
	}
}

type BindingSettings struct {
	// debounce for the undo/redo button rescan after a size change
	ButtonRescanTimeout time.Duration
}

type Binding struct {
	doc      *Doc
	elements *SharedSequence
	assets   *SharedMap
	surface  Surface
	presence *PresenceChannel
	settings *BindingSettings

	transformLocalAssets  AssetTransformFunction
	transformRemoteAssets AssetTransformFunction

	mutex         sync.Mutex
	destroyed     bool
	snapshot      []*SnapshotEntry
	localElements map[string]*Element
	knownAssetIds map[string]bool
	collaborators map[string]*Collaborator

	undo   *undoAdapter
	unsubs []func()
}

func NewBindingWithDefaults(
	elements *SharedSequence,
	assets *SharedMap,
	surface Surface,
	presence *PresenceChannel,
	options *BindingOptions,
) *Binding {
	return NewBinding(elements, assets, surface, presence, options, DefaultBindingSettings())
}

func NewBinding(
	elements *SharedSequence,
	assets *SharedMap,
	surface Surface,
	presence *PresenceChannel,
	options *BindingOptions,
	settings *BindingSettings,
) *Binding {
	if options == nil {
		options = &BindingOptions{}
	}
	if elements.doc != assets.doc {
		panic(fmt.Errorf("sequence and map belong to different docs"))
	}

	binding := &Binding{
		doc:                   elements.doc,
		elements:              elements,
		assets:                assets,
		surface:               surface,
		presence:              presence,
		settings:              settings,
		transformLocalAssets:  options.TransformLocalAssets,
		transformRemoteAssets: options.TransformRemoteAssets,
		snapshot:              []*SnapshotEntry{},
		localElements:         map[string]*Element{},
		knownAssetIds:         map[string]bool{},
		collaborators:         map[string]*Collaborator{},
	}

	if options.UndoManager != nil {
		if options.UiRoot == nil {
			// degraded, not fatal
			glog.Warningf("[b]undo manager supplied without a ui root, undo/redo unavailable\n")
		} else {
			binding.undo = newUndoAdapter(options.UndoManager, options.UiRoot, binding, settings)
		}
	}

	// project the document into the surface before subscribing
	binding.pullElements(nil)
	binding.pullAssets(assets.Keys())

	binding.unsubs = append(binding.unsubs, surface.OnChange(binding.sceneChanged))
	binding.unsubs = append(binding.unsubs, elements.Observe(binding.observeElements))
	binding.unsubs = append(binding.unsubs, assets.Observe(binding.observeAssets))
	if presence != nil {
		binding.unsubs = append(binding.unsubs, presence.OnChange(binding.presenceChanged))
		binding.presenceChanged(maps.Keys(presence.GetStates()), nil, nil)
	}

	return binding
}

// SceneChangeFunction, the local mutation detector's entry point
func (self *Binding) sceneChanged(elements []*Element, state *SurfaceState, assets []*Asset) {
	if self.isDestroyed() {
		return
	}
	self.localChanges(elements)
	self.localAssetChanges(assets)
}

func (self *Binding) localChanges(elements []*Element) {
	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	if snapshotMatches(self.snapshot, elements) {
		// the surface notifies far more often than anything changes
		self.mutex.Unlock()
		return
	}
	delta, nextSnapshot := computeElementDelta(self.snapshot, elements)
	// the live list's order is the new truth, ops or not
	self.snapshot = nextSnapshot
	localElements := make(map[string]*Element, len(elements))
	for _, element := range elements {
		localElements[element.Id] = element
	}
	self.localElements = localElements
	self.mutex.Unlock()

	if !delta.Empty() {
		glog.V(2).Infof("[b]push +%d ~%d -%d\n", len(delta.Inserts), len(delta.Updates), len(delta.Deletes))
		self.applyElementDelta(delta)
	}
}

func (self *Binding) localAssetChanges(assets []*Asset) {
	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	adds := computeAssetAdds(self.knownAssetIds, assets)
	self.mutex.Unlock()
	if len(adds) == 0 {
		return
	}

	offered := adds
	if hook := self.transformLocalAssets; hook != nil {
		var transformed []*Asset
		var ok bool
		HandleError(func() {
			transformed, ok = hook(adds)
		})
		if !ok {
			// host opted out. The ids stay unknown so a later
			// notification re-offers them.
			glog.V(2).Infof("[b]asset batch dropped by hook\n")
			return
		}
		adds = transformed
	}

	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	for _, asset := range offered {
		self.knownAssetIds[asset.Id] = true
	}
	for _, asset := range adds {
		self.knownAssetIds[asset.Id] = true
	}
	self.mutex.Unlock()

	if len(adds) == 0 {
		return
	}
	self.applyAssetAdds(adds)
}

func (self *Binding) isDestroyed() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.destroyed
}

// Destroy unsubscribes every listener and observer. Idempotent, terminal.
// Already-committed transactions stay committed.
func (self *Binding) Destroy() {
	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	self.destroyed = true
	unsubs := self.unsubs
	self.unsubs = nil
	self.snapshot = []*SnapshotEntry{}
	self.localElements = map[string]*Element{}
	self.knownAssetIds = map[string]bool{}
	self.collaborators = map[string]*Collaborator{}
	self.mutex.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if self.undo != nil {
		self.undo.teardown()
	}
}
