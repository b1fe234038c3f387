package boardsync

import (
	"github.com/golang/glog"
)

/*
The presence synchronizer mirrors ephemeral peer state into the surface's
collaborator view. The view is binding-scoped state: patched per change
notification, published to the surface as a fresh map each time, and always
excluding the local session's own id. A session whose state the protocol
cannot produce yet is skipped, not an error; presence may lag the document.
*/

type PointerUpdate struct {
	Pointer *Pointer
	Button  string
}

// OnPointerUpdate writes the local pointer and button into the presence
// protocol immediately, with no coalescing beyond what the protocol itself
// batches.
func (self *Binding) OnPointerUpdate(update *PointerUpdate) {
	if self.presence == nil || self.isDestroyed() {
		return
	}
	self.presence.SetLocalStateField(PresenceFieldPointer, update.Pointer)
	self.presence.SetLocalStateField(PresenceFieldButton, update.Button)
}

// PresenceChangeFunction
func (self *Binding) presenceChanged(added []string, updated []string, removed []string) {
	if self.presence == nil {
		return
	}
	states := self.presence.GetStates()

	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	for _, sessionId := range added {
		self.upsertCollaborator(sessionId, states)
	}
	for _, sessionId := range updated {
		self.upsertCollaborator(sessionId, states)
	}
	for _, sessionId := range removed {
		delete(self.collaborators, sessionId)
	}
	// never publish the local session to itself
	delete(self.collaborators, self.presence.ClientId())

	view := make(map[string]*Collaborator, len(self.collaborators))
	for sessionId, collaborator := range self.collaborators {
		view[sessionId] = collaborator
	}
	self.mutex.Unlock()

	glog.V(2).Infof("[pres]+%d ~%d -%d view = %d\n", len(added), len(updated), len(removed), len(view))
	self.surface.UpdateScene(&SceneUpdate{Collaborators: view})
}

// must be called with `mutex`
func (self *Binding) upsertCollaborator(sessionId string, states map[string]*PresenceState) {
	state, ok := states[sessionId]
	if !ok {
		// presence may lag document state
		return
	}
	collaborator := &Collaborator{
		Button:    state.Button,
		Username:  state.Username,
		Color:     state.Color,
		AvatarUrl: state.AvatarUrl,
		UserState: state.UserState,
	}
	if state.Pointer != nil {
		pointer := *state.Pointer
		collaborator.Pointer = &pointer
	}
	if state.SelectedElementIds != nil {
		collaborator.SelectedElementIds = append([]string{}, state.SelectedElementIds...)
	}
	self.collaborators[sessionId] = collaborator
}
