package boardsync

import (
	"sync"

	"github.com/golang/glog"
)

/*
The presence channel is the ephemeral side channel: per-session state that
never touches the replicated document and vanishes when the owning session
disconnects. PresenceChannel is an awareness-style reference
implementation; PresenceHub links channels in process, and a session's
entries are garbage collected on leave by the hub, not by the binding.
*/

const (
	PresenceFieldPointer            = "pointer"
	PresenceFieldButton             = "button"
	PresenceFieldSelectedElementIds = "selectedElementIds"
	PresenceFieldUsername           = "username"
	PresenceFieldColor              = "color"
	PresenceFieldAvatarUrl          = "avatarUrl"
	PresenceFieldUserState          = "userState"
)

type PresenceState struct {
	Pointer            *Pointer
	Button             string
	SelectedElementIds []string
	Username           string
	Color              string
	AvatarUrl          string
	UserState          string
}

func (self *PresenceState) Clone() *PresenceState {
	out := *self
	if self.Pointer != nil {
		pointer := *self.Pointer
		out.Pointer = &pointer
	}
	if self.SelectedElementIds != nil {
		out.SelectedElementIds = append([]string{}, self.SelectedElementIds...)
	}
	return &out
}

// added, updated, removed are session id lists
type PresenceChangeFunction func(added []string, updated []string, removed []string)

type PresenceChannel struct {
	clientId string

	mutex  sync.Mutex
	states map[string]*PresenceState
	hub    *PresenceHub

	changeCallbacks *CallbackList[PresenceChangeFunction]
}

func NewPresenceChannel() *PresenceChannel {
	channel := &PresenceChannel{
		clientId:        NewId().String(),
		states:          map[string]*PresenceState{},
		changeCallbacks: NewCallbackList[PresenceChangeFunction](),
	}
	channel.states[channel.clientId] = &PresenceState{}
	return channel
}

func (self *PresenceChannel) ClientId() string {
	return self.clientId
}

// GetStates includes the local session. The binding excludes itself when
// it builds the collaborator view.
func (self *PresenceChannel) GetStates() map[string]*PresenceState {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	states := make(map[string]*PresenceState, len(self.states))
	for sessionId, state := range self.states {
		states[sessionId] = state.Clone()
	}
	return states
}

// SetLocalStateField writes one field of the local session's state and
// notifies immediately. Unknown fields and mistyped values are dropped
// with a warning; presence is advisory, never fatal.
func (self *PresenceChannel) SetLocalStateField(field string, value any) {
	self.mutex.Lock()
	state := self.states[self.clientId]
	if state == nil {
		state = &PresenceState{}
		self.states[self.clientId] = state
	}
	switch field {
	case PresenceFieldPointer:
		if pointer, ok := value.(*Pointer); ok {
			state.Pointer = pointer
		} else {
			glog.Warningf("[presch]pointer value %T dropped\n", value)
		}
	case PresenceFieldButton:
		if button, ok := value.(string); ok {
			state.Button = button
		} else {
			glog.Warningf("[presch]button value %T dropped\n", value)
		}
	case PresenceFieldSelectedElementIds:
		if ids, ok := value.([]string); ok {
			state.SelectedElementIds = ids
		} else {
			glog.Warningf("[presch]selectedElementIds value %T dropped\n", value)
		}
	case PresenceFieldUsername:
		if username, ok := value.(string); ok {
			state.Username = username
		}
	case PresenceFieldColor:
		if color, ok := value.(string); ok {
			state.Color = color
		}
	case PresenceFieldAvatarUrl:
		if avatarUrl, ok := value.(string); ok {
			state.AvatarUrl = avatarUrl
		}
	case PresenceFieldUserState:
		if userState, ok := value.(string); ok {
			state.UserState = userState
		}
	default:
		glog.Warningf("[presch]unknown field %s dropped\n", field)
		self.mutex.Unlock()
		return
	}
	snapshot := state.Clone()
	hub := self.hub
	self.mutex.Unlock()

	self.fireChange(nil, []string{self.clientId}, nil)
	if hub != nil {
		hub.broadcast(self, snapshot)
	}
}

// OnChange subscribes to presence changes. Returns an unsubscribe.
func (self *PresenceChannel) OnChange(callback PresenceChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(callback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *PresenceChannel) fireChange(added []string, updated []string, removed []string) {
	for _, callback := range self.changeCallbacks.Get() {
		callback(added, updated, removed)
	}
}

func (self *PresenceChannel) setRemote(sessionId string, state *PresenceState) {
	self.mutex.Lock()
	_, known := self.states[sessionId]
	self.states[sessionId] = state.Clone()
	self.mutex.Unlock()

	if known {
		self.fireChange(nil, []string{sessionId}, nil)
	} else {
		self.fireChange([]string{sessionId}, nil, nil)
	}
}

func (self *PresenceChannel) removeRemote(sessionId string) {
	self.mutex.Lock()
	_, known := self.states[sessionId]
	delete(self.states, sessionId)
	self.mutex.Unlock()

	if known {
		self.fireChange(nil, nil, []string{sessionId})
	}
}

type PresenceHub struct {
	mutex    sync.Mutex
	channels map[string]*PresenceChannel
}

func NewPresenceHub() *PresenceHub {
	return &PresenceHub{
		channels: map[string]*PresenceChannel{},
	}
}

// Join attaches a channel to the hub, exchanging current states both ways.
// The returned leave func removes the session everywhere (presence gc).
func (self *PresenceHub) Join(channel *PresenceChannel) func() {
	self.mutex.Lock()
	peers := make([]*PresenceChannel, 0, len(self.channels))
	for _, peer := range self.channels {
		peers = append(peers, peer)
	}
	self.channels[channel.ClientId()] = channel
	self.mutex.Unlock()

	channel.mutex.Lock()
	channel.hub = self
	local := channel.states[channel.clientId].Clone()
	channel.mutex.Unlock()

	for _, peer := range peers {
		peer.setRemote(channel.ClientId(), local)

		peer.mutex.Lock()
		peerState := peer.states[peer.clientId].Clone()
		peer.mutex.Unlock()
		channel.setRemote(peer.ClientId(), peerState)
	}

	return func() {
		self.leave(channel)
	}
}

func (self *PresenceHub) leave(channel *PresenceChannel) {
	self.mutex.Lock()
	delete(self.channels, channel.ClientId())
	peers := make([]*PresenceChannel, 0, len(self.channels))
	for _, peer := range self.channels {
		peers = append(peers, peer)
	}
	self.mutex.Unlock()

	channel.mutex.Lock()
	channel.hub = nil
	channel.mutex.Unlock()

	for _, peer := range peers {
		peer.removeRemote(channel.ClientId())
	}
}

func (self *PresenceHub) broadcast(from *PresenceChannel, state *PresenceState) {
	self.mutex.Lock()
	peers := make([]*PresenceChannel, 0, len(self.channels))
	for sessionId, peer := range self.channels {
		if sessionId != from.ClientId() {
			peers = append(peers, peer)
		}
	}
	self.mutex.Unlock()

	for _, peer := range peers {
		peer.setRemote(from.ClientId(), state)
	}
}
