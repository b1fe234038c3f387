package boardsync

/*
Contracts consumed from the drawing-surface collaborator. The binding never
reaches into surface internals: it reads the element list, pushes ordered
scene updates and collaborator sets, and registers assets. Everything else
(rendering, input, who bumps element versions) is the surface's business.
*/

type SurfaceState struct {
	ScrollX float64
	ScrollY float64
	Zoom    float64
}

type SceneChangeFunction func(elements []*Element, state *SurfaceState, assets []*Asset)

// nil fields leave the corresponding surface state untouched
type SceneUpdate struct {
	Elements      []*Element
	Collaborators map[string]*Collaborator
}

type Surface interface {
	SceneElements() []*Element
	UpdateScene(update *SceneUpdate)
	AddAssets(assets []*Asset)
	// OnChange fires on essentially every interaction, including no-ops.
	// Returns an unsubscribe.
	OnChange(callback SceneChangeFunction) func()
}

type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// the UI-facing projection of one remote session
type Collaborator struct {
	Pointer            *Pointer
	Button             string
	SelectedElementIds []string
	Username           string
	Color              string
	AvatarUrl          string
	UserState          string
}

type KeyEvent struct {
	Key string
	// ctrl or cmd
	Modifier bool
	Shift    bool
}

// a true return marks the event handled and stops further propagation
type KeyFunction func(event *KeyEvent) bool

// Button is a host-registered handle for an undo or redo control. The host
// keeps handles current; a handle reports detached once the surface has
// re-rendered it away.
type Button interface {
	SetOnClick(onClick func())
	Attached() bool
}

// UiRoot is the host's chrome around the surface: capture-phase key
// delivery, a size-change signal, and the registered undo/redo buttons.
type UiRoot interface {
	// capture phase: callbacks run before the surface's own key handling
	AddKeyListener(callback KeyFunction) func()
	OnResize(callback func()) func()
	UndoButton() Button
	RedoButton() Button
}
