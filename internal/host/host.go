// Package host defines the content-host boundary: the runtime that actually
// loads and renders a content URL on behalf of a grid region. The compositor
// core only ever talks to the Host interface; concrete implementations live
// alongside it (a headless-Chrome host backed by go-rod, and a null host for
// browserless runs).
package host

import "context"

// EventKind classifies events a host sends back to its owner.
type EventKind string

const (
	// EventInit signals the host finished initializing the loaded document.
	EventInit EventKind = "init"
	// EventLoaded signals media playback (or page load for non-media
	// content) actually started.
	EventLoaded EventKind = "loaded"
	// EventFailed signals the load handshake failed after navigation began.
	EventFailed EventKind = "failed"
	// EventInfo carries document metadata such as the page title.
	EventInfo EventKind = "info"
)

// Event is an asynchronous notification from a host to its owning region.
// Epoch echoes the epoch passed to Load so the owner can discard events
// belonging to a navigation it has since abandoned.
type Event struct {
	HostID string
	Epoch  uint64
	Kind   EventKind
	Err    error
	Title  string
}

// Rect is a pixel rectangle in display coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Host is one content surface: it loads a URL and exposes the handful of
// controls a region needs. Implementations must tolerate repeated Load calls;
// each call supersedes the previous document.
//
// Load returns once navigation has been accepted; the init/loaded handshake
// arrives later on the event sink the host was created with, stamped with the
// given epoch. Control methods (SetBounds, SetMuted, ...) apply to whatever
// document is current and must be safe to call in any load state.
type Host interface {
	ID() string
	Load(ctx context.Context, url string, epoch uint64) error
	SetBounds(r Rect) error
	SetVisible(visible bool) error
	SetMuted(muted bool) error
	SetBlurred(blurred bool) error
	SetRotation(degrees int) error
	OpenDevtools(target string) error
	Close() error
}

// Factory creates hosts bound to an event sink. The id ties events back to
// the owning region; owners use one sink for all their hosts.
type Factory interface {
	New(id string, events chan<- Event) (Host, error)
}
