package host

import (
	"context"
	"log/slog"
	"sync"
)

// NullFactory creates hosts that load nothing: Load succeeds immediately and
// the init/loaded handshake is synthesized. Useful for running the full
// engine without a browser (demos, CI, dry runs).
type NullFactory struct {
	Logger *slog.Logger
}

// New implements Factory.
func (f *NullFactory) New(id string, events chan<- Event) (Host, error) {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	return &nullHost{id: id, events: events, log: log}, nil
}

type nullHost struct {
	id     string
	events chan<- Event
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (h *nullHost) ID() string { return h.id }

// Load synthesizes the whole handshake: init, a title derived from the URL,
// and loaded. Sends are blocking; Load is always called off the owner's
// event loop, so the owner is free to consume them.
func (h *nullHost) Load(ctx context.Context, url string, epoch uint64) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return context.Canceled
	}
	h.log.Debug("null host load", slog.String("host_id", h.id), slog.String("url", url))
	for _, ev := range []Event{
		{HostID: h.id, Epoch: epoch, Kind: EventInit},
		{HostID: h.id, Epoch: epoch, Kind: EventInfo, Title: url},
		{HostID: h.id, Epoch: epoch, Kind: EventLoaded},
	} {
		select {
		case h.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *nullHost) SetBounds(Rect) error      { return nil }
func (h *nullHost) SetVisible(bool) error     { return nil }
func (h *nullHost) SetMuted(bool) error       { return nil }
func (h *nullHost) SetBlurred(bool) error     { return nil }
func (h *nullHost) SetRotation(int) error     { return nil }
func (h *nullHost) OpenDevtools(string) error { return nil }

func (h *nullHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
