package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// JS snippets applied to the current document. They are idempotent so the
// owner can re-apply them after every navigation.
const (
	jsSetMuted = `(muted) => {
		document.querySelectorAll('video, audio').forEach((el) => { el.muted = muted; });
	}`
	jsSetBlurred = `(blurred) => {
		document.documentElement.style.filter = blurred ? 'blur(24px)' : '';
	}`
	jsSetRotation = `(deg) => {
		document.documentElement.style.transform = deg ? 'rotate(' + deg + 'deg)' : '';
	}`
	// Resolves when a media element starts producing frames; resolves
	// immediately for documents without media.
	jsWaitMediaPlaying = `async () => {
		const els = Array.from(document.querySelectorAll('video, audio'));
		if (els.length === 0) return true;
		if (els.some((el) => el.readyState >= 3 && !el.paused)) return true;
		await new Promise((resolve) => {
			els.forEach((el) => el.addEventListener('playing', resolve, { once: true }));
		});
		return true;
	}`
)

// RodFactory creates hosts backed by pages of a shared headless-Chrome
// browser, driven over the devtools protocol with go-rod.
type RodFactory struct {
	browser *rod.Browser
	log     *slog.Logger
}

// NewRodFactory connects to the browser at controlURL, or launches a managed
// instance when controlURL is empty. headless only applies to the managed
// launch; a headed browser is useful when the wall renders on a local display.
func NewRodFactory(controlURL string, headless bool, log *slog.Logger) (*RodFactory, error) {
	if log == nil {
		log = slog.Default()
	}
	if controlURL == "" {
		u, err := launcher.New().Headless(headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	log.Info("browser connected", slog.String("control_url", controlURL))
	return &RodFactory{browser: browser, log: log}, nil
}

// New implements Factory: one blank page per host.
func (f *RodFactory) New(id string, events chan<- Event) (Host, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &rodHost{
		id:     id,
		page:   page,
		events: events,
		log:    f.log.With(slog.String("host_id", id)),
	}, nil
}

// Close tears down the browser and every page it still owns.
func (f *RodFactory) Close() error {
	return f.browser.Close()
}

type rodHost struct {
	id     string
	page   *rod.Page
	events chan<- Event
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (h *rodHost) ID() string { return h.id }

// Load navigates the page and runs the handshake in the background: init
// once the document load event fires, an info event with the page title,
// loaded once media playback starts. All handshake events carry epoch.
func (h *rodHost) Load(ctx context.Context, url string, epoch uint64) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("host %s is closed", h.id)
	}
	h.mu.Unlock()

	page := h.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	go h.handshake(ctx, epoch)
	return nil
}

func (h *rodHost) handshake(ctx context.Context, epoch uint64) {
	page := h.page.Context(ctx)

	if err := page.WaitLoad(); err != nil {
		h.emit(ctx, Event{HostID: h.id, Epoch: epoch, Kind: EventFailed, Err: err})
		return
	}
	h.emit(ctx, Event{HostID: h.id, Epoch: epoch, Kind: EventInit})

	if info, err := page.Info(); err == nil && info.Title != "" {
		h.emit(ctx, Event{HostID: h.id, Epoch: epoch, Kind: EventInfo, Title: info.Title})
	}

	if _, err := page.Eval(jsWaitMediaPlaying); err != nil {
		h.emit(ctx, Event{HostID: h.id, Epoch: epoch, Kind: EventFailed, Err: err})
		return
	}
	h.emit(ctx, Event{HostID: h.id, Epoch: epoch, Kind: EventLoaded})
}

func (h *rodHost) emit(ctx context.Context, ev Event) {
	select {
	case h.events <- ev:
	case <-ctx.Done():
	}
}

// SetBounds resizes the page viewport. The X/Y placement is consumed by the
// compositing layer, which is outside this process; the host only needs the
// surface to render at the right size.
func (h *rodHost) SetBounds(r Rect) error {
	return h.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.Width,
		Height:            r.Height,
		DeviceScaleFactor: 1,
	})
}

// SetVisible activates the page's target when shown. Hidden pages simply
// stay staged in the background.
func (h *rodHost) SetVisible(visible bool) error {
	if !visible {
		return nil
	}
	_, err := h.page.Activate()
	return err
}

func (h *rodHost) SetMuted(muted bool) error {
	_, err := h.page.Eval(jsSetMuted, muted)
	return err
}

func (h *rodHost) SetBlurred(blurred bool) error {
	_, err := h.page.Eval(jsSetBlurred, blurred)
	return err
}

func (h *rodHost) SetRotation(degrees int) error {
	_, err := h.page.Eval(jsSetRotation, degrees)
	return err
}

// OpenDevtools surfaces the page's devtools target so an external inspector
// can attach to it over the browser's debugging endpoint.
func (h *rodHost) OpenDevtools(target string) error {
	h.log.Info("devtools attach requested",
		slog.String("target", target),
		slog.String("target_id", string(h.page.TargetID)))
	return nil
}

func (h *rodHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.page.Close()
}
