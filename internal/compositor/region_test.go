package compositor

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"videowall/internal/host"
	"videowall/internal/platform/logger"
)

func testLogger() *slog.Logger {
	return logger.Nop()
}

// fakeHost records control calls so tests can assert on side effects.
type fakeHost struct {
	mu       sync.Mutex
	id       string
	loads    []string
	bounds   host.Rect
	visible  bool
	muted    bool
	blurred  bool
	rotation int
	devtools []string
	closed   bool
	loadErr  error
}

func (f *fakeHost) ID() string { return f.id }

func (f *fakeHost) Load(_ context.Context, url string, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	return f.loadErr
}

func (f *fakeHost) SetBounds(r host.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = r
	return nil
}

func (f *fakeHost) SetVisible(v bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = v
	return nil
}

func (f *fakeHost) SetMuted(m bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = m
	return nil
}

func (f *fakeHost) SetBlurred(b bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blurred = b
	return nil
}

func (f *fakeHost) SetRotation(deg int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotation = deg
	return nil
}

func (f *fakeHost) OpenDevtools(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devtools = append(f.devtools, target)
	return nil
}

func (f *fakeHost) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHost) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func newTestRegion(t *testing.T) (*Region, *fakeHost) {
	t.Helper()
	fh := &fakeHost{id: "h1"}
	return NewRegion("r1", fh, testLogger()), fh
}

// driveToRunning walks a region through display, navigate, and the full
// handshake for the given content.
func driveToRunning(t *testing.T, r *Region, pos Rect, content ContentRef) {
	t.Helper()
	_, navigate := r.HandleDisplay(pos, content)
	if !navigate {
		t.Fatal("display on fresh content should request navigation")
	}
	_, epoch, ok := r.BeginNavigate("")
	if !ok {
		t.Fatalf("navigate rejected for %+v", content)
	}
	r.HandleLoadResult(epoch, nil)
	r.HandleViewInit(epoch)
	r.HandleViewLoaded(epoch)
	if r.Phase() != PhaseRunning {
		t.Fatalf("expected running, got %s", r.Phase())
	}
}

func TestRegion_load_handshake(t *testing.T) {
	r, fh := newTestRegion(t)

	if r.Phase() != PhaseEmpty {
		t.Fatalf("fresh region should be empty, got %s", r.Phase())
	}

	pos := Rect{X: 0, Y: 0, Width: 640, Height: 540, Spaces: []int{0, 3}}
	_, navigate := r.HandleDisplay(pos, contentA)
	if !navigate {
		t.Fatal("expected navigation request")
	}

	_, epoch, ok := r.BeginNavigate("")
	if !ok || r.Phase() != PhaseNavigate {
		t.Fatalf("expected navigate phase, got %s ok=%v", r.Phase(), ok)
	}
	if fh.visible {
		t.Error("host should be staged off-screen while loading")
	}

	if !r.HandleLoadResult(epoch, nil) || r.Phase() != PhaseWaitForInit {
		t.Fatalf("load success should enter waitForInit, got %s", r.Phase())
	}
	if !r.HandleViewInit(epoch) || r.Phase() != PhaseWaitForVideo {
		t.Fatalf("init ack should enter waitForVideo, got %s", r.Phase())
	}
	if !r.HandleViewLoaded(epoch) || r.Phase() != PhaseRunning {
		t.Fatalf("loaded ack should enter running, got %s", r.Phase())
	}

	if !fh.visible {
		t.Error("running region should position its host on-screen")
	}
	if !fh.muted {
		t.Error("audio starts muted")
	}
	if fh.bounds.Width != 640 || fh.bounds.Height != 540 {
		t.Errorf("host bounds not applied: %+v", fh.bounds)
	}
}

func TestRegion_init_ack_may_beat_load_result(t *testing.T) {
	r, _ := newTestRegion(t)
	r.HandleDisplay(Rect{Width: 100, Height: 100}, contentA)
	_, epoch, _ := r.BeginNavigate("")

	if !r.HandleViewInit(epoch) || r.Phase() != PhaseWaitForVideo {
		t.Fatalf("early init ack should advance to waitForVideo, got %s", r.Phase())
	}
	// The late load result applies to a phase it no longer matches.
	if r.HandleLoadResult(epoch, nil) {
		t.Error("late load result should be discarded")
	}
	if !r.HandleViewLoaded(epoch) || r.Phase() != PhaseRunning {
		t.Fatalf("expected running, got %s", r.Phase())
	}
}

func TestRegion_reposition_without_reload(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 640, Height: 540, Spaces: []int{0}}, contentA)

	moved := Rect{X: 640, Y: 0, Width: 640, Height: 540, Spaces: []int{1}}
	changed, navigate := r.HandleDisplay(moved, contentA)
	if !changed || navigate {
		t.Fatalf("same-content display: changed=%v navigate=%v, want true/false", changed, navigate)
	}
	if r.Phase() != PhaseRunning {
		t.Errorf("reposition must not leave running, got %s", r.Phase())
	}
	if fh.bounds.X != 640 {
		t.Errorf("host not repositioned: %+v", fh.bounds)
	}
	if got := r.Pos(); !equalRect(got, moved) {
		t.Errorf("pos not updated: %+v", got)
	}
}

func TestRegion_content_change_restarts_loading(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)

	_, navigate := r.HandleDisplay(r.Pos(), contentB)
	if !navigate {
		t.Fatal("content change should request navigation")
	}
	_, _, ok := r.BeginNavigate("")
	if !ok || r.Phase() != PhaseNavigate {
		t.Fatalf("expected navigate phase, got %s", r.Phase())
	}
	if r.Content() != contentB {
		t.Errorf("content not swapped: %+v", r.Content())
	}
	if fh.visible {
		t.Error("host should be restaged off-screen for the new load")
	}
}

func TestRegion_error_then_reload(t *testing.T) {
	r, _ := newTestRegion(t)
	r.HandleDisplay(Rect{Width: 100, Height: 100}, contentA)
	_, epoch, _ := r.BeginNavigate("")

	if !r.HandleViewError(ErrLoadFailed) || r.Phase() != PhaseError {
		t.Fatalf("view error during navigate should enter error, got %s", r.Phase())
	}
	// Late handshake events for the failed load are ignored in error.
	if r.HandleViewInit(epoch) || r.HandleViewLoaded(epoch) {
		t.Error("handshake events must not leave the error state")
	}

	if !r.HandleReload() {
		t.Fatal("reload must be honored in error")
	}
	_, epoch2, ok := r.BeginNavigate("")
	if !ok || r.Phase() != PhaseNavigate {
		t.Fatalf("reload should re-enter navigate, got %s", r.Phase())
	}
	if epoch2 != epoch+1 {
		t.Errorf("reload should stamp a fresh epoch: got %d after %d", epoch2, epoch)
	}
	if r.Content() != contentA {
		t.Errorf("reload must keep the same content, got %+v", r.Content())
	}
}

func TestRegion_stale_epoch_events_discarded(t *testing.T) {
	r, _ := newTestRegion(t)
	r.HandleDisplay(Rect{Width: 100, Height: 100}, contentA)
	_, stale, _ := r.BeginNavigate("")
	r.HandleReload()
	_, fresh, _ := r.BeginNavigate("")

	if r.HandleLoadResult(stale, nil) {
		t.Error("stale load result applied")
	}
	if r.HandleViewInit(stale) {
		t.Error("stale init ack applied")
	}
	if r.HandleViewInfo(stale, RegionInfo{Title: "old"}) {
		t.Error("stale info applied")
	}
	if r.Phase() != PhaseNavigate {
		t.Errorf("stale events must not move the machine, got %s", r.Phase())
	}

	if !r.HandleLoadResult(fresh, nil) || r.Phase() != PhaseWaitForInit {
		t.Errorf("fresh load result should advance, got %s", r.Phase())
	}
}

func TestRegion_invalid_content_fails_before_navigation(t *testing.T) {
	r, fh := newTestRegion(t)
	bad := ContentRef{URL: "javascript:alert(1)", Kind: KindWeb}
	r.HandleDisplay(Rect{Width: 100, Height: 100}, bad)

	_, _, ok := r.BeginNavigate("")
	if ok || r.Phase() != PhaseError {
		t.Fatalf("invalid URL should enter error without navigating, got %s ok=%v", r.Phase(), ok)
	}
	if fh.loadCount() != 0 {
		t.Error("no load must be attempted for invalid content")
	}
}

func TestRegion_playlist_loads_through_harness(t *testing.T) {
	r, _ := newTestRegion(t)
	r.HandleDisplay(Rect{Width: 100, Height: 100}, contentA)

	loadURL, _, ok := r.BeginNavigate("https://wall.local/player.html")
	if !ok {
		t.Fatal("navigate rejected")
	}
	want := "https://wall.local/player.html?src=" + "https%3A%2F%2Fexample.com%2Fa.m3u8"
	if loadURL != want {
		t.Errorf("harness URL mismatch\n got %s\nwant %s", loadURL, want)
	}
}

func TestRegion_audio_and_video_modes_are_orthogonal(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)

	if !r.HandleUnmute() {
		t.Fatal("unmute from muted should change state")
	}
	if fh.muted {
		t.Error("host should be unmuted while listening")
	}
	if !r.HandleBlur() {
		t.Fatal("blur from normal should change state")
	}
	snap := r.Snapshot()
	if snap.AudioMode != AudioListening || snap.VideoMode != VideoBlurred {
		t.Errorf("modes not independent: %+v", snap)
	}

	if !r.HandleMute() || r.Snapshot().AudioMode != AudioMuted {
		t.Error("mute from listening failed")
	}
	if r.Snapshot().VideoMode != VideoBlurred {
		t.Error("audio transition must not touch the video mode")
	}
	if !r.HandleUnblur() || r.Snapshot().VideoMode != VideoNormal {
		t.Error("unblur failed")
	}
}

func TestRegion_background_mode_ignores_mute(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)

	if !r.HandleBackground() {
		t.Fatal("background from muted should change state")
	}
	if fh.muted {
		t.Error("background mode unmutes")
	}
	if r.HandleMute() {
		t.Error("mute must be ignored while in background mode")
	}
	if r.Snapshot().AudioMode != AudioBackground {
		t.Errorf("mode left background: %s", r.Snapshot().AudioMode)
	}
	if !r.HandleUnbackground() || r.Snapshot().AudioMode != AudioMuted {
		t.Error("unbackground should return to muted")
	}
	if !fh.muted {
		t.Error("host should be muted after unbackground")
	}
}

func TestRegion_sub_modes_reset_on_reload(t *testing.T) {
	r, _ := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)
	r.HandleUnmute()
	r.HandleBlur()

	r.HandleReload()
	_, epoch, _ := r.BeginNavigate("")
	r.HandleLoadResult(epoch, nil)
	r.HandleViewInit(epoch)
	r.HandleViewLoaded(epoch)

	snap := r.Snapshot()
	if snap.AudioMode != AudioMuted || snap.VideoMode != VideoNormal {
		t.Errorf("running re-entry should reset sub-modes, got %+v", snap)
	}
}

func TestRegion_options_forwarded_when_changed(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)

	if !r.HandleOptions(DisplayOptions{Rotation: 90}) {
		t.Fatal("changed options should be stored and forwarded")
	}
	if fh.rotation != 90 {
		t.Errorf("rotation not forwarded: %d", fh.rotation)
	}
	if r.HandleOptions(DisplayOptions{Rotation: 90}) {
		t.Error("unchanged options should be a no-op")
	}
}

func TestRegion_view_info_stores_title(t *testing.T) {
	r, _ := newTestRegion(t)
	r.HandleDisplay(Rect{Width: 100, Height: 100}, contentA)
	_, epoch, _ := r.BeginNavigate("")

	if !r.HandleViewInfo(epoch, RegionInfo{Title: "Lobby Camera"}) {
		t.Fatal("info should be stored")
	}
	if r.Snapshot().Context.Info.Title != "Lobby Camera" {
		t.Errorf("title not in snapshot: %+v", r.Snapshot().Context.Info)
	}
	if r.Phase() != PhaseNavigate {
		t.Errorf("info must not transition, got %s", r.Phase())
	}
}

func TestRegion_retire_closes_host(t *testing.T) {
	r, fh := newTestRegion(t)
	driveToRunning(t, r, Rect{Width: 100, Height: 100, Spaces: []int{0}}, contentA)

	r.Retire()
	if !fh.closed {
		t.Error("retire must close the content host")
	}
	if fh.visible {
		t.Error("retire must remove the host from the display stack first")
	}
}
