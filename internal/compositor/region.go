package compositor

import (
	"log/slog"

	"videowall/internal/host"
)

// Phase is the discriminated lifecycle state of a region. The dotted values
// mirror the hierarchy: displaying is a composite state whose loading phase
// runs navigate → waitForInit → waitForVideo before reaching running.
type Phase string

const (
	PhaseEmpty        Phase = "empty"
	PhaseNavigate     Phase = "displaying.loading.navigate"
	PhaseWaitForInit  Phase = "displaying.loading.waitForInit"
	PhaseWaitForVideo Phase = "displaying.loading.waitForVideo"
	PhaseRunning      Phase = "displaying.running"
	PhaseError        Phase = "displaying.error"
)

// AudioMode is the audio sub-state of a running region. Exactly one mode is
// active at a time; it is orthogonal to the video sub-state.
type AudioMode string

const (
	AudioMuted AudioMode = "muted"
	// AudioListening plays the region's audio to the operator.
	AudioListening AudioMode = "listening"
	// AudioBackground is the ambient mode: unmuted like listening, but it
	// ignores mute requests and is left only by an explicit unbackground.
	AudioBackground AudioMode = "background"
)

// VideoMode is the video sub-state of a running region.
type VideoMode string

const (
	VideoNormal  VideoMode = "normal"
	VideoBlurred VideoMode = "blurred"
)

// Region is one live grid region: the lifecycle machine plus the content
// host it drives. Regions are exclusively owned by the Engine and every
// method runs on the engine's event loop; no internal locking is needed.
//
// Host control failures are logged and absorbed; only a failed load or an
// explicit view error moves the machine to the error phase.
type Region struct {
	ID string

	phase   Phase
	audio   AudioMode
	video   VideoMode
	content ContentRef
	pos     Rect
	options DisplayOptions
	info    RegionInfo

	// epoch increments on every navigate; host events carrying an older
	// epoch belong to an abandoned navigation and are discarded.
	epoch uint64

	host host.Host
	log  *slog.Logger
}

// NewRegion returns a region in the empty phase bound to h.
func NewRegion(id string, h host.Host, log *slog.Logger) *Region {
	return &Region{
		ID:    id,
		phase: PhaseEmpty,
		audio: AudioMuted,
		video: VideoNormal,
		host:  h,
		log:   log.With(slog.String("region_id", id)),
	}
}

// Phase returns the current lifecycle phase.
func (r *Region) Phase() Phase { return r.phase }

// Content returns the content the region currently shows or loads.
func (r *Region) Content() ContentRef { return r.content }

// Pos returns the region's assigned pixel geometry.
func (r *Region) Pos() Rect { return r.pos }

// Epoch returns the current navigation epoch.
func (r *Region) Epoch() uint64 { return r.epoch }

func (r *Region) inLoading() bool {
	switch r.phase {
	case PhaseNavigate, PhaseWaitForInit, PhaseWaitForVideo:
		return true
	}
	return false
}

func (r *Region) running() bool { return r.phase == PhaseRunning }

// HandleDisplay applies a DISPLAY event. Same content repositions without a
// reload; changed content restarts the machine from loading. The returned
// navigate flag tells the owner to begin a new navigation.
func (r *Region) HandleDisplay(pos Rect, content ContentRef) (changed, navigate bool) {
	if r.phase == PhaseEmpty {
		r.content = content
		r.pos = pos
		return true, true
	}

	if content == r.content {
		if equalRect(pos, r.pos) {
			return false, false
		}
		r.pos = pos
		if r.running() {
			// Reposition in place; no reload. A loading region simply
			// renders at the new position once ready.
			r.hostCall("set bounds", r.host.SetBounds(hostRect(pos)))
		}
		return true, false
	}

	r.content = content
	r.pos = pos
	return true, true
}

// HandleOptions applies an OPTIONS event: store and forward when changed.
// No phase transition.
func (r *Region) HandleOptions(opts DisplayOptions) (changed bool) {
	if r.phase == PhaseEmpty || opts == r.options {
		return false
	}
	r.options = opts
	r.hostCall("set rotation", r.host.SetRotation(opts.Rotation))
	return true
}

// HandleReload forces the region back to loading regardless of sub-state.
func (r *Region) HandleReload() (navigate bool) {
	return r.phase != PhaseEmpty
}

// HandleDevtools attaches an external inspector. Side effect only.
func (r *Region) HandleDevtools(target string) {
	if r.phase == PhaseEmpty {
		return
	}
	r.hostCall("open devtools", r.host.OpenDevtools(target))
}

// HandleViewError logs the error and moves the region to the error phase.
func (r *Region) HandleViewError(err error) (changed bool) {
	if r.phase == PhaseEmpty || r.phase == PhaseError {
		return false
	}
	r.log.Error("region view error",
		slog.String("url", r.content.URL),
		slog.String("error", err.Error()))
	r.phase = PhaseError
	return true
}

// HandleViewInfo stores metadata reported by the content host.
func (r *Region) HandleViewInfo(epoch uint64, info RegionInfo) (changed bool) {
	if epoch != r.epoch || r.phase == PhaseEmpty || info == r.info {
		return false
	}
	r.info = info
	return true
}

// BeginNavigate enters the navigate phase: a fresh epoch is stamped, stale
// metadata cleared, and the host staged off-screen below the always-visible
// layers. It returns the URL the host should load; a validation failure
// moves the region straight to error and returns ok=false.
func (r *Region) BeginNavigate(harness string) (loadURL string, epoch uint64, ok bool) {
	r.epoch++
	r.phase = PhaseNavigate
	r.info = RegionInfo{}
	r.hostCall("stage off-screen", r.host.SetVisible(false))

	loadURL, err := resolveLoadURL(r.content, harness)
	if err != nil {
		r.log.Error("region content rejected",
			slog.String("url", r.content.URL),
			slog.String("error", err.Error()))
		r.phase = PhaseError
		return "", r.epoch, false
	}
	r.log.Info("region navigating",
		slog.String("url", loadURL),
		slog.Uint64("epoch", r.epoch))
	return loadURL, r.epoch, true
}

// HandleLoadResult applies the completion of the asynchronous load
// capability. Results for a superseded navigation are discarded.
func (r *Region) HandleLoadResult(epoch uint64, err error) (changed bool) {
	if epoch != r.epoch || r.phase != PhaseNavigate {
		r.log.Debug("stale load result discarded", slog.Uint64("epoch", epoch))
		return false
	}
	if err != nil {
		r.log.Error("region load failed",
			slog.String("url", r.content.URL),
			slog.String("error", err.Error()))
		r.phase = PhaseError
		return true
	}
	r.phase = PhaseWaitForInit
	return true
}

// HandleViewInit applies the host's init acknowledgement. A fast host can
// acknowledge before the load result for the same epoch has been processed;
// the acknowledgement implies the load succeeded, so both orders reach
// waitForVideo.
func (r *Region) HandleViewInit(epoch uint64) (changed bool) {
	if epoch != r.epoch || (r.phase != PhaseWaitForInit && r.phase != PhaseNavigate) {
		r.log.Debug("stale init acknowledgement discarded", slog.Uint64("epoch", epoch))
		return false
	}
	r.phase = PhaseWaitForVideo
	return true
}

// HandleViewLoaded applies the host's loaded acknowledgement: media actually
// started, so the region enters running with its sub-modes at their initial
// values and the host positioned on-screen.
func (r *Region) HandleViewLoaded(epoch uint64) (changed bool) {
	if epoch != r.epoch || r.phase != PhaseWaitForVideo {
		r.log.Debug("stale loaded acknowledgement discarded", slog.Uint64("epoch", epoch))
		return false
	}
	r.phase = PhaseRunning
	r.audio = AudioMuted
	r.video = VideoNormal
	r.hostCall("set bounds", r.host.SetBounds(hostRect(r.pos)))
	r.hostCall("set rotation", r.host.SetRotation(r.options.Rotation))
	r.hostCall("mute", r.host.SetMuted(true))
	r.hostCall("show", r.host.SetVisible(true))
	r.log.Info("region running", slog.String("url", r.content.URL))
	return true
}

// HandleMute mutes a listening region. Ignored outside running and in the
// background mode, which only an explicit unbackground leaves.
func (r *Region) HandleMute() (changed bool) {
	if !r.running() || r.audio != AudioListening {
		return false
	}
	r.audio = AudioMuted
	r.hostCall("mute", r.host.SetMuted(true))
	return true
}

// HandleUnmute moves a muted region to listening.
func (r *Region) HandleUnmute() (changed bool) {
	if !r.running() || r.audio != AudioMuted {
		return false
	}
	r.audio = AudioListening
	r.hostCall("unmute", r.host.SetMuted(false))
	return true
}

// HandleBackground enters the ambient background mode, unmuting.
func (r *Region) HandleBackground() (changed bool) {
	if !r.running() || r.audio == AudioBackground {
		return false
	}
	r.audio = AudioBackground
	r.hostCall("unmute", r.host.SetMuted(false))
	return true
}

// HandleUnbackground leaves background mode, returning to muted.
func (r *Region) HandleUnbackground() (changed bool) {
	if !r.running() || r.audio != AudioBackground {
		return false
	}
	r.audio = AudioMuted
	r.hostCall("mute", r.host.SetMuted(true))
	return true
}

// HandleBlur blurs the region's video. Purely a flag forwarded to the
// rendering layer; orthogonal to the audio mode.
func (r *Region) HandleBlur() (changed bool) {
	if !r.running() || r.video == VideoBlurred {
		return false
	}
	r.video = VideoBlurred
	r.hostCall("blur", r.host.SetBlurred(true))
	return true
}

// HandleUnblur removes the blur flag.
func (r *Region) HandleUnblur() (changed bool) {
	if !r.running() || r.video != VideoBlurred {
		return false
	}
	r.video = VideoNormal
	r.hostCall("unblur", r.host.SetBlurred(false))
	return true
}

// Retire tears the content host down. Unconditional and ordered: it runs
// before the owner drops its reference on every exit path.
func (r *Region) Retire() {
	r.hostCall("stage off-screen", r.host.SetVisible(false))
	if err := r.host.Close(); err != nil {
		r.log.Warn("host close failed", slog.String("error", err.Error()))
	}
	r.log.Info("region retired", slog.String("url", r.content.URL))
}

// Snapshot renders the region for the aggregated state array.
func (r *Region) Snapshot() RegionSnapshot {
	return RegionSnapshot{
		ID:         r.ID,
		StateValue: string(r.phase),
		AudioMode:  r.audio,
		VideoMode:  r.video,
		Context: RegionContext{
			ID:      r.ID,
			Content: r.content,
			Info:    r.info,
			Pos:     r.pos,
		},
	}
}

func (r *Region) hostCall(op string, err error) {
	if err != nil {
		r.log.Warn("host call failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}

func hostRect(r Rect) host.Rect {
	return host.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func equalRect(a, b Rect) bool {
	if a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height {
		return false
	}
	if len(a.Spaces) != len(b.Spaces) {
		return false
	}
	for i := range a.Spaces {
		if a.Spaces[i] != b.Spaces[i] {
			return false
		}
	}
	return true
}
