package compositor

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"videowall/internal/host"
	"videowall/internal/platform/metrics"
)

// Internal events consumed by the engine loop. Everything that mutates
// engine state arrives as one of these.
type assignmentEvent struct {
	cells   AssignmentMap
	streams map[string]StreamMeta
}

type loadResultEvent struct {
	regionID string
	epoch    uint64
	err      error
}

type commandKind int

const (
	cmdReload commandKind = iota
	cmdListening
	cmdBackground
	cmdBlurred
	cmdDevtools
)

type commandEvent struct {
	kind    commandKind
	cell    int
	cellSet bool // cmdListening: false means "listen nowhere"
	enabled bool
	target  string
}

// Options configures an Engine.
type Options struct {
	Grid GridConfig
	// Factory creates a content host per region instance.
	Factory host.Factory
	Logger  *slog.Logger
	// Metrics may be nil to disable metric recording (e.g. in tests).
	Metrics *metrics.Metrics
	// HarnessURL is the player page used to display streaming playlists.
	// Empty disables the adapter; playlist URLs then load directly.
	HarnessURL string
}

// Engine is the composition core: it owns every RegionInstance, recomputes
// the box layout on each assignment snapshot, reconciles boxes onto regions,
// and applies commands and host events to the per-region machines.
//
// All mutation happens on the single goroutine inside Run; public methods
// only post events, so no locks guard the regions.
type Engine struct {
	grid    GridConfig
	factory host.Factory
	log     *slog.Logger
	metrics *metrics.Metrics
	harness string
	agg     *Aggregator

	events     chan any
	hostEvents chan host.Event
	done       chan struct{}

	// Owned by the run loop.
	runCtx     context.Context
	regions    map[string]*Region
	assignment AssignmentMap
	streams    map[string]StreamMeta
}

// New returns an engine ready to Run.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		grid:       opts.Grid,
		factory:    opts.Factory,
		log:        log.With(slog.String("component", "engine")),
		metrics:    opts.Metrics,
		harness:    opts.HarnessURL,
		agg:        NewAggregator(),
		events:     make(chan any, 256),
		hostEvents: make(chan host.Event, 256),
		done:       make(chan struct{}),
		regions:    make(map[string]*Region),
		assignment: AssignmentMap{},
		streams:    map[string]StreamMeta{},
	}
}

// Grid returns the engine's immutable grid configuration.
func (e *Engine) Grid() GridConfig { return e.grid }

// Aggregator exposes the consolidated state view for observers.
func (e *Engine) Aggregator() *Aggregator { return e.agg }

// Snapshot returns the latest aggregated state array.
func (e *Engine) Snapshot() []RegionSnapshot { return e.agg.Snapshot() }

// Run executes the event loop until ctx is cancelled, then retires every
// remaining region.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.done)
	e.log.Info("engine started",
		slog.Int("cols", e.grid.Cols),
		slog.Int("rows", e.grid.Rows))

	for {
		select {
		case <-ctx.Done():
			for id, r := range e.regions {
				r.Retire()
				delete(e.regions, id)
			}
			e.publish()
			e.log.Info("engine stopped")
			return ctx.Err()
		case ev := <-e.events:
			e.handle(ev)
		case hev := <-e.hostEvents:
			e.handleHostEvent(hev)
		}
	}
}

// SetAssignment posts a full assignment snapshot. streams replaces the
// per-stream metadata wholesale; nil clears it.
func (e *Engine) SetAssignment(cells AssignmentMap, streams map[string]StreamMeta) {
	e.post(assignmentEvent{cells: cells, streams: streams})
}

// Reload forces the region covering the cell back through loading.
func (e *Engine) Reload(cell int) {
	e.post(commandEvent{kind: cmdReload, cell: cell, cellSet: true})
}

// SetListening unmutes the region covering the cell and mutes every other
// region. A nil cell mutes everything.
func (e *Engine) SetListening(cell *int) {
	ev := commandEvent{kind: cmdListening}
	if cell != nil {
		ev.cell = *cell
		ev.cellSet = true
	}
	e.post(ev)
}

// SetBackgroundListening toggles the ambient background mode for the region
// covering the cell.
func (e *Engine) SetBackgroundListening(cell int, enabled bool) {
	e.post(commandEvent{kind: cmdBackground, cell: cell, cellSet: true, enabled: enabled})
}

// SetBlurred toggles the blur flag for the region covering the cell.
func (e *Engine) SetBlurred(cell int, enabled bool) {
	e.post(commandEvent{kind: cmdBlurred, cell: cell, cellSet: true, enabled: enabled})
}

// OpenDevtools attaches an external inspector to the region covering the cell.
func (e *Engine) OpenDevtools(cell int, target string) {
	e.post(commandEvent{kind: cmdDevtools, cell: cell, cellSet: true, target: target})
}

func (e *Engine) post(ev any) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) handle(ev any) {
	switch ev := ev.(type) {
	case assignmentEvent:
		e.assignment = ev.cells
		// A snapshot replaces the metadata wholesale; nil clears it, same
		// as a layout file without a streams section.
		e.streams = ev.streams
		if e.streams == nil {
			e.streams = map[string]StreamMeta{}
		}
		e.reconcile()
	case loadResultEvent:
		r, ok := e.regions[ev.regionID]
		if !ok {
			return
		}
		changed := r.HandleLoadResult(ev.epoch, ev.err)
		if changed && ev.err != nil && e.metrics != nil {
			e.metrics.IncRegionLoadFailures()
		}
		if changed {
			e.publish()
		}
	case commandEvent:
		e.handleCommand(ev)
	}
}

func (e *Engine) handleHostEvent(ev host.Event) {
	r, ok := e.regions[ev.HostID]
	if !ok {
		e.log.Debug("host event for retired region discarded", slog.String("host_id", ev.HostID))
		return
	}
	var changed bool
	switch ev.Kind {
	case host.EventInit:
		changed = r.HandleViewInit(ev.Epoch)
	case host.EventLoaded:
		changed = r.HandleViewLoaded(ev.Epoch)
	case host.EventFailed:
		if ev.Epoch == r.epoch {
			err := ev.Err
			if err == nil {
				err = ErrLoadFailed
			}
			changed = r.HandleViewError(err)
			if changed && e.metrics != nil {
				e.metrics.IncRegionLoadFailures()
			}
		}
	case host.EventInfo:
		changed = r.HandleViewInfo(ev.Epoch, RegionInfo{Title: ev.Title})
	}
	if changed {
		e.publish()
	}
}

func (e *Engine) handleCommand(cmd commandEvent) {
	changed := false
	switch cmd.kind {
	case cmdReload:
		r := e.regionAtCell(cmd.cell)
		if r == nil {
			return
		}
		if r.HandleReload() {
			if e.metrics != nil {
				e.metrics.IncRegionReloads()
			}
			e.startNavigate(r)
			changed = true
		}
	case cmdListening:
		for _, r := range e.regions {
			if cmd.cellSet && r.pos.ContainsSpace(cmd.cell) {
				changed = r.HandleUnmute() || changed
			} else {
				changed = r.HandleMute() || changed
			}
		}
	case cmdBackground:
		r := e.regionAtCell(cmd.cell)
		if r == nil {
			return
		}
		if cmd.enabled {
			changed = r.HandleBackground()
		} else {
			changed = r.HandleUnbackground()
		}
	case cmdBlurred:
		r := e.regionAtCell(cmd.cell)
		if r == nil {
			return
		}
		if cmd.enabled {
			changed = r.HandleBlur()
		} else {
			changed = r.HandleUnblur()
		}
	case cmdDevtools:
		r := e.regionAtCell(cmd.cell)
		if r == nil {
			return
		}
		r.HandleDevtools(cmd.target)
	}
	if changed {
		e.publish()
	}
}

// reconcile recomputes the box layout and maps it onto existing regions:
// matched boxes reuse their instance, unmatched boxes get a fresh one, and
// instances no box selected are retired before the pass completes.
func (e *Engine) reconcile() {
	boxes := Solve(e.grid.Cols, e.grid.Rows, e.assignment)
	matched := MatchBoxes(boxes, e.regionList())

	selected := make(map[string]bool, len(boxes))
	for i, b := range boxes {
		r, ok := matched[i]
		if !ok {
			r = e.createRegion()
			if r == nil {
				continue
			}
		}
		selected[r.ID] = true

		pos := PixelRect(e.grid, b)
		_, navigate := r.HandleDisplay(pos, b.Content)
		if navigate {
			e.startNavigate(r)
		}
		// Options after navigation so a fresh region is past the empty
		// phase and stores them.
		r.HandleOptions(e.optionsFor(b.Content))
	}

	for id, r := range e.regions {
		if selected[id] {
			continue
		}
		r.Retire()
		delete(e.regions, id)
		if e.metrics != nil {
			e.metrics.IncRegionsRetired()
		}
	}

	if e.metrics != nil {
		e.metrics.IncReconcilePasses()
	}
	e.log.Info("reconciled",
		slog.Int("boxes", len(boxes)),
		slog.Int("regions", len(e.regions)))
	e.publish()
}

func (e *Engine) createRegion() *Region {
	id := uuid.NewString()
	h, err := e.factory.New(id, e.hostEvents)
	if err != nil {
		e.log.Error("content host creation failed", slog.String("error", err.Error()))
		return nil
	}
	r := NewRegion(id, h, e.log)
	e.regions[id] = r
	if e.metrics != nil {
		e.metrics.IncRegionsCreated()
	}
	return r
}

// startNavigate runs the only asynchronous step: the load capability is
// invoked off the loop and its result fed back as an event against the same
// region, stamped with the navigation epoch.
func (e *Engine) startNavigate(r *Region) {
	loadURL, epoch, ok := r.BeginNavigate(e.harness)
	if e.metrics != nil {
		e.metrics.IncRegionLoads()
		if !ok {
			e.metrics.IncRegionLoadFailures()
		}
	}
	if !ok {
		return
	}
	h := r.host
	id := r.ID
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		err := h.Load(ctx, loadURL, epoch)
		e.post(loadResultEvent{regionID: id, epoch: epoch, err: err})
	}()
}

func (e *Engine) optionsFor(content ContentRef) DisplayOptions {
	return DisplayOptions{Rotation: e.streams[content.URL].Rotation}
}

func (e *Engine) regionAtCell(cell int) *Region {
	for _, r := range e.regions {
		if r.pos.ContainsSpace(cell) {
			return r
		}
	}
	e.log.Debug("no region covers cell", slog.Int("cell", cell))
	return nil
}

func (e *Engine) regionList() []*Region {
	list := make([]*Region, 0, len(e.regions))
	for _, r := range e.regions {
		list = append(list, r)
	}
	// Stable matching order: screen order first, id as tie-break.
	sort.Slice(list, func(i, j int) bool {
		a, b := firstSpace(list[i]), firstSpace(list[j])
		if a != b {
			return a < b
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// publish rebuilds the consolidated state array in screen order and hands it
// to the aggregator. Called after every instance transition.
func (e *Engine) publish() {
	snapshots := make([]RegionSnapshot, 0, len(e.regions))
	for _, r := range e.regionList() {
		snapshots = append(snapshots, r.Snapshot())
	}
	e.agg.Publish(snapshots)
	if e.metrics != nil {
		e.metrics.SetRegionsActive(len(e.regions))
		n := 0
		for _, r := range e.regions {
			if r.phase == PhaseError {
				n++
			}
		}
		e.metrics.SetRegionsInError(n)
	}
}

func firstSpace(r *Region) int {
	if len(r.pos.Spaces) == 0 {
		return int(^uint(0) >> 1)
	}
	return r.pos.Spaces[0]
}
