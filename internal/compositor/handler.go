package compositor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the compositor control channel over HTTP using go-chi.
// Commands are accepted and applied asynchronously by the engine loop, so
// mutating endpoints answer 202; observers read GET /state.
type Handler struct {
	engine *Engine
	log    *slog.Logger
}

// NewHandler returns a Handler driving the given engine.
func NewHandler(engine *Engine, log *slog.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// Routes mounts the control surface on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Put("/assignment", h.SetAssignment)
	r.Put("/listening", h.SetListening)
	r.Route("/cells/{cell}", func(r chi.Router) {
		r.Post("/reload", h.ReloadCell)
		r.Put("/background", h.SetBackground)
		r.Put("/blurred", h.SetBlurred)
		r.Post("/devtools", h.OpenDevtools)
	})
}

// GetState handles GET /state: the consolidated region state array.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.log.Error("encode state failed", slog.String("error", err.Error()))
	}
}

// assignmentBody is the JSON payload for PUT /assignment. Cell keys are
// strings because JSON objects cannot have integer keys.
type assignmentBody struct {
	Cells   map[string]ContentRef `json:"cells"`
	Streams map[string]StreamMeta `json:"streams"`
}

// SetAssignment handles PUT /assignment: push a full assignment snapshot.
func (h *Handler) SetAssignment(w http.ResponseWriter, r *http.Request) {
	var body assignmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid assignment body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	cells := make(AssignmentMap, len(body.Cells))
	for key, content := range body.Cells {
		idx, err := strconv.Atoi(key)
		if err != nil || !h.validCell(idx) {
			h.log.Debug("assignment rejected", slog.String("cell", key))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if content.IsZero() {
			continue
		}
		if !ValidKind(content.Kind) {
			h.log.Debug("assignment rejected",
				slog.String("cell", key),
				slog.String("kind", string(content.Kind)))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cells[idx] = content
	}

	for url, meta := range body.Streams {
		switch meta.Rotation {
		case 0, 90, 180, 270:
		default:
			h.log.Debug("assignment rejected",
				slog.String("stream", url),
				slog.Int("rotation", meta.Rotation))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	h.engine.SetAssignment(cells, body.Streams)
	h.log.Info("assignment pushed", slog.Int("cells", len(cells)))
	w.WriteHeader(http.StatusAccepted)
}

// listeningBody is the JSON payload for PUT /listening. A null cell mutes
// every region.
type listeningBody struct {
	Cell *int `json:"cell"`
}

// SetListening handles PUT /listening.
func (h *Handler) SetListening(w http.ResponseWriter, r *http.Request) {
	var body listeningBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid listening body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body.Cell != nil && !h.validCell(*body.Cell) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.engine.SetListening(body.Cell)
	w.WriteHeader(http.StatusAccepted)
}

// ReloadCell handles POST /cells/{cell}/reload.
func (h *Handler) ReloadCell(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cellParam(w, r)
	if !ok {
		return
	}
	h.engine.Reload(cell)
	h.log.Info("reload requested", slog.Int("cell", cell))
	w.WriteHeader(http.StatusAccepted)
}

type enabledBody struct {
	Enabled bool `json:"enabled"`
}

// SetBackground handles PUT /cells/{cell}/background.
func (h *Handler) SetBackground(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cellParam(w, r)
	if !ok {
		return
	}
	var body enabledBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.engine.SetBackgroundListening(cell, body.Enabled)
	w.WriteHeader(http.StatusAccepted)
}

// SetBlurred handles PUT /cells/{cell}/blurred.
func (h *Handler) SetBlurred(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cellParam(w, r)
	if !ok {
		return
	}
	var body enabledBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.engine.SetBlurred(cell, body.Enabled)
	w.WriteHeader(http.StatusAccepted)
}

type devtoolsBody struct {
	Target string `json:"target"`
}

// OpenDevtools handles POST /cells/{cell}/devtools.
func (h *Handler) OpenDevtools(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cellParam(w, r)
	if !ok {
		return
	}
	var body devtoolsBody
	// Body is optional; an empty target attaches to the default inspector.
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.engine.OpenDevtools(cell, body.Target)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) cellParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	cell, err := strconv.Atoi(chi.URLParam(r, "cell"))
	if err != nil || !h.validCell(cell) {
		h.log.Debug("cell rejected", slog.String("cell", chi.URLParam(r, "cell")))
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	return cell, true
}

func (h *Handler) validCell(idx int) bool {
	return idx >= 0 && idx < h.engine.Grid().Cells()
}
