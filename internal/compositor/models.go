package compositor

// Kind classifies what a content URL refers to.
type Kind string

const (
	KindVideo      Kind = "video"
	KindAudio      Kind = "audio"
	KindWeb        Kind = "web"
	KindBackground Kind = "background"
	KindOverlay    Kind = "overlay"
)

// ValidKind reports whether k is one of the known content kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindVideo, KindAudio, KindWeb, KindBackground, KindOverlay:
		return true
	}
	return false
}

// ContentRef identifies what should occupy a cell. It is a value type
// compared by structural equality; two cells referring to the same URL and
// kind hold the same content.
type ContentRef struct {
	URL  string `json:"url" yaml:"url"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// IsZero reports whether the ref denotes an empty cell.
func (c ContentRef) IsZero() bool { return c.URL == "" }

// GridConfig defines the grid coordinate system. Immutable for a session.
type GridConfig struct {
	Cols        int `json:"cols"`
	Rows        int `json:"rows"`
	PixelWidth  int `json:"pixelWidth"`
	PixelHeight int `json:"pixelHeight"`
}

// Cells returns the number of cells in the grid.
func (g GridConfig) Cells() int { return g.Cols * g.Rows }

// SpaceSize returns the pixel size of a single cell, rounded down.
func (g GridConfig) SpaceSize() (w, h int) {
	return g.PixelWidth / g.Cols, g.PixelHeight / g.Rows
}

// AssignmentMap maps cell index (0..Cols*Rows-1) to content. Absent keys and
// zero refs both mean the cell is empty. The engine only ever reads
// snapshots of it; ownership stays with the external synchronization layer.
type AssignmentMap map[int]ContentRef

// Box is one merged rectangular region produced by the layout solver:
// a maximal run of adjacent cells holding equal content. Boxes are ephemeral
// and fully recomputed on every assignment change.
//
// Invariant: the boxes of one solve partition exactly the non-empty cells.
// No two boxes share a cell and the union of Spaces covers every assigned
// cell.
type Box struct {
	Content ContentRef
	X       int
	Y       int
	W       int
	H       int
	// Spaces holds the covered cell indices in ascending order.
	Spaces []int
}

// Rect is a region's pixel geometry plus the grid cells it covers.
type Rect struct {
	X      int   `json:"x"`
	Y      int   `json:"y"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Spaces []int `json:"spaces"`
}

// ContainsSpace reports whether the rect covers the given cell index.
func (r Rect) ContainsSpace(idx int) bool {
	for _, s := range r.Spaces {
		if s == idx {
			return true
		}
	}
	return false
}

// DisplayOptions is per-region presentation state derived from external
// per-stream metadata, pushed independently of content changes.
type DisplayOptions struct {
	Rotation int `json:"rotation"` // degrees, one of 0, 90, 180, 270
}

// RegionInfo is metadata reported back by the content host.
type RegionInfo struct {
	Title string `json:"title"`
}

// StreamMeta is the externally supplied per-stream metadata, keyed by URL.
type StreamMeta struct {
	Rotation int `yaml:"rotation" json:"rotation"`
}

// RegionContext is the context part of an aggregated region snapshot.
type RegionContext struct {
	ID      string     `json:"id"`
	Content ContentRef `json:"content"`
	Info    RegionInfo `json:"info"`
	Pos     Rect       `json:"pos"`
}

// RegionSnapshot is one entry of the consolidated state array republished to
// observers after every instance transition.
type RegionSnapshot struct {
	ID         string        `json:"id"`
	StateValue string        `json:"stateValue"`
	AudioMode  AudioMode     `json:"audioMode"`
	VideoMode  VideoMode     `json:"videoMode"`
	Context    RegionContext `json:"context"`
}
