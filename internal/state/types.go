// Package state reads a point-in-time snapshot of the editor: windows, tabs,
// buffers, cursor positions and bounded line ranges. Snapshots are recomputed
// on every read and never cached; editor state can change between requests.
package state

// Cursor is a position within a buffer. Line is 1-based; Col is the 0-based
// byte offset reported by the editor.
type Cursor struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Range is the visible slice of a buffer, 1-based inclusive for display. It
// is derived from the editor's 0-based end-exclusive addressing.
type Range struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Radius int `json:"radius"`
}

// Window is a snapshot of one viewport. Err carries a diagnostic when one or
// more sub-fetches failed; the remaining fields hold whatever was resolved.
type Window struct {
	Number       int      `json:"number"`
	IsCurrent    bool     `json:"is_current"`
	IsActive     bool     `json:"is_active"`
	BufferNumber int      `json:"buffer_number"`
	BufferName   string   `json:"buffer_name"`
	Cursor       Cursor   `json:"cursor"`
	TotalLines   int      `json:"total_lines"`
	Range        Range    `json:"range"`
	Lines        []string `json:"lines"`
	Modified     bool     `json:"modified"`
	Err          string   `json:"error,omitempty"`
}

// Buffer summarizes one open buffer, visible or not.
type Buffer struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Err    string `json:"error,omitempty"`
}

// LayoutType classifies how a tab's windows are arranged. Derived purely
// from window geometry; the editor does not report it.
type LayoutType string

const (
	LayoutSingle     LayoutType = "single"
	LayoutHorizontal LayoutType = "horizontal"
	LayoutVertical   LayoutType = "vertical"
	LayoutMixed      LayoutType = "mixed"
	LayoutComplex    LayoutType = "complex"
	LayoutEmpty      LayoutType = "empty"
	LayoutUnknown    LayoutType = "unknown"
)

// Layout is a classified arrangement with a short human description.
type Layout struct {
	Type        LayoutType `json:"type"`
	Description string     `json:"description"`
}

// WindowRef is the lightweight per-window descriptor carried by a Tab.
type WindowRef struct {
	Number       int    `json:"number"`
	BufferNumber int    `json:"buffer_number"`
	BufferName   string `json:"buffer_name"`
	IsCurrent    bool   `json:"is_current"`
	Modified     bool   `json:"modified"`
	Err          string `json:"error,omitempty"`
}

// Tab summarizes one tabpage and its window arrangement.
type Tab struct {
	Number    int         `json:"number"`
	IsCurrent bool        `json:"is_current"`
	Windows   []WindowRef `json:"windows"`
	Layout    Layout      `json:"layout"`
	Err       string      `json:"error,omitempty"`
}

// State is the full remote-state snapshot consumed by the report assembler.
type State struct {
	Windows []Window `json:"windows"`
	Buffers []Buffer `json:"buffers"`
	Tabs    []Tab    `json:"tabs"`
}
