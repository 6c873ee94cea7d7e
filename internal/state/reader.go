package state

import (
	"context"
	"fmt"
	"time"

	"github.com/neovim/go-client/nvim"
	"github.com/nvtools/nvim-mcp/internal/editor"
	"github.com/nvtools/nvim-mcp/internal/timeout"
	"pkt.systems/pslog"
)

// bufLinesLua is the raw request path for line ranges, used when the
// structured call fails. Bounds are coerced to concrete integers before the
// call; a "-1 means all lines" sentinel is never sent.
const bufLinesLua = `local b, s, e, strict = ...
return vim.api.nvim_buf_get_lines(b, s, e, strict)`

// Options configure a Reader. Zero values take defaults.
type Options struct {
	// CallTimeout bounds each individual remote call. Default 2s.
	CallTimeout time.Duration
	// Radius is the number of lines fetched on each side of the cursor.
	// Default 100.
	Radius int
	Log    pslog.Logger
}

// Reader assembles a State from a live editor connection. Every sub-call is
// individually deadline-guarded and fault-isolated: a failure fetching one
// entity's details records a diagnostic on that entity and enumeration
// continues.
type Reader struct {
	api    editor.API
	call   time.Duration
	radius int
	log    pslog.Logger
}

// NewReader creates a Reader over an attached editor connection.
func NewReader(api editor.API, opts Options) *Reader {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Second
	}
	if opts.Radius <= 0 {
		opts.Radius = 100
	}
	if opts.Log == nil {
		opts.Log = pslog.Ctx(context.Background())
	}
	return &Reader{
		api:    api,
		call:   opts.CallTimeout,
		radius: opts.Radius,
		log:    opts.Log,
	}
}

func call[T any](r *Reader, msg string, fn func() (T, error)) (T, error) {
	return timeout.Do(r.call, msg, fn)
}

// Read enumerates windows, buffers and tabpages sequentially. Only a failure
// of the top-level window enumeration is terminal; everything below it
// degrades to per-entity diagnostics.
func (r *Reader) Read() (*State, error) {
	wins, err := call(r, "listing windows", r.api.Windows)
	if err != nil {
		return nil, fmt.Errorf("listing windows: %w", err)
	}

	current, err := call(r, "current window", r.api.CurrentWindow)
	if err != nil {
		r.log.Warn("current window unavailable", "err", err)
		current = -1
	}

	st := &State{
		Windows: make([]Window, 0, len(wins)),
		Buffers: r.readBuffers(),
		Tabs:    r.readTabs(current),
	}
	for _, w := range wins {
		st.Windows = append(st.Windows, r.readWindow(w, current))
	}
	return st, nil
}

func (r *Reader) readWindow(w nvim.Window, current nvim.Window) Window {
	win := Window{
		IsCurrent: w == current,
		Cursor:    Cursor{Line: 1},
	}
	// Keystrokes land in the focused window's buffer. If the editor ever
	// lets focus and keystroke target diverge (floating windows), this
	// equivalence needs revisiting.
	win.IsActive = win.IsCurrent

	if n, err := call(r, "window number", func() (int, error) { return r.api.WindowNumber(w) }); err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("window number unavailable: %v", err))
	} else {
		win.Number = n
	}

	buf, err := call(r, "window buffer", func() (nvim.Buffer, error) { return r.api.WindowBuffer(w) })
	if err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("buffer handle unavailable: %v", err))
		win.Lines = []string{fmt.Sprintf("[content unavailable: %v]", err)}
		return win
	}

	if n, err := call(r, "buffer number", func() (int, error) { return r.api.BufferNumber(buf) }); err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("buffer number unavailable: %v", err))
	} else {
		win.BufferNumber = n
	}

	if name, err := call(r, "buffer name", func() (string, error) { return r.api.BufferName(buf) }); err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("buffer name unavailable: %v", err))
	} else {
		win.BufferName = name
	}

	if mod, err := call(r, "buffer modified flag", func() (bool, error) {
		var modified bool
		err := r.api.BufferOption(buf, "modified", &modified)
		return modified, err
	}); err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("modified flag unavailable: %v", err))
	} else {
		win.Modified = mod
	}

	total, err := call(r, "buffer line count", func() (int, error) { return r.api.BufferLineCount(buf) })
	if err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("line count unavailable: %v", err))
		win.Lines = []string{fmt.Sprintf("[content unavailable: %v]", err)}
		return win
	}
	win.TotalLines = total

	if pos, err := call(r, "window cursor", func() ([2]int, error) { return r.api.WindowCursor(w) }); err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("cursor unavailable: %v", err))
	} else {
		win.Cursor = Cursor{Line: pos[0], Col: pos[1]}
	}
	// Keep the cursor inside [1, total] even if the remote reported a stale
	// position.
	if total > 0 && win.Cursor.Line > total {
		win.Cursor.Line = total
	}
	if win.Cursor.Line < 1 {
		win.Cursor.Line = 1
	}

	lines, rng, err := r.fetchLines(buf, total, win.Cursor.Line)
	if err != nil {
		win.Err = addDiag(win.Err, fmt.Sprintf("content unavailable: %v", err))
		win.Lines = []string{fmt.Sprintf("[content unavailable: %v]", err)}
		win.Range = rng
		return win
	}
	win.Lines = lines
	win.Range = rng
	return win
}

// fetchLines retrieves a bounded neighborhood around the cursor using the
// editor's 0-based end-exclusive addressing. cursorLine is 1-based. The
// structured call is primary; on failure the same range goes through the raw
// Lua request path with explicitly coerced integer bounds.
func (r *Reader) fetchLines(buf nvim.Buffer, total, cursorLine int) ([]string, Range, error) {
	start := cursorLine - 1 - r.radius
	if start < 0 {
		start = 0
	}
	end := cursorLine + r.radius
	if end > total {
		end = total
	}
	if end < 1 {
		// Zero-line buffer: still read the single empty slot. Never -1.
		end = 1
	}
	rng := Range{Start: start + 1, End: end, Radius: r.radius}

	raw, err := call(r, "buffer line range", func() ([][]byte, error) {
		return r.api.BufferLines(buf, start, end, false)
	})
	if err == nil {
		lines := make([]string, len(raw))
		for i, b := range raw {
			lines[i] = string(b)
		}
		return lines, rng, nil
	}

	r.log.Debug("structured line fetch failed, using raw request",
		"buffer", int(buf), "start", start, "end", end, "err", err)

	var lines []string
	ferr := timeout.Run(r.call, "buffer line range (raw)", func() error {
		return r.api.ExecLua(bufLinesLua, &lines, int(buf), start, end, false)
	})
	if ferr != nil {
		return nil, rng, fmt.Errorf("structured fetch: %v; raw fallback: %v", err, ferr)
	}
	return lines, rng, nil
}

func (r *Reader) readBuffers() []Buffer {
	bufs, err := call(r, "listing buffers", r.api.Buffers)
	if err != nil {
		return []Buffer{{Err: fmt.Sprintf("buffer list unavailable: %v", err)}}
	}

	out := make([]Buffer, 0, len(bufs))
	for _, b := range bufs {
		entry := Buffer{}
		if n, err := call(r, "buffer number", func() (int, error) { return r.api.BufferNumber(b) }); err != nil {
			entry.Err = addDiag(entry.Err, fmt.Sprintf("number unavailable: %v", err))
		} else {
			entry.Number = n
		}
		if name, err := call(r, "buffer name", func() (string, error) { return r.api.BufferName(b) }); err != nil {
			entry.Err = addDiag(entry.Err, fmt.Sprintf("name unavailable: %v", err))
		} else {
			entry.Name = name
		}
		if loaded, err := call(r, "buffer loaded flag", func() (bool, error) { return r.api.IsBufferLoaded(b) }); err != nil {
			entry.Err = addDiag(entry.Err, fmt.Sprintf("loaded flag unavailable: %v", err))
		} else {
			entry.Loaded = loaded
		}
		out = append(out, entry)
	}
	return out
}

func (r *Reader) readTabs(currentWin nvim.Window) []Tab {
	tabs, err := call(r, "listing tabpages", r.api.Tabpages)
	if err != nil {
		return []Tab{{
			Err:    fmt.Sprintf("tabpage list unavailable: %v", err),
			Layout: Layout{Type: LayoutUnknown, Description: "tabpage list unavailable"},
		}}
	}

	currentTab, err := call(r, "current tabpage", r.api.CurrentTabpage)
	if err != nil {
		r.log.Warn("current tabpage unavailable", "err", err)
		currentTab = -1
	}

	out := make([]Tab, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, r.readTab(t, t == currentTab, currentWin))
	}
	return out
}

func (r *Reader) readTab(t nvim.Tabpage, isCurrent bool, currentWin nvim.Window) Tab {
	tab := Tab{IsCurrent: isCurrent}

	if n, err := call(r, "tabpage number", func() (int, error) { return r.api.TabpageNumber(t) }); err != nil {
		tab.Err = addDiag(tab.Err, fmt.Sprintf("tab number unavailable: %v", err))
	} else {
		tab.Number = n
	}

	wins, err := call(r, "tabpage windows", func() ([]nvim.Window, error) { return r.api.TabpageWindows(t) })
	if err != nil {
		tab.Err = addDiag(tab.Err, fmt.Sprintf("window list unavailable: %v", err))
		tab.Layout = Layout{Type: LayoutUnknown, Description: "window list unavailable"}
		return tab
	}

	geoms := make([]geometry, 0, len(wins))
	for _, w := range wins {
		tab.Windows = append(tab.Windows, r.readWindowRef(w, currentWin))
		geoms = append(geoms, r.readGeometry(w))
	}
	tab.Layout = classifyGeometry(geoms)
	return tab
}

func (r *Reader) readWindowRef(w nvim.Window, currentWin nvim.Window) WindowRef {
	ref := WindowRef{IsCurrent: w == currentWin}

	if n, err := call(r, "window number", func() (int, error) { return r.api.WindowNumber(w) }); err != nil {
		ref.Err = addDiag(ref.Err, fmt.Sprintf("window number unavailable: %v", err))
	} else {
		ref.Number = n
	}

	buf, err := call(r, "window buffer", func() (nvim.Buffer, error) { return r.api.WindowBuffer(w) })
	if err != nil {
		ref.Err = addDiag(ref.Err, fmt.Sprintf("buffer handle unavailable: %v", err))
		return ref
	}

	if n, err := call(r, "buffer number", func() (int, error) { return r.api.BufferNumber(buf) }); err != nil {
		ref.Err = addDiag(ref.Err, fmt.Sprintf("buffer number unavailable: %v", err))
	} else {
		ref.BufferNumber = n
	}
	if name, err := call(r, "buffer name", func() (string, error) { return r.api.BufferName(buf) }); err != nil {
		ref.Err = addDiag(ref.Err, fmt.Sprintf("buffer name unavailable: %v", err))
	} else {
		ref.BufferName = name
	}
	if mod, err := call(r, "buffer modified flag", func() (bool, error) {
		var modified bool
		err := r.api.BufferOption(buf, "modified", &modified)
		return modified, err
	}); err != nil {
		ref.Err = addDiag(ref.Err, fmt.Sprintf("modified flag unavailable: %v", err))
	} else {
		ref.Modified = mod
	}
	return ref
}

func (r *Reader) readGeometry(w nvim.Window) geometry {
	pos, err := call(r, "window position", func() ([2]int, error) { return r.api.WindowPosition(w) })
	if err != nil {
		return geometry{}
	}
	width, err := call(r, "window width", func() (int, error) { return r.api.WindowWidth(w) })
	if err != nil {
		return geometry{}
	}
	height, err := call(r, "window height", func() (int, error) { return r.api.WindowHeight(w) })
	if err != nil {
		return geometry{}
	}
	return geometry{row: pos[0], col: pos[1], width: width, height: height, ok: true}
}

func addDiag(existing, diag string) string {
	if existing == "" {
		return diag
	}
	return existing + "; " + diag
}
