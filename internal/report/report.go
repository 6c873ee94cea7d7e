// Package report turns a remote-state snapshot into a deterministic report.
// The structured (JSON) and human-readable (text) renderings are both derived
// from the same Report value and cannot diverge.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nvtools/nvim-mcp/internal/state"
)

// cursorMarker is inserted into the focused window's content line at the
// cursor's byte offset.
const cursorMarker = "[CURSOR]"

var separator = strings.Repeat("─", 72)

var layoutSymbols = map[state.LayoutType]string{
	state.LayoutSingle:     "□",
	state.LayoutHorizontal: "◫",
	state.LayoutVertical:   "⊟",
	state.LayoutMixed:      "▦",
	state.LayoutComplex:    "▩",
	state.LayoutEmpty:      "∅",
	state.LayoutUnknown:    "?",
}

// Report is the assembled view of one snapshot.
type Report struct {
	Tabs    []state.Tab    `json:"tabs"`
	Buffers []state.Buffer `json:"buffers"`
	Windows []state.Window `json:"windows"`
}

// Assemble builds a Report from a snapshot. Pure: the input is not mutated.
// Buffers are sorted by number ascending; entries whose number could not be
// resolved sort last.
func Assemble(st *state.State) *Report {
	r := &Report{
		Tabs:    append([]state.Tab(nil), st.Tabs...),
		Buffers: append([]state.Buffer(nil), st.Buffers...),
		Windows: append([]state.Window(nil), st.Windows...),
	}
	sort.SliceStable(r.Buffers, func(i, j int) bool {
		bi, bj := r.Buffers[i], r.Buffers[j]
		if (bi.Number <= 0) != (bj.Number <= 0) {
			return bj.Number <= 0
		}
		return bi.Number < bj.Number
	})
	return r
}

// JSON renders the structured form.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// Text renders the human-readable form: tab topology, buffer list, then
// per-window content with line numbers and the cursor marker.
func (r *Report) Text() string {
	var b strings.Builder
	r.writeTabs(&b)
	r.writeBuffers(&b)
	r.writeWindows(&b)
	return b.String()
}

func (r *Report) writeTabs(b *strings.Builder) {
	b.WriteString("TABS\n")
	b.WriteString(separator + "\n")
	for _, tab := range r.Tabs {
		marker := ""
		if tab.IsCurrent {
			marker = " (current)"
		}
		sym := layoutSymbols[tab.Layout.Type]
		if sym == "" {
			sym = "?"
		}
		fmt.Fprintf(b, "Tab %d%s %s %s — %s\n", tab.Number, marker, sym, tab.Layout.Type, tab.Layout.Description)
		if tab.Err != "" {
			fmt.Fprintf(b, "  [warning: %s]\n", tab.Err)
		}
		for _, w := range tab.Windows {
			name := w.BufferName
			if name == "" {
				name = "[No Name]"
			}
			modified := ""
			if w.Modified {
				modified = " [+]"
			}
			focused := ""
			if w.IsCurrent {
				focused = " (focused)"
			}
			fmt.Fprintf(b, "  window %d: %s%s%s\n", w.Number, name, modified, focused)
			if w.Err != "" {
				fmt.Fprintf(b, "    [warning: %s]\n", w.Err)
			}
		}
	}
	b.WriteString("\n")
}

func (r *Report) writeBuffers(b *strings.Builder) {
	b.WriteString("BUFFERS\n")
	b.WriteString(separator + "\n")
	for _, buf := range r.Buffers {
		if buf.Number <= 0 && buf.Err != "" {
			fmt.Fprintf(b, "  ?  [warning: %s]\n", buf.Err)
			continue
		}
		name := buf.Name
		if name == "" {
			name = "[No Name]"
		}
		loaded := "unloaded"
		if buf.Loaded {
			loaded = "loaded"
		}
		fmt.Fprintf(b, "%3d  %s (%s)\n", buf.Number, name, loaded)
		if buf.Err != "" {
			fmt.Fprintf(b, "     [warning: %s]\n", buf.Err)
		}
	}
	b.WriteString("\n")
}

func (r *Report) writeWindows(b *strings.Builder) {
	b.WriteString("WINDOWS\n")
	b.WriteString(separator + "\n")
	for _, w := range r.Windows {
		name := w.BufferName
		if name == "" {
			name = "[No Name]"
		}
		var notes []string
		if w.IsCurrent {
			notes = append(notes, "focused")
		}
		if w.IsActive {
			notes = append(notes, "keystroke target")
		}
		if w.Modified {
			notes = append(notes, "modified")
		}
		suffix := ""
		if len(notes) > 0 {
			suffix = " (" + strings.Join(notes, ", ") + ")"
		}
		fmt.Fprintf(b, "Window %d — buffer %d %q%s\n", w.Number, w.BufferNumber, name, suffix)
		fmt.Fprintf(b, "cursor: line %d, col %d — showing lines %d-%d of %d\n",
			w.Cursor.Line, w.Cursor.Col+1, w.Range.Start, w.Range.End, w.TotalLines)
		if w.Err != "" {
			fmt.Fprintf(b, "[warning: %s]\n", w.Err)
		}

		width := len(strconv.Itoa(w.Range.End))
		if width < 3 {
			width = 3
		}
		for i, line := range w.Lines {
			lineNo := w.Range.Start + i
			if w.IsCurrent && lineNo == w.Cursor.Line {
				line = MarkCursor(line, w.Cursor.Col)
			}
			fmt.Fprintf(b, "%*d  %s\n", width, lineNo, line)
		}
		b.WriteString(separator + "\n")
	}
}

// MarkCursor inserts the cursor marker at the given byte offset. Offsets
// outside the line clamp to its ends, so a cursor at end-of-line renders
// after the final character.
func MarkCursor(line string, col int) string {
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}
	return line[:col] + cursorMarker + line[col:]
}
