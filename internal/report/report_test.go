package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nvtools/nvim-mcp/internal/state"
)

func sampleState() *state.State {
	return &state.State{
		Windows: []state.Window{
			{
				Number:       1,
				IsCurrent:    true,
				IsActive:     true,
				BufferNumber: 1,
				BufferName:   "main.go",
				Cursor:       state.Cursor{Line: 2, Col: 3},
				TotalLines:   3,
				Range:        state.Range{Start: 1, End: 3, Radius: 100},
				Lines:        []string{"package main", "abcdef", "func main() {}"},
				Modified:     true,
			},
			{
				Number:       2,
				BufferNumber: 2,
				BufferName:   "util.go",
				Cursor:       state.Cursor{Line: 1, Col: 0},
				TotalLines:   1,
				Range:        state.Range{Start: 1, End: 1, Radius: 100},
				Lines:        []string{"package util"},
			},
		},
		Buffers: []state.Buffer{
			{Number: 2, Name: "util.go", Loaded: true},
			{Err: "number unavailable: rpc error"},
			{Number: 1, Name: "main.go", Loaded: true},
		},
		Tabs: []state.Tab{
			{
				Number:    1,
				IsCurrent: true,
				Windows: []state.WindowRef{
					{Number: 1, BufferNumber: 1, BufferName: "main.go", IsCurrent: true, Modified: true},
					{Number: 2, BufferNumber: 2, BufferName: "util.go"},
				},
				Layout: state.Layout{Type: state.LayoutHorizontal, Description: "2 windows side by side"},
			},
		},
	}
}

func TestMarkCursor(t *testing.T) {
	tests := []struct {
		name string
		line string
		col  int
		want string
	}{
		{"start of line", "abcdef", 0, "[CURSOR]abcdef"},
		{"mid string", "abcdef", 3, "abc[CURSOR]def"},
		{"end of string", "abcdef", 6, "abcdef[CURSOR]"},
		{"past end clamps", "abc", 10, "abc[CURSOR]"},
		{"negative clamps", "abc", -1, "[CURSOR]abc"},
		{"empty line", "", 0, "[CURSOR]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkCursor(tt.line, tt.col); got != tt.want {
				t.Fatalf("MarkCursor(%q, %d) = %q, want %q", tt.line, tt.col, got, tt.want)
			}
		})
	}
}

func TestAssembleSortsBuffersUnresolvedLast(t *testing.T) {
	r := Assemble(sampleState())
	if len(r.Buffers) != 3 {
		t.Fatalf("len(Buffers) = %d, want 3", len(r.Buffers))
	}
	if r.Buffers[0].Number != 1 || r.Buffers[1].Number != 2 {
		t.Fatalf("buffer order = %d, %d, want 1, 2", r.Buffers[0].Number, r.Buffers[1].Number)
	}
	if r.Buffers[2].Err == "" {
		t.Fatal("unresolved buffer did not sort last")
	}
}

func TestAssembleDoesNotMutateInput(t *testing.T) {
	st := sampleState()
	first := st.Buffers[0].Number
	Assemble(st)
	if st.Buffers[0].Number != first {
		t.Fatal("Assemble() reordered the caller's buffer slice")
	}
}

func TestTextMarksCursorOnlyInFocusedWindow(t *testing.T) {
	text := Assemble(sampleState()).Text()

	if !strings.Contains(text, "abc[CURSOR]def") {
		t.Fatalf("text missing cursor marker at column offset:\n%s", text)
	}
	if strings.Count(text, "[CURSOR]") != 1 {
		t.Fatalf("cursor marker appears %d times, want 1:\n%s", strings.Count(text, "[CURSOR]"), text)
	}
}

func TestTextSectionsAndAnnotations(t *testing.T) {
	text := Assemble(sampleState()).Text()

	// Fixed section order.
	tabsIdx := strings.Index(text, "TABS")
	buffersIdx := strings.Index(text, "BUFFERS")
	windowsIdx := strings.Index(text, "WINDOWS")
	if tabsIdx < 0 || buffersIdx < 0 || windowsIdx < 0 {
		t.Fatalf("missing section header:\n%s", text)
	}
	if !(tabsIdx < buffersIdx && buffersIdx < windowsIdx) {
		t.Fatalf("sections out of order: tabs=%d buffers=%d windows=%d", tabsIdx, buffersIdx, windowsIdx)
	}

	for _, want := range []string{
		"Tab 1 (current)",
		"◫ horizontal",
		"main.go [+] (focused)",
		"(focused, keystroke target, modified)",
		"cursor: line 2, col 4",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}

	// The unfocused window is displayed but not a keystroke target.
	if strings.Count(text, "keystroke target") != 1 {
		t.Fatalf("keystroke target flagged %d times, want 1", strings.Count(text, "keystroke target"))
	}
}

func TestTextLineNumbersRightAligned(t *testing.T) {
	st := sampleState()
	st.Windows[0].Range = state.Range{Start: 98, End: 100, Radius: 1}
	st.Windows[0].Lines = []string{"x", "y", "z"}
	st.Windows[0].Cursor = state.Cursor{Line: 99, Col: 0}
	st.Windows[0].TotalLines = 100

	text := Assemble(st).Text()
	if !strings.Contains(text, " 98  x") {
		t.Fatalf("line 98 not right-aligned against width of 100:\n%s", text)
	}
	if !strings.Contains(text, "100  z") {
		t.Fatalf("line 100 missing:\n%s", text)
	}
}

func TestJSONRoundTripPreservesWindows(t *testing.T) {
	st := sampleState()
	r := Assemble(st)

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(back.Windows) != len(st.Windows) {
		t.Fatalf("round-trip windows = %d, want %d", len(back.Windows), len(st.Windows))
	}
	for i, w := range back.Windows {
		in := st.Windows[i]
		if w.Cursor != in.Cursor {
			t.Fatalf("window %d cursor = %+v, want %+v", i, w.Cursor, in.Cursor)
		}
		if w.BufferName != in.BufferName || w.BufferNumber != in.BufferNumber {
			t.Fatalf("window %d buffer = %q/%d, want %q/%d",
				i, w.BufferName, w.BufferNumber, in.BufferName, in.BufferNumber)
		}
	}
}

func TestTextAndJSONStayConsistent(t *testing.T) {
	r := Assemble(sampleState())
	text := r.Text()
	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, w := range back.Windows {
		if w.BufferName != "" && !strings.Contains(text, w.BufferName) {
			t.Fatalf("buffer %q present in JSON but absent from text", w.BufferName)
		}
	}
}
