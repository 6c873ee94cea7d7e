// Package editortest provides an in-memory editor.API for tests, so no test
// needs a live editor process.
package editortest

import (
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"
)

// Window describes one scripted window.
type Window struct {
	ID     nvim.Window
	Number int
	Buffer nvim.Buffer
	Cursor [2]int // (1-based line, 0-based col)
	Row    int
	Col    int
	Width  int
	Height int
}

// Buffer describes one scripted buffer.
type Buffer struct {
	ID       nvim.Buffer
	Number   int
	Name     string
	Lines    []string
	Loaded   bool
	Modified bool
}

// Tab describes one scripted tabpage.
type Tab struct {
	ID      nvim.Tabpage
	Number  int
	Windows []nvim.Window
}

// Fake is a scripted editor.API. Errors are injected per method name, or per
// method and entity with a "Method:id" key; HangAll blocks every call until
// the fake is released, for timeout tests.
type Fake struct {
	mu sync.Mutex

	Win        []Window
	Buf        []Buffer
	Tabs       []Tab
	Current    nvim.Window
	CurrentTab nvim.Tabpage
	Channel    int64

	Errs    map[string]error
	hang    chan struct{}
	hangAll bool

	FedKeys     []string
	ExecCalls   []string
	ExecOutput  string
	LuaCalls    []string
	Handlers    map[string]interface{}
	Subscribed  []string
	CloseCalled bool
}

// New returns an empty fake with a single-window, single-buffer world.
func New() *Fake {
	return &Fake{
		Win:        []Window{{ID: 1000, Number: 1, Buffer: 1, Cursor: [2]int{1, 0}, Width: 80, Height: 24}},
		Buf:        []Buffer{{ID: 1, Number: 1, Name: "", Lines: []string{""}, Loaded: true}},
		Tabs:       []Tab{{ID: 1, Number: 1, Windows: []nvim.Window{1000}}},
		Current:    1000,
		CurrentTab: 1,
		Channel:    7,
		Errs:       map[string]error{},
		Handlers:   map[string]interface{}{},
	}
}

// Fail injects an error for a method. key is either the method name
// ("WindowCursor") or method plus entity id ("WindowCursor:1001").
func (f *Fake) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[key] = err
}

// HangAll makes every subsequent call block until Release.
func (f *Fake) HangAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangAll = true
	f.hang = make(chan struct{})
}

// Release unblocks calls stuck in HangAll.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangAll = false
	if f.hang != nil {
		close(f.hang)
		f.hang = nil
	}
}

// gate returns an injected error for the call, blocking first if HangAll is
// active.
func (f *Fake) gate(method string, id int) error {
	f.mu.Lock()
	hang := f.hang
	hangAll := f.hangAll
	err, ok := f.Errs[fmt.Sprintf("%s:%d", method, id)]
	if !ok {
		err = f.Errs[method]
	}
	f.mu.Unlock()

	if hangAll && hang != nil {
		<-hang
	}
	return err
}

func (f *Fake) window(id nvim.Window) (*Window, error) {
	for i := range f.Win {
		if f.Win[i].ID == id {
			return &f.Win[i], nil
		}
	}
	return nil, fmt.Errorf("invalid window id: %d", id)
}

func (f *Fake) buffer(id nvim.Buffer) (*Buffer, error) {
	for i := range f.Buf {
		if f.Buf[i].ID == id {
			return &f.Buf[i], nil
		}
	}
	return nil, fmt.Errorf("invalid buffer id: %d", id)
}

func (f *Fake) APIInfo() ([]interface{}, error) {
	if err := f.gate("APIInfo", 0); err != nil {
		return nil, err
	}
	return []interface{}{f.Channel, map[string]interface{}{}}, nil
}

func (f *Fake) Windows() ([]nvim.Window, error) {
	if err := f.gate("Windows", 0); err != nil {
		return nil, err
	}
	out := make([]nvim.Window, len(f.Win))
	for i, w := range f.Win {
		out[i] = w.ID
	}
	return out, nil
}

func (f *Fake) CurrentWindow() (nvim.Window, error) {
	if err := f.gate("CurrentWindow", 0); err != nil {
		return 0, err
	}
	return f.Current, nil
}

func (f *Fake) SetCurrentWindow(window nvim.Window) error {
	if err := f.gate("SetCurrentWindow", int(window)); err != nil {
		return err
	}
	f.Current = window
	return nil
}

func (f *Fake) WindowBuffer(window nvim.Window) (nvim.Buffer, error) {
	if err := f.gate("WindowBuffer", int(window)); err != nil {
		return 0, err
	}
	w, err := f.window(window)
	if err != nil {
		return 0, err
	}
	return w.Buffer, nil
}

func (f *Fake) WindowCursor(window nvim.Window) ([2]int, error) {
	if err := f.gate("WindowCursor", int(window)); err != nil {
		return [2]int{}, err
	}
	w, err := f.window(window)
	if err != nil {
		return [2]int{}, err
	}
	return w.Cursor, nil
}

func (f *Fake) SetWindowCursor(window nvim.Window, pos [2]int) error {
	if err := f.gate("SetWindowCursor", int(window)); err != nil {
		return err
	}
	w, err := f.window(window)
	if err != nil {
		return err
	}
	w.Cursor = pos
	return nil
}

func (f *Fake) WindowPosition(window nvim.Window) ([2]int, error) {
	if err := f.gate("WindowPosition", int(window)); err != nil {
		return [2]int{}, err
	}
	w, err := f.window(window)
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{w.Row, w.Col}, nil
}

func (f *Fake) WindowWidth(window nvim.Window) (int, error) {
	if err := f.gate("WindowWidth", int(window)); err != nil {
		return 0, err
	}
	w, err := f.window(window)
	if err != nil {
		return 0, err
	}
	return w.Width, nil
}

func (f *Fake) WindowHeight(window nvim.Window) (int, error) {
	if err := f.gate("WindowHeight", int(window)); err != nil {
		return 0, err
	}
	w, err := f.window(window)
	if err != nil {
		return 0, err
	}
	return w.Height, nil
}

func (f *Fake) WindowNumber(window nvim.Window) (int, error) {
	if err := f.gate("WindowNumber", int(window)); err != nil {
		return 0, err
	}
	w, err := f.window(window)
	if err != nil {
		return 0, err
	}
	return w.Number, nil
}

func (f *Fake) Buffers() ([]nvim.Buffer, error) {
	if err := f.gate("Buffers", 0); err != nil {
		return nil, err
	}
	out := make([]nvim.Buffer, len(f.Buf))
	for i, b := range f.Buf {
		out[i] = b.ID
	}
	return out, nil
}

func (f *Fake) BufferName(buffer nvim.Buffer) (string, error) {
	if err := f.gate("BufferName", int(buffer)); err != nil {
		return "", err
	}
	b, err := f.buffer(buffer)
	if err != nil {
		return "", err
	}
	return b.Name, nil
}

func (f *Fake) BufferNumber(buffer nvim.Buffer) (int, error) {
	if err := f.gate("BufferNumber", int(buffer)); err != nil {
		return 0, err
	}
	b, err := f.buffer(buffer)
	if err != nil {
		return 0, err
	}
	return b.Number, nil
}

func (f *Fake) BufferLineCount(buffer nvim.Buffer) (int, error) {
	if err := f.gate("BufferLineCount", int(buffer)); err != nil {
		return 0, err
	}
	b, err := f.buffer(buffer)
	if err != nil {
		return 0, err
	}
	return len(b.Lines), nil
}

func (f *Fake) sliceLines(buffer nvim.Buffer, start, end int, strict bool) ([]string, error) {
	b, err := f.buffer(buffer)
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("index out of bounds: start %d end %d", start, end)
	}
	if end > len(b.Lines) {
		if strict {
			return nil, fmt.Errorf("index out of bounds: end %d", end)
		}
		end = len(b.Lines)
	}
	if start > len(b.Lines) {
		start = len(b.Lines)
	}
	return b.Lines[start:end], nil
}

func (f *Fake) BufferLines(buffer nvim.Buffer, start, end int, strict bool) ([][]byte, error) {
	if err := f.gate("BufferLines", int(buffer)); err != nil {
		return nil, err
	}
	lines, err := f.sliceLines(buffer, start, end, strict)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out, nil
}

func (f *Fake) IsBufferLoaded(buffer nvim.Buffer) (bool, error) {
	if err := f.gate("IsBufferLoaded", int(buffer)); err != nil {
		return false, err
	}
	b, err := f.buffer(buffer)
	if err != nil {
		return false, err
	}
	return b.Loaded, nil
}

func (f *Fake) BufferOption(buffer nvim.Buffer, name string, result interface{}) error {
	if err := f.gate("BufferOption", int(buffer)); err != nil {
		return err
	}
	b, err := f.buffer(buffer)
	if err != nil {
		return err
	}
	if name != "modified" {
		return fmt.Errorf("unknown option: %s", name)
	}
	dst, ok := result.(*bool)
	if !ok {
		return fmt.Errorf("wrong result type for option %s", name)
	}
	*dst = b.Modified
	return nil
}

func (f *Fake) Tabpages() ([]nvim.Tabpage, error) {
	if err := f.gate("Tabpages", 0); err != nil {
		return nil, err
	}
	out := make([]nvim.Tabpage, len(f.Tabs))
	for i, t := range f.Tabs {
		out[i] = t.ID
	}
	return out, nil
}

func (f *Fake) CurrentTabpage() (nvim.Tabpage, error) {
	if err := f.gate("CurrentTabpage", 0); err != nil {
		return 0, err
	}
	return f.CurrentTab, nil
}

func (f *Fake) TabpageWindows(tabpage nvim.Tabpage) ([]nvim.Window, error) {
	if err := f.gate("TabpageWindows", int(tabpage)); err != nil {
		return nil, err
	}
	for _, t := range f.Tabs {
		if t.ID == tabpage {
			return t.Windows, nil
		}
	}
	return nil, fmt.Errorf("invalid tabpage id: %d", tabpage)
}

func (f *Fake) TabpageNumber(tabpage nvim.Tabpage) (int, error) {
	if err := f.gate("TabpageNumber", int(tabpage)); err != nil {
		return 0, err
	}
	for _, t := range f.Tabs {
		if t.ID == tabpage {
			return t.Number, nil
		}
	}
	return 0, fmt.Errorf("invalid tabpage id: %d", tabpage)
}

func (f *Fake) FeedKeys(keys, mode string, escapeCSI bool) error {
	if err := f.gate("FeedKeys", 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FedKeys = append(f.FedKeys, keys)
	return nil
}

func (f *Fake) Command(cmd string) error {
	if err := f.gate("Command", 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecCalls = append(f.ExecCalls, cmd)
	return nil
}

func (f *Fake) Exec(src string, output bool) (string, error) {
	if err := f.gate("Exec", 0); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecCalls = append(f.ExecCalls, src)
	return f.ExecOutput, nil
}

// ExecLua understands the line-range fallback request and serves it from the
// scripted buffer contents. Other code strings succeed and are recorded.
func (f *Fake) ExecLua(code string, result interface{}, args ...interface{}) error {
	if err := f.gate("ExecLua", 0); err != nil {
		return err
	}
	f.mu.Lock()
	f.LuaCalls = append(f.LuaCalls, code)
	f.mu.Unlock()

	dst, ok := result.(*[]string)
	if !ok {
		return nil
	}
	if len(args) != 4 {
		return fmt.Errorf("line-range request wants 4 args, got %d", len(args))
	}
	bufID, ok1 := args[0].(int)
	start, ok2 := args[1].(int)
	end, ok3 := args[2].(int)
	strict, ok4 := args[3].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return fmt.Errorf("line-range request has wrong-typed arguments: %v", args)
	}
	lines, err := f.sliceLines(nvim.Buffer(bufID), start, end, strict)
	if err != nil {
		return err
	}
	*dst = append([]string(nil), lines...)
	return nil
}

func (f *Fake) RegisterHandler(method string, fn interface{}) error {
	if err := f.gate("RegisterHandler", 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Handlers[method] = fn
	return nil
}

func (f *Fake) Subscribe(event string) error {
	if err := f.gate("Subscribe", 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscribed = append(f.Subscribed, event)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalled = true
	return nil
}
