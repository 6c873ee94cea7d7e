// Package editor defines the capability set the bridge needs from a running
// Neovim instance. *nvim.Nvim satisfies API directly; tests substitute a fake
// so nothing above this package ever needs a live editor process.
package editor

import (
	"github.com/neovim/go-client/nvim"
)

// API is the msgpack-RPC surface consumed by the bridge. Window, Buffer and
// Tabpage are go-client handle types (plain ints on the wire).
type API interface {
	// Liveness probe. Cheap; also yields the RPC channel id as the first
	// element of the result.
	APIInfo() ([]interface{}, error)

	// Windows and cursor.
	Windows() ([]nvim.Window, error)
	CurrentWindow() (nvim.Window, error)
	SetCurrentWindow(window nvim.Window) error
	WindowBuffer(window nvim.Window) (nvim.Buffer, error)
	WindowCursor(window nvim.Window) ([2]int, error)
	SetWindowCursor(window nvim.Window, pos [2]int) error
	WindowPosition(window nvim.Window) ([2]int, error)
	WindowWidth(window nvim.Window) (int, error)
	WindowHeight(window nvim.Window) (int, error)
	WindowNumber(window nvim.Window) (int, error)

	// Buffers.
	Buffers() ([]nvim.Buffer, error)
	BufferName(buffer nvim.Buffer) (string, error)
	BufferNumber(buffer nvim.Buffer) (int, error)
	BufferLineCount(buffer nvim.Buffer) (int, error)
	BufferLines(buffer nvim.Buffer, start, end int, strict bool) ([][]byte, error)
	IsBufferLoaded(buffer nvim.Buffer) (bool, error)
	BufferOption(buffer nvim.Buffer, name string, result interface{}) error

	// Tabpages.
	Tabpages() ([]nvim.Tabpage, error)
	CurrentTabpage() (nvim.Tabpage, error)
	TabpageWindows(tabpage nvim.Tabpage) ([]nvim.Window, error)
	TabpageNumber(tabpage nvim.Tabpage) (int, error)

	// Input and command execution.
	FeedKeys(keys, mode string, escapeCSI bool) error
	Command(cmd string) error
	Exec(src string, output bool) (string, error)

	// Raw request path, used as the line-range fallback and for autocmd
	// registration.
	ExecLua(code string, result interface{}, args ...interface{}) error

	// Change-notification plumbing.
	RegisterHandler(method string, fn interface{}) error
	Subscribe(event string) error

	Close() error
}

// Dial attaches to the editor's msgpack-RPC socket at addr. The returned
// client serves responses on an internal goroutine until Close.
func Dial(addr string) (API, error) {
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, err
	}
	return v, nil
}
