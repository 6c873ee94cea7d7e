package conn

import "fmt"

// SocketMissingError reports that the editor socket file does not exist at
// connect time. The message carries the exact listen invocation the user
// needs to run.
type SocketMissingError struct {
	Path string
}

func (e *SocketMissingError) Error() string {
	return fmt.Sprintf("editor socket %s does not exist; start the editor with: nvim --listen %s", e.Path, e.Path)
}

// ConnectError reports a failed attach: the remote was not listening, refused
// the connection, or did not complete the handshake within budget.
type ConnectError struct {
	Path string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to editor at %s: %v (expected a running editor started with: nvim --listen %s)", e.Path, e.Err, e.Path)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// StaleError reports that a handle existed but the liveness probe failed and
// the reset+reconnect cycle could not restore it.
type StaleError struct {
	Path string
	Err  error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("editor connection at %s went stale and reconnecting failed: %v", e.Path, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }
