// Package conn owns the single connection handle to the remote editor. It
// validates socket presence, attaches under a deadline, liveness-checks, and
// resets. No other component stores or mutates the handle.
package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvtools/nvim-mcp/internal/editor"
	"github.com/nvtools/nvim-mcp/internal/timeout"
	"pkt.systems/pslog"
)

// Options configure a Manager. Zero values take defaults.
type Options struct {
	// AttachTimeout bounds the socket attach. Default 2s.
	AttachTimeout time.Duration
	// ProbeTimeout bounds the liveness probe. Default 1s.
	ProbeTimeout time.Duration
	// Dial is the attach function; defaults to editor.Dial. Tests inject a
	// fake here.
	Dial func(addr string) (editor.API, error)
	Log  pslog.Logger
}

// Manager holds the one editor connection. All access to the handle goes
// through it; the handle is written only here.
type Manager struct {
	socket string
	attach time.Duration
	probe  time.Duration
	dial   func(addr string) (editor.API, error)
	log    pslog.Logger

	mu     sync.Mutex
	client editor.API
}

// New creates a Manager for the given normalized socket path.
func New(socket string, opts Options) *Manager {
	if opts.AttachTimeout <= 0 {
		opts.AttachTimeout = 2 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Second
	}
	if opts.Dial == nil {
		opts.Dial = editor.Dial
	}
	if opts.Log == nil {
		opts.Log = pslog.Ctx(context.Background())
	}
	return &Manager{
		socket: socket,
		attach: opts.AttachTimeout,
		probe:  opts.ProbeTimeout,
		dial:   opts.Dial,
		log:    opts.Log,
	}
}

// Socket returns the socket path the manager attaches to.
func (m *Manager) Socket() string { return m.socket }

// Connect attempts to attach. It fails fast (no side effect) when the socket
// file is absent and never lets an error escape: failure is false plus a
// logged diagnostic.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked() == nil
}

func (m *Manager) connectLocked() error {
	if m.client != nil {
		return nil
	}

	ok, err := socketExists(m.socket)
	if err != nil {
		m.log.Warn("editor socket check failed", "socket", m.socket, "err", err)
		return &ConnectError{Path: m.socket, Err: err}
	}
	if !ok {
		serr := &SocketMissingError{Path: m.socket}
		m.log.Warn("editor socket missing", "socket", m.socket)
		return serr
	}

	client, err := timeout.Do(m.attach, fmt.Sprintf("attaching to editor at %s", m.socket), func() (editor.API, error) {
		return m.dial(m.socket)
	})
	if err != nil {
		m.log.Warn("editor attach failed", "socket", m.socket, "err", err)
		return &ConnectError{Path: m.socket, Err: err}
	}

	m.client = client
	m.log.Info("attached to editor", "socket", m.socket)
	return nil
}

// IsConnected reports whether a handle exists, independent of liveness.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// IsAlive issues a cheap API-info probe under the probe deadline. False on
// any failure, including timeout. Side-effect-free.
func (m *Manager) IsAlive() bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return false
	}

	_, err := timeout.Do(m.probe, "editor liveness probe", func() ([]interface{}, error) {
		return client.APIInfo()
	})
	if err != nil {
		m.log.Debug("liveness probe failed", "socket", m.socket, "err", err)
		return false
	}
	return true
}

// Reset drops the stored handle unconditionally. Idempotent. The old handle
// is closed in the background so a wedged transport cannot stall the caller.
func (m *Manager) Reset() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		go func() { _ = client.Close() }()
		m.log.Info("editor connection reset", "socket", m.socket)
	}
}

// Client returns the current handle, or nil while disconnected. Callers must
// go through Ensure first; the dispatcher enforces that ordering.
func (m *Manager) Client() editor.API {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Ensure returns a live client, running the recovery protocol: connect when
// absent, reset and connect again when present but stale. A second failure is
// terminal for the request; the next request starts the cycle over.
func (m *Manager) Ensure() (editor.API, error) {
	if !m.IsConnected() {
		if err := m.connect(); err != nil {
			return nil, err
		}
		return m.Client(), nil
	}

	if !m.IsAlive() {
		m.log.Warn("editor connection stale, reconnecting", "socket", m.socket)
		m.Reset()
		if err := m.connect(); err != nil {
			return nil, &StaleError{Path: m.socket, Err: err}
		}
	}
	return m.Client(), nil
}

func (m *Manager) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}
