package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neovim/go-client/nvim"
	"github.com/nvtools/nvim-mcp/internal/config"
	"github.com/nvtools/nvim-mcp/internal/editor"
	"github.com/nvtools/nvim-mcp/internal/editor/editortest"
	"github.com/nvtools/nvim-mcp/internal/report"
	"pkt.systems/pslog"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		MinLevel: pslog.InfoLevel,
	})
}

func listenSocket(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvim.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listening on %s: %v", path, err)
	}
	t.Cleanup(func() { ln.Close() })
	return path
}

func newTestServer(t *testing.T, socket string, dial func(string) (editor.API, error)) *Server {
	t.Helper()
	return New(Options{
		Settings: config.Settings{
			Socket:        socket,
			AttachTimeout: 200 * time.Millisecond,
			CallTimeout:   200 * time.Millisecond,
			ProbeTimeout:  100 * time.Millisecond,
			IdleTimeout:   time.Hour,
			ContextRadius: 10,
		},
		Version: "test",
		Log:     testLogger(),
		Dial:    dial,
	})
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestReadStateSocketMissingReturnsRemediation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sock")
	s := newTestServer(t, path, func(string) (editor.API, error) {
		t.Fatal("dial must not be reached when the socket file is missing")
		return nil, nil
	})

	res, err := s.handleReadState(context.Background(), toolRequest("read_state", nil))
	if err != nil {
		t.Fatalf("handleReadState() fault = %v, want structured error result", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want true for missing socket")
	}
	text := resultText(t, res)
	if !strings.Contains(text, path) {
		t.Fatalf("error %q missing socket path", text)
	}
	if !strings.Contains(text, "nvim --listen") {
		t.Fatalf("error %q missing remote-listen remediation", text)
	}
}

func TestReadStateReturnsTextReport(t *testing.T) {
	fake := editortest.New()
	fake.Buf[0].Name = "notes.txt"
	fake.Buf[0].Lines = []string{"hello", "world"}

	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	res, err := s.handleReadState(context.Background(), toolRequest("read_state", nil))
	if err != nil {
		t.Fatalf("handleReadState() fault = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(t, res))
	}
	text := resultText(t, res)
	for _, want := range []string{"TABS", "BUFFERS", "WINDOWS", "notes.txt"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestReadStateJSONFormat(t *testing.T) {
	fake := editortest.New()
	fake.Buf[0].Name = "notes.txt"

	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	res, err := s.handleReadState(context.Background(),
		toolRequest("read_state", map[string]any{"format": "json"}))
	if err != nil {
		t.Fatalf("handleReadState() fault = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(t, res))
	}

	var rep report.Report
	if err := json.Unmarshal([]byte(resultText(t, res)), &rep); err != nil {
		t.Fatalf("JSON output did not parse: %v", err)
	}
	if len(rep.Windows) != 1 {
		t.Fatalf("len(Windows) = %d, want 1", len(rep.Windows))
	}
	if rep.Windows[0].BufferName != "notes.txt" {
		t.Fatalf("BufferName = %q, want notes.txt", rep.Windows[0].BufferName)
	}
}

func TestSendKeysPassesThroughByteForByte(t *testing.T) {
	fake := editortest.New()
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	keys := "iHello\x1b"
	res, err := s.handleSendKeys(context.Background(),
		toolRequest("send_keys", map[string]any{"keys": keys}))
	if err != nil {
		t.Fatalf("handleSendKeys() fault = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(t, res))
	}
	if len(fake.FedKeys) != 1 || fake.FedKeys[0] != keys {
		t.Fatalf("FedKeys = %q, want exactly %q", fake.FedKeys, keys)
	}
}

func TestSendKeysRequiresKeysArgument(t *testing.T) {
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) {
		return editortest.New(), nil
	})

	res, err := s.handleSendKeys(context.Background(), toolRequest("send_keys", nil))
	if err != nil {
		t.Fatalf("handleSendKeys() fault = %v", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false for missing keys argument")
	}
}

func TestSendCommandCapturesOutput(t *testing.T) {
	fake := editortest.New()
	fake.ExecOutput = "Hello"
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	res, err := s.handleSendCommand(context.Background(),
		toolRequest("send_command", map[string]any{"command": "w /tmp/out.txt"}))
	if err != nil {
		t.Fatalf("handleSendCommand() fault = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "Hello" {
		t.Fatalf("output = %q, want %q", got, "Hello")
	}
	if len(fake.ExecCalls) != 1 || fake.ExecCalls[0] != "w /tmp/out.txt" {
		t.Fatalf("ExecCalls = %q, want the command verbatim", fake.ExecCalls)
	}
}

func TestSendCommandTimesOutAndResets(t *testing.T) {
	fake := editortest.New()
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	// Attach first so the hang only affects the command call.
	if _, err := s.ensure(); err != nil {
		t.Fatalf("ensure() error = %v", err)
	}
	fake.HangAll()
	defer fake.Release()

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, _ := s.handleSendCommand(context.Background(),
			toolRequest("send_command", map[string]any{"command": "sleep 100"}))
		done <- res
	}()

	select {
	case res := <-done:
		if !res.IsError {
			t.Fatal("IsError = false for timed-out command")
		}
		if s.mgr.IsConnected() {
			t.Fatal("connection not reset after per-call timeout")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handleSendCommand() hung past the per-call budget")
	}
}

func TestReadStateRecoversFromStaleConnection(t *testing.T) {
	stale := editortest.New()
	stale.Fail("APIInfo", errors.New("stale"))
	healthy := editortest.New()
	healthy.Buf[0].Name = "fresh.txt"

	dials := 0
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) {
		dials++
		if dials == 1 {
			return stale, nil
		}
		return healthy, nil
	})

	// Seed the stale connection, then issue a request against it.
	if !s.mgr.Connect() {
		t.Fatal("Connect() = false")
	}
	res, err := s.handleReadState(context.Background(), toolRequest("read_state", nil))
	if err != nil {
		t.Fatalf("handleReadState() fault = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true after recovery: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "fresh.txt") {
		t.Fatal("report did not come from the recovered connection")
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want 2", dials)
	}
}

func TestEnsureRegistersChangeForwarding(t *testing.T) {
	fake := editortest.New()
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	if _, err := s.ensure(); err != nil {
		t.Fatalf("ensure() error = %v", err)
	}
	if _, ok := fake.Handlers[changeEventMethod]; !ok {
		t.Fatal("change event handler not registered")
	}
	if len(fake.LuaCalls) == 0 {
		t.Fatal("change autocmd not installed")
	}

	// A second ensure on the same connection must not re-register.
	calls := len(fake.LuaCalls)
	if _, err := s.ensure(); err != nil {
		t.Fatalf("ensure() error = %v", err)
	}
	if len(fake.LuaCalls) != calls {
		t.Fatal("watchChanges re-ran for an already-watched connection")
	}
}

func TestStateResourceMatchesReadState(t *testing.T) {
	fake := editortest.New()
	fake.Buf[0].Name = "notes.txt"
	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })

	contents, err := s.handleStateResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleStateResource() error = %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents type = %T, want TextResourceContents", contents[0])
	}
	if text.URI != stateResourceURI {
		t.Fatalf("URI = %q, want %q", text.URI, stateResourceURI)
	}
	if !strings.Contains(text.Text, "notes.txt") {
		t.Fatal("resource text missing buffer name")
	}
}

func TestWorldWithSplitsReportsLayout(t *testing.T) {
	fake := editortest.New()
	fake.Buf = []editortest.Buffer{
		{ID: 1, Number: 1, Name: "a.go", Lines: []string{"a"}, Loaded: true},
		{ID: 2, Number: 2, Name: "b.go", Lines: []string{"b"}, Loaded: true},
	}
	fake.Win = []editortest.Window{
		{ID: 1000, Number: 1, Buffer: 1, Cursor: [2]int{1, 0}, Row: 0, Col: 0, Width: 80, Height: 12},
		{ID: 1001, Number: 2, Buffer: 2, Cursor: [2]int{1, 0}, Row: 20, Col: 0, Width: 80, Height: 12},
	}
	fake.Tabs = []editortest.Tab{{ID: 1, Number: 1, Windows: []nvim.Window{1000, 1001}}}

	s := newTestServer(t, listenSocket(t), func(string) (editor.API, error) { return fake, nil })
	res, err := s.handleReadState(context.Background(), toolRequest("read_state", nil))
	if err != nil {
		t.Fatalf("handleReadState() fault = %v", err)
	}
	if !strings.Contains(resultText(t, res), "vertical") {
		t.Fatalf("report missing vertical layout:\n%s", resultText(t, res))
	}
}
