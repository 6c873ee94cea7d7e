package server

import (
	"github.com/nvtools/nvim-mcp/internal/editor"
	"github.com/nvtools/nvim-mcp/internal/timeout"
)

// changeAutocmdLua installs an autocmd that notifies this RPC channel on
// buffer and cursor changes. Re-running it replaces the previous group.
const changeAutocmdLua = `local chan, event = ...
local group = vim.api.nvim_create_augroup("NvimMcpStateChanged", { clear = true })
vim.api.nvim_create_autocmd({ "BufEnter", "CursorMoved", "CursorMovedI", "TextChanged", "TextChangedI" }, {
  group = group,
  callback = function()
    vim.rpcnotify(chan, event)
  end,
})
return true`

// watchChanges wires editor-side change events to MCP notifications for the
// given connection. Best-effort: any failure is logged and ignored; the
// bridge works without it.
func (s *Server) watchChanges(api editor.API) {
	s.mu.Lock()
	if s.watched == api {
		s.mu.Unlock()
		return
	}
	s.watched = api
	s.mu.Unlock()

	if err := api.RegisterHandler(changeEventMethod, func() {
		s.notifyStateChanged()
	}); err != nil {
		s.log.Debug("change handler registration failed", "err", err)
		return
	}
	if err := api.Subscribe(changeEventMethod); err != nil {
		s.log.Debug("change event subscription failed", "err", err)
	}

	info, err := timeout.Do(s.call, "api info for channel id", api.APIInfo)
	if err != nil || len(info) == 0 {
		s.log.Debug("channel id unavailable, change forwarding disabled", "err", err)
		return
	}
	chanID, ok := asInt(info[0])
	if !ok {
		s.log.Debug("unexpected channel id type, change forwarding disabled")
		return
	}

	if err := timeout.Run(s.call, "registering change autocmd", func() error {
		var installed bool
		return api.ExecLua(changeAutocmdLua, &installed, chanID, changeEventMethod)
	}); err != nil {
		s.log.Debug("change autocmd registration failed", "err", err)
	}
}

// asInt normalizes the numeric types the msgpack decoder may produce for the
// channel id.
func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
