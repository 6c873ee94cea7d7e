package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvtools/nvim-mcp/internal/config"
	"github.com/nvtools/nvim-mcp/internal/paths"
	"github.com/nvtools/nvim-mcp/internal/server"
	"pkt.systems/pslog"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	var (
		socketFlag string
		configFlag string
	)

	root := &cobra.Command{
		Use:           "nvim-mcp",
		Short:         "MCP stdio server bridging AI agents to a running Neovim",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, socketFlag, configFlag)
		},
	}

	root.PersistentFlags().StringVar(&socketFlag, "socket", "",
		"path to the editor's RPC socket (nvim --listen <path>)")
	root.PersistentFlags().StringVar(&configFlag, "config", "",
		"path to config.toml (default "+paths.ConfigFile()+")")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio (the default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, socketFlag, configFlag)
		},
	}
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nvim-mcp %s\n", version)
		},
	})

	return root
}

// resolveSettings layers socket resolution: flag over config file over the
// conventional NVIM_LISTEN_ADDRESS environment variable.
func resolveSettings(socketFlag, configFlag string) (config.Settings, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFrom(configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Settings{}, err
	}

	settings, err := cfg.Resolve()
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}

	socket := settings.Socket
	if socketFlag != "" {
		socket = socketFlag
	}
	if socket == "" {
		socket = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
	if socket == "" {
		return config.Settings{}, fmt.Errorf("no editor socket configured: pass --socket, set socket in %s, or export NVIM_LISTEN_ADDRESS", paths.ConfigFile())
	}

	normalized, err := paths.NormalizeSocket(socket)
	if err != nil {
		return config.Settings{}, err
	}
	settings.Socket = normalized
	return settings, nil
}

func serve(cmd *cobra.Command, socketFlag, configFlag string) error {
	ctx := cmd.Context()
	logger := pslog.Ctx(ctx)

	settings, err := resolveSettings(socketFlag, configFlag)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Settings: settings,
		Version:  version,
		Log:      logger,
	})
	return srv.Serve(ctx)
}
