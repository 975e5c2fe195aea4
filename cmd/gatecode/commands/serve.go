package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gatecode-ai/gatecode/internal/agent"
	"github.com/gatecode-ai/gatecode/internal/config"
	"github.com/gatecode-ai/gatecode/internal/formatter"
	"github.com/gatecode-ai/gatecode/internal/logging"
	"github.com/gatecode-ai/gatecode/internal/mcp"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
	"github.com/gatecode-ai/gatecode/internal/server"
	"github.com/gatecode-ai/gatecode/internal/storage"
	"github.com/gatecode-ai/gatecode/internal/tool"
	"github.com/gatecode-ai/gatecode/internal/vcs"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gate server",
	Long: `Start gatecode as a server exposing the permission, mode, and tool
endpoints plus the SSE event stream over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	// Local .env files may carry GATECODE_* overrides; absence is fine.
	_ = godotenv.Load(filepath.Join(workDir, ".env"))

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty || logPretty,
	})
	logging.Info().Str("version", Version).Str("workDir", workDir).Msg("starting gatecode")

	modes, perms, registry, err := buildCore(workDir, cfg, paths)
	if err != nil {
		return err
	}

	// Connect MCP servers and register their tools; each discovered tool is
	// unclassified, so restrictive modes never expose it.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var mcpClient *mcp.Client
	if len(cfg.MCP) > 0 {
		mcpClient = mcp.NewClient()
		mcpClient.ConnectAll(ctx, cfg.MCP)
		mcp.RegisterTools(mcpClient, registry)
		defer mcpClient.Close()
	}

	// Run configured formatters over files the write and edit tools touch.
	formatters := formatter.NewManager(workDir, cfg.Formatter)
	formatters.Watch()
	defer formatters.Close()

	// Announce branch switches so clients can re-anchor their view.
	if branches, err := vcs.NewBranchWatcher(workDir); err != nil {
		logging.Warn().Err(err).Msg("branch watcher unavailable")
	} else if branches != nil {
		branches.Start()
		defer branches.Stop()
	}

	// Watch the project config for hot reloads of the gate parameters.
	configPath := filepath.Join(workDir, "gatecode.json")
	if _, err := os.Stat(configPath); err == nil {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			if m, err := mode.Parse(next.Mode); err == nil {
				modes.Set(m)
			}
			formatters.Reload(next.Formatter)
		})
		if err == nil {
			watcher.Start()
			defer watcher.Stop()
		} else {
			logging.Warn().Err(err).Msg("config watcher unavailable")
		}
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, perms, modes, registry, mcpClient)

	go func() {
		logging.Info().Int("port", servePort).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildCore assembles the gate: mode controller, permission broker, agent
// registry, and the tool registry with the built-ins.
func buildCore(workDir string, cfg *config.Config, paths *config.Paths) (*mode.Controller, *permission.Broker, *tool.Registry, error) {
	modes := mode.NewController(
		mode.WithDocsDir(cfg.DocsDir),
		mode.WithScratchFile(cfg.ScratchFile),
	)
	if m, err := mode.Parse(cfg.Mode); err == nil {
		modes.Set(m)
	} else {
		logging.Warn().Str("mode", cfg.Mode).Msg("unknown configured mode, staying in auto")
	}

	perms := permission.NewBroker()
	if cfg.Express {
		perms.Express().Enable()
	}
	if len(cfg.Permission) > 0 {
		defaults := make(map[permission.Kind]permission.Action, len(cfg.Permission))
		for kind, action := range cfg.Permission {
			switch a := permission.Action(action); a {
			case permission.ActionAllow, permission.ActionDeny, permission.ActionAsk:
				defaults[permission.Kind(kind)] = a
			default:
				logging.Warn().Str("kind", kind).Str("action", action).Msg("unknown permission action, asking")
			}
		}
		perms.SetDefaults(defaults)
	}

	agents := agent.NewRegistry()
	agentDir := cfg.AgentDir
	if agentDir == "" {
		agentDir = paths.AgentPath()
	}
	if err := agents.LoadDir(agentDir); err != nil {
		logging.Warn().Str("dir", agentDir).Err(err).Msg("custom agents not loaded")
	}

	store := storage.New(paths.StoragePath())

	registry := tool.DefaultRegistry(tool.Deps{
		WorkDir: workDir,
		Perms:   perms,
		Modes:   modes,
		Store:   store,
		Agents:  agents,
	})

	return modes, perms, registry, nil
}
