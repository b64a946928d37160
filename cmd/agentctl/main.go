// Command agentctl is the CLI surface described in the host's external
// interfaces: session lifecycle, agent/model switching, pin management,
// and an interactive chat loop. Grounded on the teacher's root main.go
// (flag-parsed entry point wiring config, store, agent, and tui together)
// but rebuilt on cobra's command tree, matching the pack's broader
// convention for multi-subcommand CLIs.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/corehost/agentcore/internal/agentmgr"
	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/controller"
	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/hostconfig"
	"github.com/corehost/agentcore/internal/hostlog"
	"github.com/corehost/agentcore/internal/mcpsup"
	"github.com/corehost/agentcore/internal/metrics"
	"github.com/corehost/agentcore/internal/modelclient/anthropic"
	"github.com/corehost/agentcore/internal/runtime"
	"github.com/corehost/agentcore/internal/scheduler"
	"github.com/corehost/agentcore/internal/sessionstore"
	"github.com/corehost/agentcore/internal/settings"
	"github.com/corehost/agentcore/internal/tokens"
	"github.com/corehost/agentcore/internal/toolregistry"
	"github.com/corehost/agentcore/internal/tools"
)

// Exit codes per the host's external-interface contract: 0 success, 2 user
// error (bad args, unknown session/agent), 3 internal/storage failure.
const (
	exitOK        = 0
	exitUserError = 2
	exitInternal  = 3
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	// cobra already prints the error; this just maps into the host's
	// exit-code contract rather than cobra's default of 1.
	if _, ok := err.(userError); ok {
		return exitUserError
	}
	return exitInternal
}

type userError struct{ error }

type host struct {
	dirs     hostconfig.Dirs
	prefs    hostconfig.Preferences
	log      *hostlog.Logger
	settings *settings.Store
	sessions *sessionstore.Store
	agents   *agentmgr.Manager
	tools    *toolregistry.Registry
	mcp      *mcpsup.Supervisor
	bus      *bus.Bus
	ctrl         *controller.Controller
	metrics      *metrics.Registry
	scheduler    *scheduler.Scheduler
	agentWatcher *fsnotify.Watcher
}

func openHost() (*host, error) {
	dirs, err := hostconfig.EnsureDirs()
	if err != nil {
		return nil, err
	}
	_ = hostconfig.MigrateLegacy(dirs.Legacy, dirs.Data)

	prefs, err := hostconfig.Load(dirs.Config)
	if err != nil {
		return nil, err
	}
	log := hostlog.Open(dirs.State)

	settingsDB, err := sql.Open("sqlite", dirs.Data+"/settings.db?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, err
	}
	st, err := settings.NewFromDB(settingsDB)
	if err != nil {
		return nil, err
	}

	sessions, err := sessionstore.Open(dirs.Data+"/sessions.db", prefs.MaxSessions)
	if err != nil {
		return nil, err
	}

	agents, err := agentmgr.New(st, "claude-sonnet-4", agentmgr.DefaultBuiltins())
	if err != nil {
		return nil, err
	}
	agentsDir := dirs.Config + "/agents"
	_ = os.MkdirAll(agentsDir, 0o755)
	_ = agents.LoadDir(agentsDir)
	agentWatcher := watchAgentsDir(agentsDir, agents, log)

	toolsReg := toolregistry.New()
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := tools.RegisterBuiltins(toolsReg, wd, sessions); err != nil {
		return nil, err
	}
	mcpInitTimeout := time.Duration(prefs.MCPInitTimeoutMillis) * time.Millisecond
	mcp := mcpsup.New(mcpInitTimeout, log)
	b := bus.New(256)

	m := metrics.New(prometheus.DefaultRegisterer)
	toolsReg.SetMetrics(m)
	mcp.SetMetrics(m)
	b.SetMetrics(m)

	client := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))
	rt := runtime.New(toolsReg, client, b, log, runtime.Config{
		MaxParallelTools: prefs.MaxParallelTools,
		MaxNestingDepth:  prefs.MaxNestingDepth,
		WorkDir:          wd,
	})
	rt.SetMetrics(m)
	if err := rt.RegisterCheckpointRestore(toolsReg); err != nil {
		return nil, err
	}

	ctrl := &controller.Controller{
		Agents:      agents,
		Settings:    st,
		Sessions:    sessions,
		Tools:       toolsReg,
		MCP:         mcp,
		Runtime:     rt,
		Bus:         b,
		TitleClient: client,
		TitleModel:  "claude-haiku-4-5-20251001",
	}

	if err := ctrl.RegisterInvokeAgent(); err != nil {
		return nil, err
	}

	entries, _ := mcpsup.LoadMergedConfig(mcpsup.UserConfigPath(dirs.Config), mcpsup.ProjectConfigPath("."))
	mcp.StartAll(context.Background(), entries)
	_ = ctrl.SyncMCPTools()

	sched := scheduler.New(sessions, toolsReg, log, scheduler.DefaultInterval)
	sched.Start(context.Background())

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe("127.0.0.1:9095", mux)
	}()

	return &host{dirs: dirs, prefs: prefs, log: log, settings: st, sessions: sessions, agents: agents, tools: toolsReg, mcp: mcp, bus: b, ctrl: ctrl, metrics: m, scheduler: sched, agentWatcher: agentWatcher}, nil
}

func (h *host) close() {
	if h.agentWatcher != nil {
		h.agentWatcher.Close()
	}
	h.scheduler.Stop()
	h.mcp.StopAll()
	h.sessions.Close()
	h.settings.Close()
	h.log.Close()
}

// watchAgentsDir watches dir for agent-definition file changes and reloads
// agents in place. A failure to start the watcher (e.g. the platform lacks
// inotify) is non-fatal: agent definitions just require a restart to pick
// up in that case.
func watchAgentsDir(dir string, agents *agentmgr.Manager, log *hostlog.Logger) *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("agent dir watch: %v", err)
		return nil
	}
	if err := w.Add(dir); err != nil {
		log.Printf("agent dir watch: %v", err)
		w.Close()
		return nil
	}
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := agents.ReloadDir(dir); err != nil {
					log.Printf("agent dir reload: %v", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("agent dir watch: %v", err)
			}
		}
	}()
	return w
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Drive the agent host from a terminal.",
	}

	root.AddCommand(
		newChatCmd(),
		newSessionCmd(),
		newPinCmd(),
		newAgentCmd(),
		newModelCmd(),
		newCompactCmd(),
		newContextCmd(),
	)
	return root
}

func newChatCmd() *cobra.Command {
	var session, agent string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat loop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()

			if agent == "" {
				agent = h.agents.CurrentName()
			}
			if session == "" {
				session, err = h.sessions.GenerateName(agent, time.Now().UTC())
				if err != nil {
					return err
				}
			}

			p := tea.NewProgram(newREPL(h.ctrl, session, agent))
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session name to resume or create")
	cmd.Flags().StringVar(&agent, "agent", "", "agent to chat with")
	return cmd
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Manage saved sessions."}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved sessions, most recently updated first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			sessions, err := h.sessions.List()
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Printf("%s\t%s\t%s (%s)\t%d msgs\n", s.Name, s.Agent, s.UpdatedAt.Format("2006-01-02 15:04"), humanize.Time(s.UpdatedAt), s.MessageCount)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a saved session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			if err := h.sessions.Delete(args[0]); err != nil {
				return userError{err}
			}
			return nil
		},
	})

	return cmd
}

func newPinCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pin", Short: "Manage per-agent pinned models."}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [agent] [model]",
		Short: "Pin a model for an agent.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			return h.settings.SetAgentPinnedModel(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unset [agent]",
		Short: "Clear an agent's pinned model.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			return h.settings.ClearAgentPinnedModel(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every agent's pinned model.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			pins, err := h.settings.GetAllAgentPins()
			if err != nil {
				return err
			}
			for agent, model := range pins {
				fmt.Printf("%s -> %s\n", agent, model)
			}
			return nil
		},
	})

	return cmd
}

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent [name]",
		Short: "Show or switch the current agent.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			if len(args) == 0 {
				fmt.Println(h.agents.CurrentName())
				return nil
			}
			if err := h.agents.Switch(args[0]); err != nil {
				return userError{err}
			}
			return nil
		},
	}
	return cmd
}

func newModelCmd() *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "model [name]",
		Short: "Show or pin the effective model for an agent.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			if agent == "" {
				agent = h.agents.CurrentName()
			}
			if len(args) == 0 {
				model, err := h.agents.EffectiveModel(agent)
				if err != nil {
					return userError{err}
				}
				fmt.Println(model)
				return nil
			}
			return h.settings.SetAgentPinnedModel(agent, args[0])
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent to target")
	return cmd
}

func newCompactCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Force-compact a session's history now.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			blob, err := h.sessions.Load(session)
			if err != nil {
				return userError{err}
			}
			return h.sessions.Save(session, compactNow(blob.Messages), blob.Meta.Agent, blob.Meta.Model)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session to compact")
	cmd.MarkFlagRequired("session")
	return cmd
}

// compactNow runs the same keep-first-and-last-N drop pass (tokens.Compact)
// Controller.Turn applies automatically past the context-window threshold,
// as a manual trigger for an idle session the user wants to shrink right now
// regardless of size. It generates no summary of the dropped messages.
func compactNow(messages []domain.Message) []domain.Message {
	result := tokens.Compact(messages, defaultCompactKeepRecent)
	if !result.DidCompact {
		return messages
	}
	return result.Messages
}

const defaultCompactKeepRecent = 20

func newContextCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show a session's estimated token usage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost()
			if err != nil {
				return err
			}
			defer h.close()
			blob, err := h.sessions.Load(session)
			if err != nil {
				return userError{err}
			}
			fmt.Printf("%s: %d messages, ~%d tokens\n", session, blob.Meta.MessageCount, blob.Meta.TokenEstimate)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session to inspect")
	cmd.MarkFlagRequired("session")
	return cmd
}
