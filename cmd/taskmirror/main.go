package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/taskmirror/internal/config"
	"github.com/1broseidon/taskmirror/internal/daemon"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/logging"
	"github.com/1broseidon/taskmirror/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "task":
		os.Exit(runTask(os.Args[2:]))
	case "display":
		os.Exit(runDisplay(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskmirror <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the taskmirror daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  task list           List running tasks")
	fmt.Fprintln(w, "  task focused        Show the focused task")
	fmt.Fprintln(w, "  task focus          Bring a task to the front")
	fmt.Fprintln(w, "  task move           Move a task to another display")
	fmt.Fprintln(w, "  task remove         Remove a task")
	fmt.Fprintln(w, "  task inspect        List a task's raw attributes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  display state       Show the tracked display state")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "  config path         Print the config file path")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open the interactive task browser")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'taskmirror <command> --help' for command-specific options.")
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/taskmirror/config.yaml)")
	host := fs.String("host", "", "Override the configured host (adb, x11, sim)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmirror daemon [--path PATH] [--host HOST]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the mirroring session in the foreground. SIGHUP reloads the config.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config
	if *host != "" {
		cfg.Host = *host
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	logger, err := logging.New(cfg.GetLoggingConfig(), os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logger.Close()
	if res.File != "" {
		logger.Info("configuration loaded", "path", res.File, "host", cfg.Host, "display_id", cfg.DisplayID)
	} else {
		logger.Info("no config file, using defaults", "host", cfg.Host, "display_id", cfg.DisplayID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, table, err := daemon.OpenHost(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("failed to open host", "host", cfg.Host, "error", err)
		return 1
	}
	d := daemon.New(cfg, res.File, h, table, logger)
	defer d.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, reloading config")
				if err := d.Reload(); err != nil {
					logger.Warn("config reload failed", "error", err)
				}
				continue
			}
			logger.Info("shutting down", "signal", sig.String())
			cancel()
			return
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print status as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmirror status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	printStatus(os.Stdout, status)
	return 0
}

func printStatus(w io.Writer, status *ipc.StatusData) {
	fmt.Fprintf(w, "session:        %s\n", status.SessionID)
	fmt.Fprintf(w, "host:           %s (%s)\n", status.Host, status.Version)
	fmt.Fprintf(w, "display_id:     %d\n", status.DisplayID)
	fmt.Fprintf(w, "display_size:   %s\n", formatSize(status.Display))
	fmt.Fprintf(w, "rotation:       %s\n", status.Display.Rotation.String())
	fmt.Fprintf(w, "generation:     %d\n", status.Generation)
	fmt.Fprintf(w, "uptime_seconds: %d\n", status.UptimeSeconds)
	for _, c := range status.Capabilities {
		switch {
		case c.Error != "":
			fmt.Fprintf(w, "capability:     %s -> error: %s\n", c.Operation, c.Error)
		case c.Method == "":
			fmt.Fprintf(w, "capability:     %s -> unsupported\n", c.Operation)
		default:
			fmt.Fprintf(w, "capability:     %s -> %s\n", c.Operation, c.Method)
		}
	}
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	displayID := fs.Int("display", -1, "Display to list (default: the daemon's tracked display)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: taskmirror tui [--display N]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive task browser backed by the running daemon.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  j/k, ↑/↓   Navigate tasks")
		fmt.Fprintln(os.Stderr, "  f, Enter   Focus selected task")
		fmt.Fprintln(os.Stderr, "  x          Remove selected task (asks first)")
		fmt.Fprintln(os.Stderr, "  m          Move selected task to another display")
		fmt.Fprintln(os.Stderr, "  i          Inspect selected task")
		fmt.Fprintln(os.Stderr, "  a          Toggle all displays")
		fmt.Fprintln(os.Stderr, "  tab, 1/2   Switch between tasks and display")
		fmt.Fprintln(os.Stderr, "  r          Refresh")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C  Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := ipc.NewClient()
	id := *displayID
	if id < 0 {
		status, err := client.GetStatus()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		id = status.DisplayID
	}

	if err := tui.Run(client, id); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  taskmirror config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  taskmirror config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  taskmirror config explain [--path PATH] <yaml.path>")
		fmt.Fprintln(os.Stderr, "  taskmirror config path")
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/taskmirror/config.yaml)")

	switch args[0] {
	case "validate":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	case "path":
		p, err := config.ResolvePath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(p)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceEnv:
		return "env:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
