package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI runs the "mcp-server setup" subcommands.
type CLI struct {
	ConfigPath string
	reader     *bufio.Reader
	out        io.Writer
}

// NewCLI creates a CLI reading answers from in and printing to out.
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{reader: bufio.NewReader(in), out: out}
}

// Run executes the setup command named by args[0].
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "install":
		return c.install(args[1:])
	case "uninstall":
		return c.uninstall()
	case "status":
		return c.status()
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown setup command %q", args[0])
	}
}

func (c *CLI) showHelp() {
	fmt.Fprint(c.out, `
LiverCare MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  install     Register the server with the desktop MCP client
  uninstall   Remove the server from the desktop MCP client
  status      Show the current installation

Install options:
  --binary, -b <path>       Server binary (default: this executable)
  --data-dir, -d <path>     Data directory for history and exports
  --prediction-mode <mode>  none, script or http
  --prediction-url <url>    Model service URL in http mode
  --config <path>           Client configuration file
  --yes, -y                 Do not ask for confirmation
`)
}

func (c *CLI) install(args []string) error {
	opts := Options{ConfigPath: c.ConfigPath}

	for i := 0; i < len(args); i++ {
		value := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "--binary", "-b":
			opts.BinaryPath = value()
		case "--data-dir", "-d":
			opts.DataDir = value()
		case "--prediction-mode":
			opts.PredictionMode = value()
		case "--prediction-url":
			opts.PredictionURL = value()
		case "--config":
			opts.ConfigPath = value()
		case "--yes", "-y":
			opts.AutoConfirm = true
		default:
			return fmt.Errorf("unknown option %q", args[i])
		}
	}

	if opts.BinaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("could not determine server binary: %w", err)
		}
		opts.BinaryPath = execPath
	}

	entry, err := Entry(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Server binary: %s\n", entry.Command)
	for k, v := range entry.Env {
		fmt.Fprintf(c.out, "  %s=%s\n", k, v)
	}

	if !opts.AutoConfirm && !c.confirm("Proceed with registration? [Y/n]: ", true) {
		fmt.Fprintln(c.out, "Registration cancelled.")
		return nil
	}

	path, err := Register(opts)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	fmt.Fprintf(c.out, "Registered %q in %s\n", ServerName, path)
	fmt.Fprintln(c.out, "Restart the desktop client, then ask it to assess a liver risk profile.")
	return nil
}

func (c *CLI) uninstall() error {
	removed, err := Unregister(c.ConfigPath)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintln(c.out, "LiverCare server removed from the client configuration.")
	} else {
		fmt.Fprintln(c.out, "LiverCare server was not registered.")
	}
	return nil
}

func (c *CLI) status() error {
	status, err := GetStatus(c.ConfigPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Client config: %s\n", status.ConfigPath)
	fmt.Fprintf(c.out, "Registered:    %s\n", mark(status.Registered))
	if status.Registered {
		fmt.Fprintf(c.out, "Binary:        %s (%s)\n", status.BinaryPath, mark(status.BinaryFound))
	}
	fmt.Fprintf(c.out, "Data dir:      %s (%s)\n", status.DataDir, mark(status.DataDirExists))
	fmt.Fprintf(c.out, "History DB:    %s\n", mark(status.HistoryExists))

	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}

func (c *CLI) confirm(prompt string, def bool) bool {
	fmt.Fprint(c.out, prompt)
	response, _ := c.reader.ReadString('\n')
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
