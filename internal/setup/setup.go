// Package setup registers the LiverCare MCP server with desktop MCP clients
// and reports on the local installation.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/livercare-risk-server/internal/config"
)

// ServerName is the key of the server entry in the client configuration.
const ServerName = "livercare-risk"

// ClientConfig is the MCP client configuration file. Unknown top-level keys
// are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls registration.
type Options struct {
	ConfigPath     string // defaults to the desktop client path for this OS
	BinaryPath     string // mcp-server binary
	DataDir        string
	PredictionMode string
	PredictionURL  string
	AutoConfirm    bool
}

// DesktopConfigPath returns the desktop client's configuration file path.
func DesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LoadClientConfig reads the client configuration. A missing file yields an
// empty configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Entry builds the server entry for opts.
func Entry(opts Options) (ServerEntry, error) {
	if opts.BinaryPath == "" {
		return ServerEntry{}, errors.New("server binary path is required")
	}
	binary, err := filepath.Abs(opts.BinaryPath)
	if err != nil {
		return ServerEntry{}, err
	}

	env := make(map[string]string)
	if opts.DataDir != "" {
		env["LIVERCARE_DATA_DIR"] = opts.DataDir
	}
	if mode := strings.TrimSpace(opts.PredictionMode); mode != "" {
		switch mode {
		case "none", "script", "http":
		default:
			return ServerEntry{}, fmt.Errorf("unknown prediction mode %q", mode)
		}
		env["LIVERCARE_PREDICTION_MODE"] = mode
	}
	if opts.PredictionURL != "" {
		env["LIVERCARE_PREDICTION_URL"] = opts.PredictionURL
	}

	entry := ServerEntry{Command: binary}
	if len(env) > 0 {
		entry.Env = env
	}
	return entry, nil
}

// Register adds or replaces the LiverCare entry and returns the file written.
func Register(opts Options) (string, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}
	entry, err := Entry(opts)
	if err != nil {
		return "", err
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}
	cfg.MCPServers[ServerName] = entry
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Unregister removes the LiverCare entry. It reports whether one existed.
func Unregister(configPath string) (bool, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return false, err
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, cfg.Save(path)
}

// Status describes the local installation.
type Status struct {
	ConfigPath    string
	Registered    bool
	BinaryPath    string
	BinaryFound   bool
	DataDir       string
	DataDirExists bool
	HistoryExists bool
	Issues        []string
}

// Ready reports whether the client can launch the server.
func (s *Status) Ready() bool {
	return s.Registered && s.BinaryFound
}

// GetStatus inspects the client configuration and the data directory.
func GetStatus(configPath string) (*Status, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: path, DataDir: config.DefaultLiteConfig().DataDir}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		status.Issues = append(status.Issues, err.Error())
		return status, nil
	}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "LiverCare server is not registered")
	} else {
		status.Registered = true
		status.BinaryPath = entry.Command
		if info, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
		} else if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
		} else {
			status.BinaryFound = true
		}
		if dir := entry.Env["LIVERCARE_DATA_DIR"]; dir != "" {
			status.DataDir = dir
		}
	}

	lite := &config.LiteConfig{DataDir: status.DataDir}
	if _, err := os.Stat(lite.DataDir); err == nil {
		status.DataDirExists = true
		_, err := os.Stat(lite.HistoryDBPath())
		status.HistoryExists = err == nil
	}
	return status, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DesktopConfigPath()
}
