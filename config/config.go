package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration of the autopilot manager.
// Precedence: built-in defaults, then the YAML file, then flags, then
// AUTOPILOT_* environment variables.
type Config struct {
	HTTPAddr     string        `yaml:"http_addr"`
	LogDir       string        `yaml:"log_dir"`
	Debug        bool          `yaml:"debug"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	SITL      SITLConfig      `yaml:"sitl"`
	Announce  AnnounceConfig  `yaml:"announce"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SITLConfig enables treating a software-in-the-loop endpoint as a candidate board.
type SITLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // tcp://host:port
}

// AnnounceConfig controls mDNS advertisement of the service.
type AnnounceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// TelemetryConfig controls the optional post-detection framing check.
type TelemetryConfig struct {
	Check  bool          `yaml:"check"`
	Window time.Duration `yaml:"window"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPAddr:     ":8989",
		LogDir:       "/var/log/autopilot-manager",
		ScanInterval: 20 * time.Second,
		ProbeTimeout: 500 * time.Millisecond,
		SITL: SITLConfig{
			Endpoint: "tcp://127.0.0.1:5760",
		},
		Announce: AnnounceConfig{
			Enabled:  true,
			Instance: "autopilot-manager",
		},
		Telemetry: TelemetryConfig{
			Window: 3 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, command-line
// flags and environment variables. It calls flag.Parse.
func Load() (*Config, error) {
	cfg := Default()

	configPath := flag.String("config", "", "Path to YAML config file")
	httpAddr := flag.String("http", cfg.HTTPAddr, "HTTP/WebSocket listen address")
	logDir := flag.String("log-dir", cfg.LogDir, "Log directory (empty disables file logging)")
	debug := flag.Bool("debug", cfg.Debug, "Enable debug logging")
	scanInterval := flag.Duration("scan-interval", cfg.ScanInterval, "Rescan interval while no board is detected")
	probeTimeout := flag.Duration("probe-timeout", cfg.ProbeTimeout, "Per-probe bus transaction timeout")
	sitl := flag.Bool("sitl", cfg.SITL.Enabled, "Enable the SITL candidate")
	sitlEndpoint := flag.String("sitl-endpoint", cfg.SITL.Endpoint, "SITL endpoint (tcp://host:port)")
	flag.Parse()

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	// Flags override the file only when set on the command line.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "log-dir":
			cfg.LogDir = *logDir
		case "debug":
			cfg.Debug = *debug
		case "scan-interval":
			cfg.ScanInterval = *scanInterval
		case "probe-timeout":
			cfg.ProbeTimeout = *probeTimeout
		case "sitl":
			cfg.SITL.Enabled = *sitl
		case "sitl-endpoint":
			cfg.SITL.Endpoint = *sitlEndpoint
		}
	})

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUTOPILOT_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("AUTOPILOT_SITL_ENDPOINT"); v != "" {
		c.SITL.Enabled = true
		c.SITL.Endpoint = v
	}
	if v := os.Getenv("AUTOPILOT_DEBUG"); v == "1" || v == "true" {
		c.Debug = true
	}
}

// HTTPPort returns the numeric port of HTTPAddr, for the mDNS advertisement.
func (c *Config) HTTPPort() (int, error) {
	_, portStr, err := net.SplitHostPort(c.HTTPAddr)
	if err != nil {
		return 0, fmt.Errorf("http_addr %q: %w", c.HTTPAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("http_addr %q: %w", c.HTTPAddr, err)
	}
	return port, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if c.ScanInterval < time.Second {
		return fmt.Errorf("scan_interval %s is below the 1s minimum", c.ScanInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.SITL.Enabled && c.SITL.Endpoint == "" {
		return fmt.Errorf("sitl.endpoint must be set when sitl is enabled")
	}
	if c.Telemetry.Check && c.Telemetry.Window <= 0 {
		return fmt.Errorf("telemetry.window must be positive when telemetry.check is enabled")
	}
	return nil
}
