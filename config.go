package tableassert

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

const (
	// DefaultEmulatorPort is the gRPC port of the Cloud Spanner emulator.
	DefaultEmulatorPort = 9010
	// DefaultPreviewRows is how many actual rows are attached to a mismatch report.
	DefaultPreviewRows = 5
	// DefaultConnectionName is used when the configuration does not name one.
	DefaultConnectionName = "default"
)

// Config represents the tableassert configuration
type Config struct {
	DefaultConnection string                      `yaml:"default_connection"`
	PreviewRows       int                         `yaml:"preview_rows"`
	Connections       map[string]ConnectionConfig `yaml:"connections"`
}

// ConnectionConfig represents database connection configuration.
// Spanner connections use the project/instance/database triple, every other driver uses DSN.
type ConnectionConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	ProjectID    string `yaml:"project_id"`
	InstanceID   string `yaml:"instance_id"`
	DatabaseID   string `yaml:"database_id"`
	EmulatorHost string `yaml:"emulator_host"`
}

// Merge overlays every non-empty field of override onto a copy of c.
func (c ConnectionConfig) Merge(override ConnectionConfig) ConnectionConfig {
	merged := c

	if override.Driver != "" {
		merged.Driver = override.Driver
	}

	if override.DSN != "" {
		merged.DSN = override.DSN
	}

	if override.ProjectID != "" {
		merged.ProjectID = override.ProjectID
	}

	if override.InstanceID != "" {
		merged.InstanceID = override.InstanceID
	}

	if override.DatabaseID != "" {
		merged.DatabaseID = override.DatabaseID
	}

	if override.EmulatorHost != "" {
		merged.EmulatorHost = override.EmulatorHost
	}

	return merged
}

// IsZero reports whether no field is set.
func (c ConnectionConfig) IsZero() bool {
	return c == ConnectionConfig{}
}

// Dialect returns the dialect of the configured driver. Empty drivers default to Spanner.
func (c ConnectionConfig) Dialect() (Dialect, error) {
	if c.Driver == "" {
		return DialectSpanner, nil
	}

	d, ok := ParseDialect(c.Driver)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver)
	}

	return d, nil
}

// Resolve validates the settings required by the driver and normalizes them.
func (c ConnectionConfig) Resolve() (ConnectionConfig, error) {
	d, err := c.Dialect()
	if err != nil {
		return ConnectionConfig{}, err
	}

	resolved := c
	resolved.Driver = string(d)

	if d != DialectSpanner {
		if c.DSN == "" {
			return ConnectionConfig{}, fmt.Errorf("%w: dsn", ErrMissingConfiguration)
		}

		return resolved, nil
	}

	switch {
	case c.ProjectID == "":
		return ConnectionConfig{}, fmt.Errorf("%w: project_id", ErrMissingConfiguration)
	case c.InstanceID == "":
		return ConnectionConfig{}, fmt.Errorf("%w: instance_id", ErrMissingConfiguration)
	case c.DatabaseID == "":
		return ConnectionConfig{}, fmt.Errorf("%w: database_id", ErrMissingConfiguration)
	}

	resolved.EmulatorHost = normalizeEmulatorHost(c.EmulatorHost)

	return resolved, nil
}

// DatabasePath returns the fully qualified Spanner database name.
func (c ConnectionConfig) DatabasePath() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", c.ProjectID, c.InstanceID, c.DatabaseID)
}

func normalizeEmulatorHost(host string) string {
	if host == "" {
		return ""
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(DefaultEmulatorPort))
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Return default configuration if file doesn't exist
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses configuration bytes. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandConfigEnvVars(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Connection returns the named connection, or the default one when name is empty.
func (c *Config) Connection(name string) (ConnectionConfig, error) {
	if name == "" {
		name = c.DefaultConnection
	}

	conn, ok := c.Connections[name]
	if !ok {
		return ConnectionConfig{}, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}

	return conn, nil
}

// ConnectionNames returns configured connection names in sorted order.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func validateConfig(config *Config) error {
	if config.PreviewRows < 0 {
		return fmt.Errorf("%w: preview_rows must not be negative", ErrConfigValidation)
	}

	for _, name := range config.ConnectionNames() {
		if _, err := config.Connections[name].Dialect(); err != nil {
			return fmt.Errorf("%w: connection %s: %w", ErrConfigValidation, name, err)
		}
	}

	if len(config.Connections) > 0 {
		if _, ok := config.Connections[config.DefaultConnection]; !ok {
			return fmt.Errorf("%w: default_connection %q is not defined", ErrConfigValidation, config.DefaultConnection)
		}
	}

	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		DefaultConnection: DefaultConnectionName,
		PreviewRows:       DefaultPreviewRows,
		Connections:       make(map[string]ConnectionConfig),
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.PreviewRows == 0 {
		config.PreviewRows = DefaultPreviewRows
	}

	if config.Connections == nil {
		config.Connections = make(map[string]ConnectionConfig)
	}

	// A single connection is the default one
	if config.DefaultConnection == "" {
		if len(config.Connections) == 1 {
			for name := range config.Connections {
				config.DefaultConnection = name
			}
		} else {
			config.DefaultConnection = DefaultConnectionName
		}
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	plainEnvVar  = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return plainEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in every connection setting
func expandConfigEnvVars(config *Config) {
	config.DefaultConnection = expandEnvVars(config.DefaultConnection)

	for name, conn := range config.Connections {
		conn.Driver = expandEnvVars(conn.Driver)
		conn.DSN = expandEnvVars(conn.DSN)
		conn.ProjectID = expandEnvVars(conn.ProjectID)
		conn.InstanceID = expandEnvVars(conn.InstanceID)
		conn.DatabaseID = expandEnvVars(conn.DatabaseID)
		conn.EmulatorHost = expandEnvVars(conn.EmulatorHost)
		config.Connections[name] = conn
	}
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
