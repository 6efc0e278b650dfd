package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the port the server listens on unless configured otherwise.
const DefaultPort = 3193

// Config holds the full server configuration. Fields map onto the CLI flags;
// a YAML config file may set the same fields, with flags taking precedence.
type Config struct {
	// ReadOnly rejects every mutating endpoint with 404.
	ReadOnly bool `yaml:"read_only"`

	// PersistDir is the directory objects are persisted to. Empty means
	// transient mode: objects are lost when the server exits.
	PersistDir string `yaml:"persist"`

	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port"`

	// AnyInterface binds to all interfaces instead of loopback.
	AnyInterface bool `yaml:"any"`

	// Timeseries lists paths of timeseries database files to serve.
	Timeseries []string `yaml:"timeseries"`

	// SSL enables TLS. On by default; requires CertFile and KeyFile.
	SSL bool `yaml:"ssl"`

	// CertFile is the PEM certificate used when SSL is enabled.
	CertFile string `yaml:"cert"`

	// KeyFile is the PEM private key used when SSL is enabled.
	KeyFile string `yaml:"key"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns a Config with the stock defaults.
func Default() *Config {
	return &Config{
		Port:     DefaultPort,
		SSL:      true,
		CertFile: "cert.pem",
		KeyFile:  "key.pem",
		LogLevel: "info",
	}
}

// LoadFile overlays values from a YAML config file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server should bind.
func (c *Config) ListenAddr() string {
	host := "localhost"
	if c.AnyInterface {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// Validate checks the configuration for startup errors. TLS enabled without a
// readable certificate and key is fatal; the returned error explains how to
// mint a self-signed pair.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SSL {
		if _, err := os.Stat(c.CertFile); err != nil {
			return tlsBootstrapError()
		}
		if _, err := os.Stat(c.KeyFile); err != nil {
			return tlsBootstrapError()
		}
	}
	return nil
}

func tlsBootstrapError() error {
	return fmt.Errorf(`SSL is enabled by default, but no certificate or key has been configured. Use --no-ssl to disable SSL.
To generate a self-signed certificate for localhost, execute the following command:

  openssl req -x509 -nodes -days 730 -newkey rsa:2048 -keyout key.pem -out cert.pem -config localhost-ssl.conf

Alternately, edit the localhost-ssl.conf file to generate a self-signed certificate for a different hostname/IP
address, and run the command above. You will also need to configure your web browser to trust the self-signed
certificate`)
}
