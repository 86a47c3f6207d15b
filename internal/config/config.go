// Package config loads the taskhttp configuration and builds the components
// it configures.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/taskhttp/internal/dispatch"
	"github.com/stealthrocket/taskhttp/internal/print/human"
	"github.com/stealthrocket/taskhttp/internal/router"
	"github.com/stealthrocket/taskhttp/internal/server"
)

const (
	DefaultHost = "::1"
	DefaultPort = 9090
)

// Config is the taskhttp configuration.
type Config struct {
	Server struct {
		Host        string         `json:"host"        yaml:"host"`
		Port        int            `json:"port"        yaml:"port"`
		ReusePort   bool           `json:"reusePort"   yaml:"reusePort"`
		GracePeriod human.Duration `json:"gracePeriod" yaml:"gracePeriod"`
	} `json:"server" yaml:"server"`
	Log struct {
		Level  string `json:"level"  yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() *Config {
	c := new(Config)
	c.Server.Host = DefaultHost
	c.Server.Port = DefaultPort
	c.Log.Level = logrus.InfoLevel.String()
	c.Log.Format = "text"
	return c
}

// LoadConfig reads the configuration file at path. The default configuration
// is returned when path is empty.
func LoadConfig(path human.Path) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	p, err := path.Resolve()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := ReadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return c, nil
}

// ReadConfig reads and validates configuration. Fields absent from r keep
// their default values.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GracePeriod < 0 {
		return fmt.Errorf("invalid grace period: %v", c.Server.GracePeriod)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q (not one of text, json)", c.Log.Format)
	}
	return nil
}

// Addr returns the address the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GracePeriod returns how long a shutdown waits for connections to complete.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Server.GracePeriod)
}

// NewLogger constructs a logger writing to w at the configured level and in
// the configured format.
func (c *Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch c.Log.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}
	return logger, nil
}

// NewServer constructs a server configured according to Config. The server
// is not started.
func (c *Config) NewServer(logger logrus.FieldLogger) *server.Server {
	return &server.Server{
		Addr:       c.Addr(),
		Handler:    router.New(logger),
		Dispatcher: &dispatch.Dispatcher{Logger: logger},
		Logger:     logger,
		ReusePort:  c.Server.ReusePort,
	}
}
