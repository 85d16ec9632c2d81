// Package config handles gobridge.toml gateway configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "gobridge.toml"

// Default ports of the gateway and of the remote callback listener.
const (
	DefaultPort         = 25333
	DefaultCallbackPort = 25334
	DefaultAddress      = "127.0.0.1"
)

// Config represents a gobridge.toml file.
type Config struct {
	Server   Server   `toml:"server"`
	Callback Callback `toml:"callback"`
	Cache    Cache    `toml:"cache"`
	Log      Log      `toml:"log"`
	View     View     `toml:"view"`
	Wrap     Wrap     `toml:"wrap"`

	// Dir is the directory containing the gobridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Server configures the listening side.
type Server struct {
	Address     string   `toml:"address"`
	Port        int      `toml:"port"`
	AuthToken   string   `toml:"auth-token"`
	ReadTimeout Duration `toml:"read-timeout"`

	// Executor serializes all commands on one goroutine. ExecutorWait bounds
	// how long a command waits for it before running directly.
	Executor     bool     `toml:"executor"`
	ExecutorWait Duration `toml:"executor-wait"`

	// MaxArrayLength bounds arrays created by clients. Zero keeps the
	// server default.
	MaxArrayLength int `toml:"max-array-length"`
}

// Callback configures the reverse channel to the remote side.
type Callback struct {
	Enabled        bool     `toml:"enabled"`
	Address        string   `toml:"address"`
	Port           int      `toml:"port"`
	ConnectTimeout Duration `toml:"connect-timeout"`
	ReadTimeout    Duration `toml:"read-timeout"`
	MaxIdle        int      `toml:"max-idle"`
	IdleTimeout    Duration `toml:"idle-timeout"`
}

// Cache configures the method resolution cache.
type Cache struct {
	Capacity int `toml:"capacity"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// View lists imports applied to the default view at startup.
type View struct {
	Imports []string `toml:"imports"`
}

// Wrap configures binding generation for Go packages.
type Wrap struct {
	Output   string        `toml:"output"`
	Packages []WrapPackage `toml:"packages"`
}

// WrapPackage names one Go package to generate bindings for.
type WrapPackage struct {
	Import    string   `toml:"import"`
	Include   []string `toml:"include"`
	Namespace string   `toml:"namespace"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Callback.Address == "" {
		c.Callback.Address = DefaultAddress
	}
	if c.Callback.Port == 0 {
		c.Callback.Port = DefaultCallbackPort
	}
	if c.Callback.ConnectTimeout.Duration == 0 {
		c.Callback.ConnectTimeout.Duration = 5 * time.Second
	}
	if c.Callback.MaxIdle == 0 {
		c.Callback.MaxIdle = 4
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 100
	}
}

// Load parses the gobridge.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// LoadFile parses a configuration file at an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if c.Cache.Capacity < 0 {
		return nil, fmt.Errorf("%s: cache capacity must not be negative", path)
	}
	if c.Server.MaxArrayLength < 0 {
		return nil, fmt.Errorf("%s: max-array-length must not be negative", path)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return nil, fmt.Errorf("%s: invalid server port %d", path, c.Server.Port)
	}
	c.Dir = filepath.Dir(path)
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a gobridge.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Write encodes c to path.
func Write(path string, c *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# gobridge gateway configuration"); err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// ServerAddress returns the host:port the gateway listens on.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// WrapOutputDir returns the directory generated bindings are written to.
func (c *Config) WrapOutputDir() string {
	out := c.Wrap.Output
	if out == "" {
		out = "bindings"
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(c.Dir, out)
}

// CallbackAddress returns the host:port of the remote callback listener.
func (c *Config) CallbackAddress() string {
	return net.JoinHostPort(c.Callback.Address, strconv.Itoa(c.Callback.Port))
}
