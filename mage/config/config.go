// Package config loads the YAML configuration of the mage command.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/TheusHen/mage/mage/identity"
	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/protocol"
	"github.com/TheusHen/mage/mage/stream"
)

const (
	RoleClient = "client"
	RoleServer = "server"
)

var ErrInvalid = errors.New("config: invalid")

type LogConfig struct {
	Level       string         `yaml:"level"`  // debug, info, warn, error
	Format      string         `yaml:"format"` // console or json
	Outputs     []string       `yaml:"outputs"` // stdout, stderr or file paths
	Development bool           `yaml:"development,omitempty"`
	Rotation    RotationConfig `yaml:"rotation,omitempty"`
}

// RotationConfig applies to file outputs.
type RotationConfig struct {
	Enable     bool `yaml:"enable"`
	MaxSizeMB  int  `yaml:"max_size_mb,omitempty"`
	MaxBackups int  `yaml:"max_backups,omitempty"`
	MaxAgeDays int  `yaml:"max_age_days,omitempty"`
	Compress   bool `yaml:"compress,omitempty"`
}

type Config struct {
	Role         string `yaml:"role"`
	Address      string `yaml:"address"`
	Transport    string `yaml:"transport"`
	ConnectionID uint32 `yaml:"connection_id"`
	// SeedPath is relative to the config file when it starts with "./".
	SeedPath  string `yaml:"seed_path"`
	RemoteKey string `yaml:"remote_key"`
	Channel   uint8  `yaml:"channel"`

	Compression    string        `yaml:"compression,omitempty"` // none, fast, best
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	ReadBufferSize int           `yaml:"read_buffer_size,omitempty"`

	// MetricsAddress serves Prometheus metrics over HTTP when set.
	MetricsAddress string `yaml:"metrics_address,omitempty"`

	Log LogConfig `yaml:"log"`
}

func Default() Config {
	return Config{
		Role:         RoleClient,
		Address:      "127.0.0.1:7400",
		Transport:    "tcp",
		SeedPath:     "./seed",
		Compression:  "none",
		PollInterval: mux.DefaultPollInterval,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
		},
	}
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "config: parse")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and validates the file at path. A relative seed_path starting
// with "./" is resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "loading %s", path)
	}
	if strings.HasPrefix(c.SeedPath, "./") {
		c.SeedPath = filepath.Join(filepath.Dir(path), c.SeedPath)
	}
	return c, nil
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	switch c.Role {
	case RoleClient, RoleServer:
	default:
		return errors.Wrapf(ErrInvalid, "role %q", c.Role)
	}
	switch c.Transport {
	case "tcp", "quic":
	default:
		return errors.Wrapf(ErrInvalid, "transport %q", c.Transport)
	}
	if c.Address == "" {
		return errors.Wrap(ErrInvalid, "address is empty")
	}
	if err := protocol.ConnectionID(c.ConnectionID).Check(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := c.CompressionLevel(); err != nil {
		return err
	}
	if c.PollInterval < 0 {
		return errors.Wrapf(ErrInvalid, "poll_interval %v", c.PollInterval)
	}
	if c.RemoteKey != "" {
		if _, err := identity.ParsePublicKey(c.RemoteKey); err != nil {
			return errors.Wrap(ErrInvalid, err.Error())
		}
	}
	return nil
}

func (c Config) IsServer() bool { return c.Role == RoleServer }

func (c Config) CompressionLevel() (stream.CompressionLevel, error) {
	switch c.Compression {
	case "", "none":
		return stream.CompressionNone, nil
	case "fast":
		return stream.CompressionFast, nil
	case "best":
		return stream.CompressionBest, nil
	default:
		return 0, errors.Wrapf(ErrInvalid, "compression %q", c.Compression)
	}
}

// Remote returns the configured peer public key.
func (c Config) Remote() (identity.PublicKey, error) {
	if c.RemoteKey == "" {
		return identity.PublicKey{}, errors.Wrap(ErrInvalid, "remote_key is empty")
	}
	return identity.ParsePublicKey(c.RemoteKey)
}

// Identity loads the local seed.
func (c Config) Identity() (identity.Identity, error) {
	return identity.LoadSeedFile(c.SeedPath)
}

// MuxOptions turns the tuning knobs into connection options.
func (c Config) MuxOptions(log *zap.Logger) []mux.Option {
	opts := []mux.Option{mux.WithLogger(log), mux.WithPollInterval(c.PollInterval)}
	if level, err := c.CompressionLevel(); err == nil && level != stream.CompressionNone {
		opts = append(opts, mux.WithCompression(level))
	}
	if c.ReadBufferSize > 0 {
		opts = append(opts, mux.WithReadBufferSize(c.ReadBufferSize))
	}
	return opts
}
