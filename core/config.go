package core

import (
	"os"

	"github.com/goccy/go-yaml"

	fwlog "github.com/lci-net/lcifwd/std/log"
	"github.com/lci-net/lcifwd/wire"
)

// ListenerConfig describes one (family, address, port) transport
// endpoint the forwarder should listen on (spec.md §6).
type ListenerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    uint16 `yaml:"port"`
	Path    string `yaml:"path"`     // unix socket path, unix listener only
	TLSCert string `yaml:"tls_cert"` // websocket/quic only, required for quic
	TLSKey  string `yaml:"tls_key"`
}

// Config is the single startup configuration record of spec.md §6,
// extended with listener endpoints, log level, and persistence store
// paths per SPEC_FULL's AMBIENT/DOMAIN STACK. It is loaded from a
// single YAML document with goccy/go-yaml, mirroring the teacher's
// own yaml-config approach.
type Config struct {
	Port                 uint16 `yaml:"port"`
	NumIOThreads         uint32 `yaml:"num_io_threads"`
	PitCapacity          uint32 `yaml:"pit_capacity"`
	PitDefaultLifetimeMs uint32 `yaml:"pit_default_lifetime_ms"`
	FibCapacity          uint32 `yaml:"fib_capacity"`
	CsCapacity           uint32 `yaml:"cs_capacity"`
	CsEnabled            bool   `yaml:"cs_enabled"`
	DefaultHopLimit      uint8  `yaml:"default_hop_limit"`

	HashAlgo string `yaml:"hash_algo"` // "xxhash" or "blake2b"
	LogLevel string `yaml:"log_level"`

	Listeners struct {
		TCP       ListenerConfig `yaml:"tcp"`
		UDP       ListenerConfig `yaml:"udp"`
		Unix      ListenerConfig `yaml:"unix"`
		WebSocket ListenerConfig `yaml:"websocket"`
		QUIC      ListenerConfig `yaml:"quic"`
	} `yaml:"listeners"`

	CsStorePath  string `yaml:"cs_store_path"`  // badger directory, empty disables persistence
	RibStorePath string `yaml:"rib_store_path"` // sqlite file, empty disables persistence

	StatusAddr string `yaml:"status_addr"` // read-only HTTP status endpoint, empty disables it
}

// DefaultConfig returns the configuration used when no YAML document
// is supplied, mirroring the teacher's core.DefaultConfig().
func DefaultConfig() *Config {
	c := &Config{
		Port:                 6363,
		NumIOThreads:         1,
		PitCapacity:          65536,
		PitDefaultLifetimeMs: 4000,
		FibCapacity:          4096,
		CsCapacity:           65536,
		CsEnabled:            true,
		DefaultHopLimit:      64,
		HashAlgo:             "xxhash",
		LogLevel:             "INFO",
	}
	c.Listeners.TCP = ListenerConfig{Enabled: true, Address: "0.0.0.0", Port: 6363}
	c.Listeners.UDP = ListenerConfig{Enabled: true, Address: "0.0.0.0", Port: 6363}
	c.Listeners.Unix = ListenerConfig{Enabled: true, Path: "/run/lcifwd.sock"}
	return c
}

// LoadConfig reads and parses a YAML configuration document from path,
// starting from DefaultConfig and overlaying whatever fields the
// document sets.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Level parses the configured log level, falling back to INFO on a bad value.
func (c *Config) Level() fwlog.Level {
	lvl, err := fwlog.ParseLevel(c.LogLevel)
	if err != nil {
		return fwlog.LevelInfo
	}
	return lvl
}

// HashAlgorithm resolves the configured FIB prefix-hash algorithm,
// defaulting to xxhash for an empty or unrecognized value.
func (c *Config) HashAlgorithm() wire.HashAlgo {
	switch c.HashAlgo {
	case "blake2b":
		return wire.HashBlake2b
	default:
		return wire.HashXXHash
	}
}
