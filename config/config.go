// Package config loads the client's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cvsouth/phttp-go/peerid"
)

const (
	defaultLogLevel = "info"
	defaultLogFile  = "phttp-debug.log"
)

// Config is the top level client configuration.
type Config struct {
	ClientID            string
	ForceManualRelaying bool

	Logging *Logging
	Metrics *Metrics
	Cache   *Cache
	Nodes   []*NodePair
}

// Logging configures the debug log file. Info and above also go to stderr.
type Logging struct {
	Level string
	File  string
}

// Metrics configures the prometheus endpoint; an empty Address disables it.
type Metrics struct {
	Address string
}

// Cache configures where learned exit info is kept between runs.
type Cache struct {
	Dir string
}

// NodePair is an entry node and the exits reachable through it.
type NodePair struct {
	EntryPeerID  string
	EntryVersion string
	Relays       []string
	Peers        []string
	Exits        []*Exit
}

// Exit is an exit node as seen through an entry node.
type Exit struct {
	PeerID        string
	Version       string
	CounterOffset int64
	RelayShortIDs []string
}

// DefaultCacheDir returns ~/.phttp/cache.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".phttp", "cache")
}

func (c *Config) applyDefaults() {
	if c.Logging == nil {
		c.Logging = &Logging{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.File == "" {
		c.Logging.File = defaultLogFile
	}
	if c.Metrics == nil {
		c.Metrics = &Metrics{}
	}
	if c.Cache == nil {
		c.Cache = &Cache{}
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("config: ClientID is not set")
	}
	if c.Logging != nil && c.Logging.Level != "" {
		switch strings.ToLower(c.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("config: Logging: unknown level %q", c.Logging.Level)
		}
	}
	if len(c.Nodes) == 0 {
		return errors.New("config: no Nodes configured")
	}
	for i, np := range c.Nodes {
		if np == nil {
			return fmt.Errorf("config: Nodes[%d]: empty node pair", i)
		}
		if err := peerid.Validate(np.EntryPeerID); err != nil {
			return fmt.Errorf("config: Nodes[%d]: EntryPeerID: %w", i, err)
		}
		if len(np.Exits) == 0 {
			return fmt.Errorf("config: Nodes[%d]: no Exits", i)
		}
		for j, x := range np.Exits {
			if x == nil {
				return fmt.Errorf("config: Nodes[%d].Exits[%d]: empty exit", i, j)
			}
			if err := peerid.Validate(x.PeerID); err != nil {
				return fmt.Errorf("config: Nodes[%d].Exits[%d]: PeerID: %w", i, j, err)
			}
		}
		for _, id := range append(append([]string{}, np.Relays...), np.Peers...) {
			if err := peerid.Validate(id); err != nil {
				return fmt.Errorf("config: Nodes[%d]: relay or peer: %w", i, err)
			}
		}
	}
	return nil
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	if b == nil {
		return nil, errors.New("no nil buffer as config file")
	}
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: undecoded keys in config file: %v", undecoded)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
