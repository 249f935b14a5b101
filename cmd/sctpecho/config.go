package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddress  string `yaml:"listen_address"` // UDP, client uses ephemeral port if empty
	PeerAddress    string `yaml:"peer_address"`   // UDP, client only
	LocalPort      uint16 `yaml:"local_port"`
	RemotePort     uint16 `yaml:"remote_port"`
	MetricsAddress string `yaml:"metrics_address"` // empty disables metrics server
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	PrintDrops     bool   `yaml:"print_drops"`

	// client only
	Messages     int           `yaml:"messages"` // 0 means until interrupted
	Rate         float64       `yaml:"rate"`     // messages per second, 0 means no limit
	MessageSize  int           `yaml:"message_size"`
	StreamID     uint16        `yaml:"stream_id"`
	PPID         uint32        `yaml:"ppid"`
	Unordered    bool          `yaml:"unordered"`
	DialAttempts uint64        `yaml:"dial_attempts"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

const minMessageSize = 8 // sequence number

func (c *Config) Validate(client bool) error {
	if !client && c.ListenAddress == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ListenAddress != "" {
		if _, err := net.ResolveUDPAddr("udp", c.ListenAddress); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", c.ListenAddress, err)
		}
	}
	if !client {
		return nil
	}
	if c.PeerAddress == "" {
		return fmt.Errorf("peer address is required")
	}
	if c.Messages < 0 {
		return fmt.Errorf("messages (%d) must not be negative", c.Messages)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate (%f) must not be negative", c.Rate)
	}
	if c.MessageSize < minMessageSize {
		return fmt.Errorf("message size (%d) should be at least %d", c.MessageSize, minMessageSize)
	}
	if c.DialTimeout <= 0 || c.ReplyTimeout <= 0 {
		return fmt.Errorf("dial timeout and reply timeout must be positive")
	}
	return nil
}

// Values from the file override defaults, flags set on command line override the file.
func applyConfigFile(path string, cfg *Config, flags *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	explicit := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, value := range explicit {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("reapply flag %s: %w", name, err)
		}
	}
	return nil
}
