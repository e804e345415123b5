package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Network is the server configuration, i.e. the top level.
type Network struct {
	// ServerName is used as the prefix of all server-originated messages,
	// e.g. the welcome burst and numeric error replies.
	ServerName string

	// MaxSessions caps the number of concurrent connections. Connections
	// over the limit are refused at accept time. 0 means unlimited.
	MaxSessions uint64

	// MaxChannels caps the number of concurrently existing channels. 0
	// means unlimited.
	MaxChannels uint64

	// ReceiveQueueBytes caps the number of unframed inbound bytes buffered
	// per connection. A connection that exceeds the cap without completing
	// a line is disconnected.
	ReceiveQueueBytes int
}

var DefaultConfig = Network{
	ServerName:        "plexirc.local",
	ReceiveQueueBytes: 8192,
}

// FromString parses a TOML configuration. Unset keys keep their defaults.
func FromString(input string) (Network, error) {
	cfg := DefaultConfig
	_, err := toml.Decode(input, &cfg)
	return cfg, err
}

func FromFile(path string) (Network, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig, err
	}
	return FromString(string(contents))
}
